// Package server exposes the Scholar HTTP API.
//
// Endpoints:
//
//   - POST /v1/ask         — answer a research question (JSON request/response).
//   - GET  /v1/ask/ws      — answer a question over WebSocket with streamed
//     tool-call progress events.
//   - GET  /v1/topics      — list stored topic partitions.
//   - GET  /v1/topics/{topic} — list the papers stored under one topic.
//   - GET  /healthz, /readyz  — liveness and readiness probes.
//   - GET  /metrics        — Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/scholar/internal/health"
	"github.com/MrWong99/scholar/internal/observe"
	"github.com/MrWong99/scholar/internal/orchestrator"
	"github.com/MrWong99/scholar/internal/paperstore"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// Answerer runs the tool-calling loop for one query.
// *orchestrator.Orchestrator is the production implementation.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
	AnswerObserved(ctx context.Context, query string, obs orchestrator.Observer) (string, error)
}

// Compile-time check that the production orchestrator satisfies [Answerer].
var _ Answerer = (*orchestrator.Orchestrator)(nil)

// Config assembles a [Server].
type Config struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string

	// Answerer handles /v1/ask queries. Required.
	Answerer Answerer

	// Store backs the /v1/topics endpoints and the readiness probe. Required.
	Store paperstore.Store

	// Metrics instruments HTTP handling. Nil falls back to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// Server serves the Scholar HTTP API. Create with [New], start with [Run].
type Server struct {
	cfg     Config
	metrics *observe.Metrics
	httpSrv *http.Server
}

// New validates cfg and creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, fmt.Errorf("server: Answerer must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("server: Store must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	s := &Server{cfg: cfg, metrics: metrics}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler builds the full route table wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("GET /v1/ask/ws", s.handleAskWS)
	mux.HandleFunc("GET /v1/topics", s.handleTopics)
	mux.HandleFunc("GET /v1/topics/{topic}", s.handleTopicPapers)
	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(health.StoreChecker(s.cfg.Store)).Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully. A nil error
// means the server stopped because ctx was done.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", s.cfg.Addr)
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			err = s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		slog.Info("http server stopped")
		return nil
	})

	return g.Wait()
}

// askRequest is the POST /v1/ask request body.
type askRequest struct {
	Query string `json:"query"`
}

// askResponse is the POST /v1/ask response body.
type askResponse struct {
	Answer string `json:"answer"`
}

// errorResponse is the JSON error body used by all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query must not be empty"})
		return
	}

	answer, err := s.cfg.Answerer.Answer(r.Context(), req.Query)
	if err != nil {
		status, msg := classifyAnswerError(err)
		observe.Logger(r.Context()).Warn("ask failed", "err", err)
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

// topicsResponse is the GET /v1/topics response body.
type topicsResponse struct {
	Topics []string `json:"topics"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.cfg.Store.Topics(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list topics failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list topics"})
		return
	}
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, topicsResponse{Topics: topics})
}

// topicPapersResponse is the GET /v1/topics/{topic} response body.
type topicPapersResponse struct {
	Topic  string              `json:"topic"`
	Papers []paperRecordWithID `json:"papers"`
}

// paperRecordWithID re-exposes the paper ID that the store keeps as the
// partition map key.
type paperRecordWithID struct {
	PaperID string `json:"paper_id"`
	paperstore.PaperRecord
}

func (s *Server) handleTopicPapers(w http.ResponseWriter, r *http.Request) {
	topic := paperstore.NormalizeTopic(r.PathValue("topic"))

	records, err := s.cfg.Store.Papers(r.Context(), topic)
	switch {
	case errors.Is(err, paperstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("topic %q not found", topic)})
		return
	case err != nil:
		observe.Logger(r.Context()).Error("list papers failed", "topic", topic, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list papers"})
		return
	}

	papers := make([]paperRecordWithID, 0, len(records))
	for _, rec := range records {
		papers = append(papers, paperRecordWithID{PaperID: rec.PaperID, PaperRecord: rec})
	}
	writeJSON(w, http.StatusOK, topicPapersResponse{Topic: topic, Papers: papers})
}

// classifyAnswerError maps turn-loop failures onto HTTP status codes.
func classifyAnswerError(err error) (int, string) {
	var be *orchestrator.BackendError
	switch {
	case errors.As(err, &be) && be.Kind == orchestrator.KindTimeout:
		return http.StatusGatewayTimeout, "the model backend timed out"
	case errors.As(err, &be):
		return http.StatusBadGateway, "the model backend returned an unusable response"
	case errors.Is(err, orchestrator.ErrMaxTurnsExceeded):
		return http.StatusBadGateway, "the model did not produce an answer within the turn limit"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
