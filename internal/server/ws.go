package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/scholar/internal/observe"
	"github.com/MrWong99/scholar/internal/tools"
	"github.com/MrWong99/scholar/pkg/types"
)

// wsQueryTimeout bounds a single WebSocket query end to end.
const wsQueryTimeout = 5 * time.Minute

// Frame types streamed over /v1/ask/ws.
const (
	frameToolCall   = "tool_call"
	frameToolResult = "tool_result"
	frameAnswer     = "answer"
	frameError      = "error"
)

// wsFrame is the wire format for all server-to-client WebSocket messages.
// Fields are populated according to Type.
type wsFrame struct {
	Type      string          `json:"type"`
	CallID    string          `json:"call_id,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Answer    string          `json:"answer,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// wsObserver forwards turn-loop events as WebSocket frames. The orchestrator
// delivers events synchronously from a single goroutine, so writes need no
// extra locking.
type wsObserver struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (o *wsObserver) OnToolCall(call types.ToolCall) {
	_ = wsjson.Write(o.ctx, o.conn, wsFrame{
		Type:      frameToolCall,
		CallID:    call.ID,
		Tool:      call.Name,
		Arguments: json.RawMessage(call.Arguments),
	})
}

func (o *wsObserver) OnToolResult(call types.ToolCall, result tools.Result) {
	_ = wsjson.Write(o.ctx, o.conn, wsFrame{
		Type:    frameToolResult,
		CallID:  call.ID,
		Tool:    call.Name,
		Content: result.Content,
		IsError: result.IsError,
	})
}

// handleAskWS answers one query per connection. The client sends a single
// {"query": ...} message; the server streams tool_call/tool_result frames as
// the loop progresses and finishes with an answer or error frame.
func (s *Server) handleAskWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	ctx, cancel := context.WithTimeout(r.Context(), wsQueryTimeout)
	defer cancel()

	var req askRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "expected a JSON query message")
		return
	}
	if req.Query == "" {
		_ = wsjson.Write(ctx, conn, wsFrame{Type: frameError, Error: "query must not be empty"})
		conn.Close(websocket.StatusInvalidFramePayloadData, "empty query")
		return
	}

	obs := &wsObserver{ctx: ctx, conn: conn}
	answer, err := s.cfg.Answerer.AnswerObserved(ctx, req.Query, obs)
	if err != nil {
		_, msg := classifyAnswerError(err)
		observe.Logger(ctx).Warn("websocket ask failed", "err", err)
		_ = wsjson.Write(ctx, conn, wsFrame{Type: frameError, Error: msg})
		conn.Close(websocket.StatusInternalError, "query failed")
		return
	}

	_ = wsjson.Write(ctx, conn, wsFrame{Type: frameAnswer, Answer: answer})
	conn.Close(websocket.StatusNormalClosure, "done")
}
