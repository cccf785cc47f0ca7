package resilience

import (
	"context"

	"github.com/MrWong99/scholar/internal/arxiv"
)

// Searcher matches the search client consumed by the tool executor.
type Searcher interface {
	Search(ctx context.Context, topic string, maxResults int) ([]arxiv.Paper, error)
}

// GuardedSearcher wraps a search client with a circuit breaker so that a
// sustained arXiv outage trips fast instead of holding every tool call for the
// full request timeout. While the breaker is open, Search fails immediately
// with [ErrCircuitOpen]; the executor surfaces that to the model as a
// search_unavailable result.
type GuardedSearcher struct {
	inner   Searcher
	breaker *CircuitBreaker
}

// Compile-time interface assertion.
var _ Searcher = (*GuardedSearcher)(nil)

// NewGuardedSearcher wraps inner with a circuit breaker built from cfg.
func NewGuardedSearcher(inner Searcher, cfg CircuitBreakerConfig) *GuardedSearcher {
	if cfg.Name == "" {
		cfg.Name = "arxiv-search"
	}
	return &GuardedSearcher{
		inner:   inner,
		breaker: NewCircuitBreaker(cfg),
	}
}

// Search delegates to the wrapped client under the circuit breaker.
func (g *GuardedSearcher) Search(ctx context.Context, topic string, maxResults int) ([]arxiv.Paper, error) {
	var papers []arxiv.Paper
	err := g.breaker.Execute(func() error {
		var innerErr error
		papers, innerErr = g.inner.Search(ctx, topic, maxResults)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return papers, nil
}

// State reports the breaker state, mainly for tests and diagnostics.
func (g *GuardedSearcher) State() State {
	return g.breaker.State()
}
