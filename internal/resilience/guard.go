package resilience

import (
	"context"
	"fmt"

	"github.com/orato-app/orato/pkg/provider/llm"
)

// GuardedProvider wraps an [llm.Provider] with a [CircuitBreaker]. While the
// breaker is open every Complete call fails fast with [ErrCircuitOpen], so a
// backend outage costs submissions nothing beyond the deterministic analysis
// they would get anyway.
type GuardedProvider struct {
	provider llm.Provider
	breaker  *CircuitBreaker
}

// Compile-time interface assertion.
var _ llm.Provider = (*GuardedProvider)(nil)

// Guard wraps provider with a circuit breaker. A zero cfg uses the breaker
// defaults; cfg.Name falls back to the provider's model id.
func Guard(provider llm.Provider, cfg CircuitBreakerConfig) *GuardedProvider {
	if cfg.Name == "" {
		cfg.Name = provider.ModelID()
	}
	return &GuardedProvider{
		provider: provider,
		breaker:  NewCircuitBreaker(cfg),
	}
}

// Complete forwards the request unless the breaker is open.
func (g *GuardedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var resp *llm.CompletionResponse
	err := g.breaker.Execute(func() error {
		var callErr error
		resp, callErr = g.provider.Complete(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("resilience: complete: %w", err)
	}
	return resp, nil
}

// ModelID delegates to the wrapped provider.
func (g *GuardedProvider) ModelID() string {
	return g.provider.ModelID()
}

// State exposes the breaker state for readiness reporting and tests.
func (g *GuardedProvider) State() State {
	return g.breaker.State()
}
