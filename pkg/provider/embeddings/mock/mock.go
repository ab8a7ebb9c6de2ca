// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/orato-app/orato/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
// The zero value returns a fixed all-zero vector of Dim length (default 4).
type Provider struct {
	mu sync.Mutex

	// Vector is returned from Embed when Err is nil. When nil, a zero
	// vector of Dim length is returned.
	Vector []float32

	// Err, if non-nil, is returned as the error from Embed.
	Err error

	// Dim is the reported dimensionality. Defaults to 4 when zero.
	Dim int

	// Texts records every text passed to Embed.
	Texts []string
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// Embed implements embeddings.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Vector != nil {
		out := make([]float32, len(p.Vector))
		copy(out, p.Vector)
		return out, nil
	}
	return make([]float32, p.Dimensions()), nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.Dim > 0 {
		return p.Dim
	}
	if p.Vector != nil {
		return len(p.Vector)
	}
	return 4
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return "mock-embeddings"
}
