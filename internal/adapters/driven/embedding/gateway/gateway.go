// Package gateway composes embedding providers into a single service
// with ordered fallback and per-provider rate limiting.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/ledgerline/fiscalia/internal/core/domain"
	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
	"github.com/ledgerline/fiscalia/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.EmbeddingService = (*Gateway)(nil)

// Provider is an embedding service with an optional client-side rate
// limit. A nil Limiter means no local throttling.
type Provider struct {
	Name    string
	Service driven.EmbeddingService
	Limiter *rate.Limiter
}

// Gateway fans requests across an ordered provider list. The first
// provider is primary and fixes the expected vector dimensionality:
// every fallback must produce vectors of the same size, because
// stored vectors are only comparable within one dimensionality.
type Gateway struct {
	providers  []Provider
	dimensions int
}

// New creates a gateway over the given providers, in fallback order.
func New(providers []Provider) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("gateway: at least one provider is required")
	}

	dims := providers[0].Service.Dimensions()
	for _, p := range providers[1:] {
		if p.Service.Dimensions() != dims {
			return nil, fmt.Errorf("%w: provider %s produces %d dimensions, primary produces %d",
				domain.ErrDimensionMismatch, p.Name, p.Service.Dimensions(), dims)
		}
	}

	return &Gateway{
		providers:  providers,
		dimensions: dims,
	}, nil
}

// Embed generates an embedding via the first provider that succeeds.
// Transient failures (unreachable, rate limited) fall through to the
// next provider; a dimension mismatch is fatal because retrying a
// different provider cannot fix a wrong-sized vector already being
// produced against the configured dimensionality.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for _, p := range g.providers {
		// A throttled provider is unavailable for this call; the next
		// provider gets its chance instead of queueing behind the limiter.
		if p.Limiter != nil && !p.Limiter.Allow() {
			logger.Debug("embedding provider %s rate limited, trying next", p.Name)
			lastErr = fmt.Errorf("%w: %s: client-side limit reached", domain.ErrRateLimited, p.Name)
			continue
		}

		embedding, err := p.Service.Embed(ctx, text)
		if err != nil {
			if transient(err) {
				logger.Debug("embedding provider %s failed, trying next: %v", p.Name, err)
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}

		if len(embedding) != g.dimensions {
			return nil, fmt.Errorf("%w: provider %s returned %d dimensions, expected %d",
				domain.ErrDimensionMismatch, p.Name, len(embedding), g.dimensions)
		}

		return embedding, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAllProvidersExhausted, lastErr)
	}
	return nil, domain.ErrAllProvidersExhausted
}

// EmbedBatch embeds each text through the fallback chain.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := g.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Dimensions returns the vector size shared by all providers.
func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// ModelName returns the chain of provider model names.
func (g *Gateway) ModelName() string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Service.ModelName()
	}
	return strings.Join(names, ",")
}

// Ping succeeds if any provider is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	var lastErr error
	for _, p := range g.providers {
		if err := p.Service.Ping(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrAllProvidersExhausted, lastErr)
}

// Close closes every provider, returning the first error seen.
func (g *Gateway) Close() error {
	var firstErr error
	for _, p := range g.providers {
		if err := p.Service.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// transient reports whether the next provider might succeed where this
// one failed.
func transient(err error) bool {
	return errors.Is(err, domain.ErrProviderUnavailable) ||
		errors.Is(err, domain.ErrRateLimited)
}
