package services

import (
	"context"
	"sync"

	"github.com/ledgerline/fiscalia/internal/core/ports/driven"
)

// mockEmbedder is a deterministic embedding service for tests. It
// returns the configured vector, or a per-text vector when set, and
// can be programmed to fail the first N calls before recovering.
type mockEmbedder struct {
	mu        sync.Mutex
	vector    []float32
	vectors   map[string][]float32
	err       error // permanent failure when set
	failFirst int   // fail this many leading calls with failErr
	failErr   error
	calls     int
	texts     []string
}

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.texts = append(m.texts, text)
	if m.failFirst > 0 {
		m.failFirst--
		return nil, m.failErr
	}
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return len(m.vector) }

func (m *mockEmbedder) ModelName() string { return "mock-embedder" }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

// mockLLM is a canned generative model for tests.
type mockLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	prompts  []string
}

var _ driven.LLMService = (*mockLLM)(nil)

func (m *mockLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }

func (m *mockLLM) Ping(_ context.Context) error { return nil }

func (m *mockLLM) Close() error { return nil }
