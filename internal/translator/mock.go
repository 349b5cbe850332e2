package translator

import (
	"context"
	"sync"
)

// Mock is a scriptable Translator for tests. TranslateFunc decides the
// outcome per call; when nil the mock echoes the input text.
type Mock struct {
	TranslateFunc func(ctx context.Context, req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

// NewMock returns an identity-translating mock.
func NewMock() *Mock { return &Mock{} }

// Name returns the provider identifier.
func (m *Mock) Name() string { return "mock" }

// TranslateChunk records the request and applies TranslateFunc.
func (m *Mock) TranslateChunk(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, req)
	}
	return req.Text, nil
}

// Calls returns a copy of the recorded requests.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
