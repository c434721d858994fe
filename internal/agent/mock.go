package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/nvandessel/cocofix/internal/models"
)

// Mock is a scriptable Classifier for tests. Responses are consumed in
// order; when the script is exhausted the last entry repeats. The zero
// value confirms the request's current label.
type Mock struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     int
}

// MockResponse is one scripted reply.
type MockResponse struct {
	Label     string
	NoneMatch bool
	Err       error
}

// NewMock creates a mock that replays the given responses.
func NewMock(responses ...MockResponse) *Mock {
	return &Mock{responses: responses}
}

// Classify returns the next scripted response.
func (m *Mock) Classify(_ context.Context, req Request) (models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.responses) == 0 {
		return models.Decision{Label: req.CurrentLabel, Source: models.SourceAgent}, nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	if r.Err != nil {
		return models.Decision{}, r.Err
	}
	if r.NoneMatch {
		return models.Decision{NoneMatch: true, Source: models.SourceAgent}, nil
	}
	return models.Decision{Label: r.Label, Source: models.SourceAgent}, nil
}

// Calls returns how many times Classify has been invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FailingMock returns a mock whose every call fails with the given
// message, for retry-path tests.
func FailingMock(msg string) *Mock {
	return NewMock(MockResponse{Err: fmt.Errorf("%s", msg)})
}
