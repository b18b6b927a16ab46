package nlu

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a scriptable Provider for tests. Responses are returned
// in order; after the script is exhausted the last entry repeats.
type MockProvider struct {
	mu        sync.Mutex
	script    []mockReply
	calls     int
	available bool
}

type mockReply struct {
	content string
	err     error
}

// NewMockProvider creates an available mock with an empty script.
func NewMockProvider() *MockProvider {
	return &MockProvider{available: true}
}

// Reply queues a successful completion whose content is the given JSON.
func (m *MockProvider) Reply(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockReply{content: content})
	return m
}

// Fail queues an error response.
func (m *MockProvider) Fail(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockReply{err: err})
	return m
}

// SetAvailable toggles the provider's availability.
func (m *MockProvider) SetAvailable(ok bool) { m.available = ok }

// Calls returns how many Chat calls were made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// Available implements Provider.
func (m *MockProvider) Available() bool { return m.available }

// Chat implements Provider by replaying the script.
func (m *MockProvider) Chat(_ context.Context, _ *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.script) == 0 {
		return nil, fmt.Errorf("mock provider has no scripted replies")
	}
	idx := m.calls
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	m.calls++

	reply := m.script[idx]
	if reply.err != nil {
		return nil, reply.err
	}
	return &ChatResponse{Content: reply.content, Model: "mock"}, nil
}
