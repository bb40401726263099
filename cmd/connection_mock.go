package cmd

import (
	"context"
	"sync"
)

// MockConnection is a mock implementation of the Connection interface.
type MockConnection struct {
	ConnectFunc    func(ctx context.Context) error
	PublishFunc    func(ctx context.Context, topic string, payload []byte) error
	DisconnectFunc func()
	LostChan       chan error

	mu     sync.Mutex
	topics []string
}

func (m *MockConnection) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockConnection) Publish(ctx context.Context, topic string, payload []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, payload); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return nil
}

func (m *MockConnection) Disconnect() {
	if m.DisconnectFunc != nil {
		m.DisconnectFunc()
	}
}

func (m *MockConnection) Lost() <-chan error {
	if m.LostChan != nil {
		return m.LostChan
	}
	// never sends; the run ends through the context.
	return make(chan error)
}

// Topics returns every topic published so far.
func (m *MockConnection) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.topics...)
}
