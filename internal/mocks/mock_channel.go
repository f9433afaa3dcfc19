package mocks

import (
	"context"

	"github.com/metinatakli/seatsync/internal/channel"
)

type MockSession struct {
	OpenFunc      func(ctx context.Context, blockID int64) error
	CloseFunc     func()
	ReconnectFunc func() error
	StateFunc     func() (channel.State, bool)
}

func (m *MockSession) Open(ctx context.Context, blockID int64) error {
	return m.OpenFunc(ctx, blockID)
}

func (m *MockSession) Close() {
	m.CloseFunc()
}

func (m *MockSession) Reconnect() error {
	return m.ReconnectFunc()
}

func (m *MockSession) State() (channel.State, bool) {
	return m.StateFunc()
}
