package mocks

import "github.com/metinatakli/seatsync/internal/domain"

type MockBlockContext struct {
	CurrentFunc   func() (domain.Block, uint64, bool)
	IsCurrentFunc func(epoch uint64) bool
}

func (m *MockBlockContext) Current() (domain.Block, uint64, bool) {
	return m.CurrentFunc()
}

func (m *MockBlockContext) IsCurrent(epoch uint64) bool {
	return m.IsCurrentFunc(epoch)
}
