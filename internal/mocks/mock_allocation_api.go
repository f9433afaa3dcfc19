package mocks

import (
	"context"

	"github.com/metinatakli/seatsync/internal/allocation"
	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockAllocationAPI struct {
	mock.Mock
}

func (m *MockAllocationAPI) Hold(ctx context.Context, userID, seatID int64) (domain.AllocationStatus, error) {
	args := m.Called(ctx, userID, seatID)
	return args.Get(0).(domain.AllocationStatus), args.Error(1)
}

func (m *MockAllocationAPI) Release(ctx context.Context, userID, seatID int64) (domain.AllocationStatus, error) {
	args := m.Called(ctx, userID, seatID)
	return args.Get(0).(domain.AllocationStatus), args.Error(1)
}

func (m *MockAllocationAPI) Confirm(ctx context.Context, userID int64, seatIDs []int64) (allocation.ConfirmResult, error) {
	args := m.Called(ctx, userID, seatIDs)
	return args.Get(0).(allocation.ConfirmResult), args.Error(1)
}
