package domain

import (
	"fmt"
	"time"
)

type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatHold      SeatState = "HOLD"
	SeatOccupied  SeatState = "OCCUPIED"
)

// Valid reports whether s belongs to the boundary vocabulary. The check is
// case-sensitive.
func (s SeatState) Valid() bool {
	switch s {
	case SeatAvailable, SeatHold, SeatOccupied:
		return true
	}
	return false
}

func ParseSeatState(raw string) (SeatState, error) {
	s := SeatState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeatState, raw)
	}
	return s, nil
}

type Seat struct {
	ID         int64
	Row        int
	SeatNumber int
	State      SeatState
}

// Label is the human readable seat label used in held-seat summaries.
func (s Seat) Label() string {
	return fmt.Sprintf("R%d-%d", s.Row, s.SeatNumber)
}

// SeatInfo holds the static attributes of a seat as delivered by a snapshot.
type SeatInfo struct {
	ID         int64
	Row        int
	SeatNumber int
}

type SeatChange struct {
	SeatID int64
	State  SeatState
}

type AllocationStatus struct {
	SeatID        int64
	State         SeatState
	HoldExpiresAt *time.Time
}

// BlockSnapshot is the full authoritative state of one block.
type BlockSnapshot struct {
	Seats              []SeatInfo
	AllocationStatuses []AllocationStatus
}

type HeldSeat struct {
	SeatID    int64
	BlockID   int64
	BlockName string
	SeatLabel string
	HeldAt    time.Time
	ExpiresAt *time.Time
}

type Block struct {
	ID   int64
	Name string
}
