// Package seatmap holds the in-memory seat map of the selected block. It is the
// single source of truth read by presentation code; every mutation goes
// through one of the Store's update methods, which are serialized by a mutex.
package seatmap

import (
	"cmp"
	"slices"
	"sync"

	"github.com/metinatakli/seatsync/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	blockID int64
	seats   map[int64]domain.Seat
	version uint64

	watchers map[chan struct{}]struct{}
}

func NewStore() *Store {
	return &Store{
		seats:    make(map[int64]domain.Seat),
		watchers: make(map[chan struct{}]struct{}),
	}
}

// Reset empties the map and scopes it to blockID. A blockID of zero means no
// block is selected.
func (s *Store) Reset(blockID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blockID = blockID
	s.seats = make(map[int64]domain.Seat)
	s.bumpLocked()
}

func (s *Store) Clear() {
	s.Reset(0)
}

func (s *Store) BlockID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.blockID
}

// Replace swaps the whole map for seats if the store is still scoped to
// blockID. It returns false when the store has moved on to another block.
func (s *Store) Replace(blockID int64, seats []domain.Seat) bool {
	next := make(map[int64]domain.Seat, len(seats))
	for _, seat := range seats {
		next[seat.ID] = seat
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blockID != blockID {
		return false
	}

	s.seats = next
	s.bumpLocked()

	return true
}

// Patch applies changes in order and returns the ones that touched a known
// seat. Unknown seat ids are skipped.
func (s *Store) Patch(blockID int64, changes []domain.SeatChange) []domain.SeatChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blockID != blockID {
		return nil
	}

	applied := make([]domain.SeatChange, 0, len(changes))
	for _, change := range changes {
		seat, ok := s.seats[change.SeatID]
		if !ok {
			continue
		}

		seat.State = change.State
		s.seats[change.SeatID] = seat
		applied = append(applied, change)
	}

	if len(applied) > 0 {
		s.bumpLocked()
	}

	return applied
}

// CompareAndSet moves a seat from one state to another. It fails when the
// seat is unknown, the block has changed or the seat is no longer in from.
func (s *Store) CompareAndSet(blockID, seatID int64, from, to domain.SeatState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blockID != blockID {
		return false
	}

	seat, ok := s.seats[seatID]
	if !ok || seat.State != from {
		return false
	}

	seat.State = to
	s.seats[seatID] = seat
	s.bumpLocked()

	return true
}

func (s *Store) Get(seatID int64) (domain.Seat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seat, ok := s.seats[seatID]
	return seat, ok
}

// Seats returns a copy of the map ordered by row, then seat number.
func (s *Store) Seats() []domain.Seat {
	s.mu.RLock()
	seats := make([]domain.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		seats = append(seats, seat)
	}
	s.mu.RUnlock()

	slices.SortFunc(seats, func(a, b domain.Seat) int {
		return cmp.Or(
			cmp.Compare(a.Row, b.Row),
			cmp.Compare(a.SeatNumber, b.SeatNumber),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return seats
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.seats)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// Watch returns a channel that receives a signal after mutations. Signals
// are coalesced, so a slow reader sees one pending signal rather than a
// backlog. Call the returned func to stop watching.
func (s *Store) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, ch)
			s.mu.Unlock()
		})
	}

	return ch, stop
}

func (s *Store) bumpLocked() {
	s.version++

	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
