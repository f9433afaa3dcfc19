package reconcile

import (
	"io"
	"log/slog"

	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/metinatakli/seatsync/internal/seatmap"
)

// Observer is told about every authoritative state that reached the store.
// Snapshot application reports the resolved state of every seat.
type Observer interface {
	AuthoritativeUpdate(blockID int64, changes []domain.SeatChange)
}

type Reconciler struct {
	store     *seatmap.Store
	logger    *slog.Logger
	observers []Observer
}

func New(store *seatmap.Store, logger *slog.Logger, observers ...Observer) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Reconciler{
		store:     store,
		logger:    logger,
		observers: observers,
	}
}

// Observe adds o to the observers notified after each applied update. It
// must be called before events start flowing.
func (r *Reconciler) Observe(o Observer) {
	r.observers = append(r.observers, o)
}

// ApplySnapshot rebuilds the seat map from a full snapshot. Seats without an
// allocation status are AVAILABLE. Any optimistic state not re-asserted by the
// snapshot is lost.
func (r *Reconciler) ApplySnapshot(blockID int64, snap domain.BlockSnapshot) {
	states := make(map[int64]domain.SeatState, len(snap.AllocationStatuses))
	for _, status := range snap.AllocationStatuses {
		states[status.SeatID] = status.State
	}

	seats := make([]domain.Seat, 0, len(snap.Seats))
	resolved := make([]domain.SeatChange, 0, len(snap.Seats))

	for _, info := range snap.Seats {
		state, ok := states[info.ID]
		if !ok {
			state = domain.SeatAvailable
		}

		seats = append(seats, domain.Seat{
			ID:         info.ID,
			Row:        info.Row,
			SeatNumber: info.SeatNumber,
			State:      state,
		})
		resolved = append(resolved, domain.SeatChange{SeatID: info.ID, State: state})
	}

	if !r.store.Replace(blockID, seats) {
		r.logger.Warn("dropping snapshot for inactive block", "block_id", blockID)
		return
	}

	r.logger.Debug("snapshot applied", "block_id", blockID, "seats", len(seats))
	r.notify(blockID, resolved)
}

// ApplyChanges patches seat states in arrival order. Changes for seats that
// are not in the current map are ignored.
func (r *Reconciler) ApplyChanges(blockID int64, changes []domain.SeatChange) {
	if len(changes) == 0 {
		return
	}

	applied := r.store.Patch(blockID, changes)
	if skipped := len(changes) - len(applied); skipped > 0 {
		r.logger.Debug("ignored changes for unknown seats", "block_id", blockID, "skipped", skipped)
	}

	if len(applied) > 0 {
		r.notify(blockID, applied)
	}
}

func (r *Reconciler) notify(blockID int64, changes []domain.SeatChange) {
	for _, o := range r.observers {
		o.AuthoritativeUpdate(blockID, changes)
	}
}
