package allocation

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/metinatakli/seatsync/internal/seatmap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type UserProvider interface {
	CurrentUser() (domain.User, bool)
}

type staticUser domain.User

// StaticUser authenticates every call as u. A zero user id means nobody is
// signed in.
func StaticUser(u domain.User) UserProvider {
	return staticUser(u)
}

func (u staticUser) CurrentUser() (domain.User, bool) {
	return domain.User(u), u.ID > 0
}

// BlockContext exposes the selected block and its epoch. Completions compare
// the epoch they started under before touching the seat map.
type BlockContext interface {
	Current() (domain.Block, uint64, bool)
	IsCurrent(epoch uint64) bool
}

type Option func(*Service)

// WithLostHoldListener registers fn for held seats dropped because an
// authoritative update reported them in another state.
func WithLostHoldListener(fn func(domain.HeldSeat)) Option {
	return func(s *Service) {
		s.lostListeners = append(s.lostListeners, fn)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service applies hold and release optimistically to the seat map and keeps
// the caller's held-seat set.
type Service struct {
	api     API
	store   *seatmap.Store
	users   UserProvider
	blocks  BlockContext
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics instruments
	now     func() time.Time

	lostListeners []func(domain.HeldSeat)

	mu       sync.Mutex
	held     map[int64]domain.HeldSeat
	inFlight map[int64]*pending
}

// pending tracks a hold or release awaiting the server. superseded is set
// when an authoritative update for the seat arrives in the meantime; the
// completion then leaves the seat map alone.
type pending struct {
	blockID    int64
	superseded bool
	state      domain.SeatState
}

func NewService(
	api API,
	store *seatmap.Store,
	users UserProvider,
	blocks BlockContext,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Service{
		api:      api,
		store:    store,
		users:    users,
		blocks:   blocks,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		metrics:  newInstruments(),
		now:      time.Now,
		held:     make(map[int64]domain.HeldSeat),
		inFlight: make(map[int64]*pending),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Service) Hold(ctx context.Context, seatID int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "allocation.Hold",
		trace.WithAttributes(attribute.Int64("seatsync.seat_id", seatID)))
	defer func() { s.finish(ctx, span, "hold", err) }()

	user, ok := s.users.CurrentUser()
	if !ok {
		return domain.ErrUnauthenticated
	}

	block, epoch, ok := s.blocks.Current()
	if !ok {
		return domain.ErrNoActiveBlock
	}

	record, err := s.beginHold(block, seatID)
	if err != nil || record == nil {
		return err
	}

	status, err := s.api.Hold(ctx, user.ID, seatID)

	s.mu.Lock()

	p := s.complete(seatID)
	current := s.blocks.IsCurrent(epoch)

	if err != nil {
		delete(s.held, seatID)
		if current && !p.superseded {
			s.store.CompareAndSet(block.ID, seatID, domain.SeatHold, domain.SeatAvailable)
		}
		s.mu.Unlock()

		s.metrics.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("seatsync.operation", "hold")))
		s.logger.Warn("seat hold rejected, rolled back",
			"seat_id", seatID, "block_id", block.ID, "stale", !current, "superseded", p.superseded, "error", err)
		return fmt.Errorf("failed to hold seat %d: %w", seatID, err)
	}

	record.ExpiresAt = status.HoldExpiresAt

	// A sale reported while the hold was pending outranks the server's
	// earlier acceptance.
	if p.superseded && p.state == domain.SeatOccupied {
		delete(s.held, seatID)
		s.mu.Unlock()

		s.notifyLost(*record)
		return nil
	}

	s.held[seatID] = *record
	s.mu.Unlock()

	if !current {
		s.logger.Debug("hold completed after block switch", "seat_id", seatID, "block_id", block.ID)
	}

	return nil
}

// beginHold checks the preconditions of a hold and applies the optimistic
// transition. A nil record without error means the seat is already held.
func (s *Service) beginHold(block domain.Block, seatID int64) (*domain.HeldSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[seatID]; busy {
		return nil, fmt.Errorf("%w: seat %d", domain.ErrRequestInFlight, seatID)
	}

	if _, mine := s.held[seatID]; mine {
		return nil, nil
	}

	seat, found := s.store.Get(seatID)
	if !found || s.store.BlockID() != block.ID {
		return nil, fmt.Errorf("%w: seat %d", domain.ErrSeatNotFound, seatID)
	}

	switch seat.State {
	case domain.SeatOccupied:
		return nil, fmt.Errorf("%w: seat %d", domain.ErrSeatOccupied, seatID)
	case domain.SeatHold:
		return nil, fmt.Errorf("%w: seat %d", domain.ErrSeatHeldByOther, seatID)
	}

	if !s.store.CompareAndSet(block.ID, seatID, domain.SeatAvailable, domain.SeatHold) {
		return nil, fmt.Errorf("%w: seat %d", domain.ErrSeatHeldByOther, seatID)
	}

	record := domain.HeldSeat{
		SeatID:    seatID,
		BlockID:   block.ID,
		BlockName: block.Name,
		SeatLabel: seat.Label(),
		HeldAt:    s.now(),
	}

	s.held[seatID] = record
	s.inFlight[seatID] = &pending{blockID: block.ID}

	return &record, nil
}

// Release gives up one of the caller's holds. Seats held in a block other
// than the selected one are released remotely without touching the map.
func (s *Service) Release(ctx context.Context, seatID int64) (err error) {
	ctx, span := s.tracer.Start(ctx, "allocation.Release",
		trace.WithAttributes(attribute.Int64("seatsync.seat_id", seatID)))
	defer func() { s.finish(ctx, span, "release", err) }()

	user, ok := s.users.CurrentUser()
	if !ok {
		return domain.ErrUnauthenticated
	}

	block, epoch, ok := s.blocks.Current()
	if !ok {
		return domain.ErrNoActiveBlock
	}

	record, err := s.beginRelease(block, seatID)
	if err != nil {
		return err
	}

	_, err = s.api.Release(ctx, user.ID, seatID)
	if err == nil {
		s.mu.Lock()
		s.complete(seatID)
		s.mu.Unlock()

		return nil
	}

	s.mu.Lock()

	p := s.complete(seatID)
	switch {
	case !p.superseded:
		s.held[seatID] = record
		if record.BlockID == block.ID && s.blocks.IsCurrent(epoch) {
			s.store.CompareAndSet(block.ID, seatID, domain.SeatAvailable, domain.SeatHold)
		}
	case p.state == domain.SeatHold:
		s.held[seatID] = record
	}
	s.mu.Unlock()

	s.metrics.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("seatsync.operation", "release")))
	s.logger.Warn("seat release rejected, rolled back",
		"seat_id", seatID, "block_id", record.BlockID, "superseded", p.superseded, "error", err)

	return fmt.Errorf("failed to release seat %d: %w", seatID, err)
}

// complete ends the in-flight request for seatID. Callers hold s.mu.
func (s *Service) complete(seatID int64) *pending {
	p, ok := s.inFlight[seatID]
	if !ok {
		return &pending{}
	}

	delete(s.inFlight, seatID)
	return p
}

func (s *Service) beginRelease(block domain.Block, seatID int64) (domain.HeldSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[seatID]; busy {
		return domain.HeldSeat{}, fmt.Errorf("%w: seat %d", domain.ErrRequestInFlight, seatID)
	}

	record, mine := s.held[seatID]

	if !mine || record.BlockID == block.ID {
		seat, found := s.store.Get(seatID)
		if !found || s.store.BlockID() != block.ID {
			return domain.HeldSeat{}, fmt.Errorf("%w: seat %d", domain.ErrSeatNotFound, seatID)
		}

		if seat.State != domain.SeatHold {
			return domain.HeldSeat{}, fmt.Errorf("%w: seat %d", domain.ErrSeatNotHeld, seatID)
		}

		if !mine {
			return domain.HeldSeat{}, fmt.Errorf("%w: seat %d", domain.ErrForeignHold, seatID)
		}

		if !s.store.CompareAndSet(block.ID, seatID, domain.SeatHold, domain.SeatAvailable) {
			return domain.HeldSeat{}, fmt.Errorf("%w: seat %d", domain.ErrSeatNotHeld, seatID)
		}
	}

	delete(s.held, seatID)
	s.inFlight[seatID] = &pending{blockID: record.BlockID}

	return record, nil
}

// Confirm turns held seats into a reservation. With no ids it confirms the
// whole held set. Local hold state is left as is; callers that leave the
// block afterwards use ClearHeld.
func (s *Service) Confirm(ctx context.Context, seatIDs ...int64) (result ConfirmResult, err error) {
	ctx, span := s.tracer.Start(ctx, "allocation.Confirm")
	defer func() { s.finish(ctx, span, "confirm", err) }()

	user, ok := s.users.CurrentUser()
	if !ok {
		return ConfirmResult{}, domain.ErrUnauthenticated
	}

	ids, err := s.confirmable(seatIDs)
	if err != nil {
		return ConfirmResult{}, err
	}

	span.SetAttributes(attribute.Int("seatsync.seat_count", len(ids)))

	result, err = s.api.Confirm(ctx, user.ID, ids)
	if err != nil {
		s.logger.Warn("seat confirmation rejected", "seats", ids, "error", err)
		return ConfirmResult{}, fmt.Errorf("failed to confirm seats: %w", err)
	}

	s.logger.Info("seats confirmed", "seats", ids, "confirmed", len(result.ConfirmedSeats))

	return result, nil
}

func (s *Service) confirmable(seatIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.held) == 0 {
		return nil, domain.ErrNoSeatsToConfirm
	}

	if len(s.inFlight) > 0 {
		return nil, domain.ErrRequestInFlight
	}

	if len(seatIDs) == 0 {
		ids := make([]int64, 0, len(s.held))
		for id := range s.held {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		return ids, nil
	}

	for _, id := range seatIDs {
		if _, mine := s.held[id]; !mine {
			return nil, fmt.Errorf("%w: seat %d", domain.ErrSeatNotHeld, id)
		}
	}

	return slices.Clone(seatIDs), nil
}

// HeldSeats returns the caller's held seats ordered by seat id.
func (s *Service) HeldSeats() []domain.HeldSeat {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := make([]domain.HeldSeat, 0, len(s.held))
	for _, record := range s.held {
		seats = append(seats, record)
	}

	slices.SortFunc(seats, func(a, b domain.HeldSeat) int {
		return cmp.Compare(a.SeatID, b.SeatID)
	})

	return seats
}

func (s *Service) ClearHeld() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.held)
}

// AuthoritativeUpdate drops held records whose seat an authoritative update
// reports as no longer held. For seats with a request in flight the state is
// remembered, and the completion defers to it instead of rolling back.
func (s *Service) AuthoritativeUpdate(blockID int64, changes []domain.SeatChange) {
	var lost []domain.HeldSeat

	s.mu.Lock()
	for _, change := range changes {
		if p, busy := s.inFlight[change.SeatID]; busy {
			if p.blockID == blockID {
				p.superseded = true
				p.state = change.State
			}
			continue
		}

		record, mine := s.held[change.SeatID]
		if !mine || record.BlockID != blockID || change.State == domain.SeatHold {
			continue
		}

		delete(s.held, change.SeatID)
		lost = append(lost, record)
	}
	s.mu.Unlock()

	s.notifyLost(lost...)
}

func (s *Service) notifyLost(lost ...domain.HeldSeat) {
	for _, record := range lost {
		s.metrics.lostHolds.Add(context.Background(), 1)
		s.logger.Warn("held seat lost to authoritative update",
			"seat_id", record.SeatID, "block_id", record.BlockID, "seat", record.SeatLabel)

		for _, fn := range s.lostListeners {
			fn(record)
		}
	}
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"

	switch {
	case err == nil:
	case domain.IsPrecondition(err):
		outcome = "precondition"
	case IsRemote(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	s.metrics.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("seatsync.operation", op),
		attribute.String("seatsync.outcome", outcome),
	))
}
