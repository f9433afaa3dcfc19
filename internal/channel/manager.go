package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seatsync/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errStreamClosed = errors.New("event stream closed by server")

// Handler receives decoded push events for the block of the active session.
type Handler interface {
	ApplySnapshot(blockID int64, snap domain.BlockSnapshot)
	ApplyChanges(blockID int64, changes []domain.SeatChange)
}

type Config struct {
	MatchID int64
	Retry   RetryPolicy
}

type Option func(*Manager)

// WithStatusListener registers fn for every status change of the active
// session. Listeners run synchronously and must not call back into the
// Manager except for State.
func WithStatusListener(fn func(domain.StatusChange)) Option {
	return func(m *Manager) {
		m.listeners = append(m.listeners, fn)
	}
}

// Manager owns at most one push session at a time. Events and status changes
// of a session are delivered only while it is the active one, so nothing
// from a closed session reaches the handler after Close or Open returns.
type Manager struct {
	cfg       Config
	dialer    Dialer
	handler   Handler
	validate  *validator.Validate
	logger    *slog.Logger
	listeners []func(domain.StatusChange)
	metrics   instruments

	// opMu serializes Open, Close and Reconnect.
	opMu sync.Mutex
	// mu is held while delivering to the handler and listeners.
	mu      sync.Mutex
	current atomic.Pointer[session]
}

func NewManager(
	cfg Config,
	dialer Dialer,
	handler Handler,
	v *validator.Validate,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		handler:  handler,
		validate: v,
		logger:   logger,
		metrics:  newInstruments(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Open closes any active session and starts a new one for blockID. The
// session lives until Close, the next Open, or ctx is done.
func (m *Manager) Open(ctx context.Context, blockID int64) error {
	if blockID <= 0 {
		return fmt.Errorf("%w: block id %d", domain.ErrNoActiveBlock, blockID)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.closeLocked()
	m.start(ctx, blockID)

	return nil
}

func (m *Manager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.closeLocked()
}

// Reconnect restarts a failed session for the same block with a fresh
// attempt counter. It does nothing while the session is still retrying or
// connected.
func (m *Manager) Reconnect() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	s := m.current.Load()
	if s == nil {
		return domain.ErrNoActiveBlock
	}

	if s.state().Status != domain.StatusFailed {
		return nil
	}

	m.logger.Info("manual reconnect requested", "block_id", s.blockID, "session_id", s.id)

	m.closeLocked()
	m.start(s.parent, s.blockID)

	return nil
}

// State reports the active session. ok is false when no block is open.
func (m *Manager) State() (State, bool) {
	s := m.current.Load()
	if s == nil {
		return State{Status: domain.StatusDisconnected}, false
	}

	return s.state(), true
}

func (m *Manager) start(ctx context.Context, blockID int64) {
	s := newSession(ctx, blockID, m.cfg.Retry)

	m.mu.Lock()
	m.current.Store(s)
	m.mu.Unlock()

	m.logger.Debug("starting push session", "block_id", blockID, "session_id", s.id)

	go m.run(s)
}

func (m *Manager) closeLocked() {
	s := m.current.Load()
	if s == nil {
		return
	}

	m.mu.Lock()
	m.current.Store(nil)
	s.cancel()

	change, err := s.apply((*machine).close, nil)
	if err == nil && change.From != change.To {
		m.emit(change)
	}
	m.mu.Unlock()

	<-s.done

	m.logger.Debug("push session closed", "block_id", s.blockID, "session_id", s.id)
}

func (m *Manager) run(s *session) {
	defer close(s.done)
	defer m.finish(s)

	attrs := metric.WithAttributes(attribute.Int64("seatsync.block_id", s.blockID))

	for {
		if !m.step(s, (*machine).connect, nil) {
			return
		}

		m.metrics.connectAttempts.Add(s.ctx, 1, attrs)

		stream, err := m.dialer.Dial(s.ctx, m.cfg.MatchID, s.blockID)
		if err == nil {
			if !m.step(s, (*machine).opened, nil) {
				_ = stream.Close()
				return
			}

			s.backoff.Reset()
			m.logger.Info("push channel connected", "block_id", s.blockID, "session_id", s.id)

			err = m.consume(s, stream)
		}

		if s.ctx.Err() != nil {
			return
		}

		retry, ok := m.fail(s, err)
		if !ok || !retry {
			return
		}

		timer := time.NewTimer(s.backoff.NextBackOff())
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// step applies a non-error transition and publishes it. It returns false
// when the session can no longer advance.
func (m *Manager) step(s *session, fn func(*machine) error, cause error) bool {
	change, err := s.apply(fn, cause)
	if err != nil {
		return false
	}

	return m.deliver(s, func() { m.emit(change) })
}

func (m *Manager) fail(s *session, cause error) (bool, bool) {
	var retry bool

	change, err := s.apply(func(mc *machine) error {
		var err error
		retry, err = mc.errored()
		return err
	}, cause)
	if err != nil {
		return false, false
	}

	if retry {
		m.logger.Warn("push channel error, retrying",
			"block_id", s.blockID, "session_id", s.id, "attempt", change.Attempt, "error", cause)
	} else {
		change.Err = fmt.Errorf("%w: %w", domain.ErrReconnectRequired, cause)
		m.logger.Error("push channel failed",
			"block_id", s.blockID, "session_id", s.id, "attempt", change.Attempt, "error", cause)
	}

	if !m.deliver(s, func() { m.emit(change) }) {
		return false, false
	}

	return retry, true
}

func (m *Manager) consume(s *session, stream Stream) error {
	stop := context.AfterFunc(s.ctx, func() { _ = stream.Close() })
	defer func() {
		if stop() {
			_ = stream.Close()
		}
	}()

	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errStreamClosed
			}
			return err
		}

		m.dispatch(s, ev)
	}
}

func (m *Manager) dispatch(s *session, ev Event) {
	attrs := metric.WithAttributes(
		attribute.Int64("seatsync.block_id", s.blockID),
		attribute.String("seatsync.event", ev.Name),
	)

	switch ev.Name {
	case EventSnapshot:
		snap, err := DecodeSnapshot(m.validate, ev.Data)
		if err != nil {
			m.drop(s, ev, err)
			return
		}

		if m.deliver(s, func() { m.handler.ApplySnapshot(s.blockID, snap) }) {
			m.metrics.events.Add(s.ctx, 1, attrs)
		}

	case EventChanges:
		changes, err := DecodeChanges(m.validate, ev.Data)
		if err != nil {
			m.drop(s, ev, err)
			return
		}

		if m.deliver(s, func() { m.handler.ApplyChanges(s.blockID, changes) }) {
			m.metrics.events.Add(s.ctx, 1, attrs)
		}

	default:
		m.logger.Debug("ignoring push event", "event", ev.Name, "block_id", s.blockID)
	}
}

func (m *Manager) drop(s *session, ev Event, err error) {
	m.metrics.droppedPayloads.Add(s.ctx, 1, metric.WithAttributes(
		attribute.Int64("seatsync.block_id", s.blockID),
		attribute.String("seatsync.event", ev.Name),
	))

	m.logger.Warn("dropping malformed push payload",
		"event", ev.Name, "block_id", s.blockID, "session_id", s.id, "error", err)
}

// deliver runs fn only while s is the active session.
func (m *Manager) deliver(s *session, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Load() != s || s.ctx.Err() != nil {
		return false
	}

	fn()
	return true
}

// finish settles a session whose goroutine ended while still active. A
// failed session stays failed until Reconnect.
func (m *Manager) finish(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Load() != s {
		return
	}

	if s.state().Status == domain.StatusFailed {
		return
	}

	change, err := s.apply((*machine).close, nil)
	if err == nil && change.From != change.To {
		m.emit(change)
	}
}

func (m *Manager) emit(change domain.StatusChange) {
	for _, fn := range m.listeners {
		fn(change)
	}
}
