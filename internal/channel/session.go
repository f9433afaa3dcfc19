package channel

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/metinatakli/seatsync/internal/domain"
)

// RetryPolicy bounds reconnection after connection errors. Delays grow
// exponentially from InitialInterval up to MaxInterval.
type RetryPolicy struct {
	MaxRetries          int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          3,
		InitialInterval:     time.Second,
		MaxInterval:         10 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.1,
	}
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// State is a point-in-time view of the active session.
type State struct {
	SessionID string
	BlockID   int64
	Status    domain.ChannelStatus
	Attempt   int
}

type session struct {
	id      string
	blockID int64
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// backoff is only touched by the session goroutine.
	backoff *backoff.ExponentialBackOff

	mu      sync.Mutex
	machine *machine
}

func newSession(parent context.Context, blockID int64, policy RetryPolicy) *session {
	ctx, cancel := context.WithCancel(parent)

	return &session{
		id:      uuid.NewString(),
		blockID: blockID,
		parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		backoff: policy.newBackOff(),
		machine: newMachine(policy.MaxRetries),
	}
}

func (s *session) state() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		SessionID: s.id,
		BlockID:   s.blockID,
		Status:    s.machine.status,
		Attempt:   s.machine.attempt,
	}
}

// apply runs step against the machine and describes the resulting change.
func (s *session) apply(step func(*machine) error, cause error) (domain.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.machine.status
	if err := step(s.machine); err != nil {
		return domain.StatusChange{}, err
	}

	return domain.StatusChange{
		SessionID: s.id,
		BlockID:   s.blockID,
		From:      from,
		To:        s.machine.status,
		Attempt:   s.machine.attempt,
		Err:       cause,
	}, nil
}
