package channel

import (
	"errors"
	"fmt"

	"github.com/metinatakli/seatsync/internal/domain"
)

var ErrInvalidTransition = errors.New("invalid channel status transition")

var transitions = map[domain.ChannelStatus][]domain.ChannelStatus{
	domain.StatusDisconnected: {domain.StatusConnecting},
	domain.StatusConnecting:   {domain.StatusConnected, domain.StatusReconnecting, domain.StatusFailed, domain.StatusDisconnected},
	domain.StatusConnected:    {domain.StatusReconnecting, domain.StatusFailed, domain.StatusDisconnected},
	domain.StatusReconnecting: {domain.StatusConnecting, domain.StatusDisconnected},
	domain.StatusFailed:       {domain.StatusDisconnected},
}

// machine is the connection state machine of a single session. It is not
// safe for concurrent use; the owning session guards it.
type machine struct {
	status     domain.ChannelStatus
	attempt    int
	maxRetries int
}

func newMachine(maxRetries int) *machine {
	return &machine{
		status:     domain.StatusDisconnected,
		maxRetries: maxRetries,
	}
}

func (m *machine) transition(to domain.ChannelStatus) error {
	for _, allowed := range transitions[m.status] {
		if allowed == to {
			m.status = to
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.status, to)
}

func (m *machine) connect() error {
	return m.transition(domain.StatusConnecting)
}

// opened records a confirmed connection and resets the attempt counter.
func (m *machine) opened() error {
	if err := m.transition(domain.StatusConnected); err != nil {
		return err
	}

	m.attempt = 0
	return nil
}

// errored records one connection error. It reports whether another attempt
// should be scheduled; otherwise the machine has entered failed.
func (m *machine) errored() (bool, error) {
	m.attempt++

	if m.attempt >= m.maxRetries {
		return false, m.transition(domain.StatusFailed)
	}

	return true, m.transition(domain.StatusReconnecting)
}

func (m *machine) close() error {
	if m.status == domain.StatusDisconnected {
		return nil
	}

	return m.transition(domain.StatusDisconnected)
}
