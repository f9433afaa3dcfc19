package channel

import (
	"testing"

	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_RetriesUntilFailed(t *testing.T) {
	m := newMachine(3)

	for i := 1; i < 3; i++ {
		require.NoError(t, m.connect())
		retry, err := m.errored()
		require.NoError(t, err)
		assert.True(t, retry)
		assert.Equal(t, domain.StatusReconnecting, m.status)
		assert.Equal(t, i, m.attempt)
	}

	require.NoError(t, m.connect())
	retry, err := m.errored()
	require.NoError(t, err)
	assert.False(t, retry)
	assert.Equal(t, domain.StatusFailed, m.status)

	assert.ErrorIs(t, m.connect(), ErrInvalidTransition, "failed is terminal for the session")
}

func TestMachine_OpenedResetsAttempt(t *testing.T) {
	m := newMachine(3)

	require.NoError(t, m.connect())
	_, err := m.errored()
	require.NoError(t, err)
	require.NoError(t, m.connect())
	require.NoError(t, m.opened())

	assert.Equal(t, domain.StatusConnected, m.status)
	assert.Zero(t, m.attempt)

	retry, err := m.errored()
	require.NoError(t, err)
	assert.True(t, retry)
	assert.Equal(t, 1, m.attempt)
}

func TestMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.ChannelStatus
		to      domain.ChannelStatus
		wantErr bool
	}{
		{name: "disconnected to connecting", from: domain.StatusDisconnected, to: domain.StatusConnecting},
		{name: "connecting to connected", from: domain.StatusConnecting, to: domain.StatusConnected},
		{name: "connected to reconnecting", from: domain.StatusConnected, to: domain.StatusReconnecting},
		{name: "reconnecting to connecting", from: domain.StatusReconnecting, to: domain.StatusConnecting},
		{name: "failed to disconnected", from: domain.StatusFailed, to: domain.StatusDisconnected},
		{name: "disconnected to connected", from: domain.StatusDisconnected, to: domain.StatusConnected, wantErr: true},
		{name: "failed to connecting", from: domain.StatusFailed, to: domain.StatusConnecting, wantErr: true},
		{name: "reconnecting to connected", from: domain.StatusReconnecting, to: domain.StatusConnected, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &machine{status: tt.from, maxRetries: 3}

			err := m.transition(tt.to)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, m.status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, m.status)
		})
	}
}

func TestMachine_CloseFromDisconnectedIsNoop(t *testing.T) {
	m := newMachine(3)

	assert.NoError(t, m.close())
	assert.Equal(t, domain.StatusDisconnected, m.status)
}
