package domain

// ChannelStatus is the connection state of a block's push channel session.
type ChannelStatus string

const (
	StatusDisconnected ChannelStatus = "disconnected"
	StatusConnecting   ChannelStatus = "connecting"
	StatusConnected    ChannelStatus = "connected"
	StatusReconnecting ChannelStatus = "reconnecting"
	StatusFailed       ChannelStatus = "failed"
)

type StatusChange struct {
	SessionID string
	BlockID   int64
	From      ChannelStatus
	To        ChannelStatus
	Attempt   int
	Err       error
}
