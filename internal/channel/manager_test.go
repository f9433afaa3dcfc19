package channel

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/metinatakli/seatsync/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const waitTimeout = 2 * time.Second

var errDialRefused = errors.New("connection refused")

type fakeStream struct {
	events    chan Event
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Next() (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return Event{}, err
	case <-s.closed:
		return Event{}, io.EOF
	}
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// fakeDialer answers each Dial with the next scripted result, or with
// errDialRefused once the script runs out.
type fakeDialer struct {
	mu      sync.Mutex
	dials   []int64
	streams []*fakeStream
	script  []error
}

func (d *fakeDialer) Dial(ctx context.Context, matchID, blockID int64) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials = append(d.dials, blockID)

	err := errDialRefused
	if len(d.script) > 0 {
		err, d.script = d.script[0], d.script[1:]
	}

	if err != nil {
		return nil, err
	}

	s := newFakeStream()
	d.streams = append(d.streams, s)

	return s, nil
}

func (d *fakeDialer) dialed() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]int64(nil), d.dials...)
}

func (d *fakeDialer) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()

	if i >= len(d.streams) {
		return nil
	}

	return d.streams[i]
}

type recordingHandler struct {
	snapshots chan int64
	changes   chan []domain.SeatChange
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		snapshots: make(chan int64, 16),
		changes:   make(chan []domain.SeatChange, 16),
	}
}

func (h *recordingHandler) ApplySnapshot(blockID int64, snap domain.BlockSnapshot) {
	h.snapshots <- blockID
}

func (h *recordingHandler) ApplyChanges(blockID int64, changes []domain.SeatChange) {
	h.changes <- changes
}

type ManagerTestSuite struct {
	suite.Suite
	dialer   *fakeDialer
	handler  *recordingHandler
	statuses chan domain.StatusChange
	manager  *Manager
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	s.dialer = &fakeDialer{}
	s.handler = newRecordingHandler()
	s.statuses = make(chan domain.StatusChange, 64)
}

func (s *ManagerTestSuite) TearDownTest() {
	if s.manager != nil {
		s.manager.Close()
	}
}

func (s *ManagerTestSuite) newManager(interval time.Duration, script ...error) {
	s.dialer.script = script
	s.manager = NewManager(
		Config{
			MatchID: 1,
			Retry: RetryPolicy{
				MaxRetries:      3,
				InitialInterval: interval,
				MaxInterval:     interval,
				Multiplier:      1,
			},
		},
		s.dialer,
		s.handler,
		validator.NewValidator(),
		nil,
		WithStatusListener(func(c domain.StatusChange) { s.statuses <- c }),
	)
}

func (s *ManagerTestSuite) waitStatus(want domain.ChannelStatus) domain.StatusChange {
	s.T().Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case c := <-s.statuses:
			if c.To == want {
				return c
			}
		case <-deadline:
			s.FailNow("timed out waiting for status " + string(want))
			return domain.StatusChange{}
		}
	}
}

func (s *ManagerTestSuite) waitStream(i int) *fakeStream {
	s.T().Helper()

	var stream *fakeStream
	s.Require().Eventually(func() bool {
		stream = s.dialer.stream(i)
		return stream != nil
	}, waitTimeout, time.Millisecond)

	return stream
}

func (s *ManagerTestSuite) TestOpen_RejectsInvalidBlock() {
	s.newManager(time.Millisecond)

	err := s.manager.Open(context.Background(), 0)

	s.ErrorIs(err, domain.ErrNoActiveBlock)
	_, ok := s.manager.State()
	s.False(ok)
}

func (s *ManagerTestSuite) TestOpen_DeliversEvents() {
	s.newManager(time.Millisecond, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	s.waitStatus(domain.StatusConnected)

	stream := s.waitStream(0)
	stream.events <- Event{Name: EventSnapshot, Data: []byte(`{"seats":[{"id":1,"rowNumber":1,"seatNumber":1}]}`)}
	stream.events <- Event{Name: EventChanges, Data: []byte(`{"changes":[{"seatId":1,"state":"HOLD"}]}`)}

	select {
	case blockID := <-s.handler.snapshots:
		s.Equal(int64(7), blockID)
	case <-time.After(waitTimeout):
		s.FailNow("snapshot not delivered")
	}

	select {
	case changes := <-s.handler.changes:
		s.Equal([]domain.SeatChange{{SeatID: 1, State: domain.SeatHold}}, changes)
	case <-time.After(waitTimeout):
		s.FailNow("changes not delivered")
	}

	state, ok := s.manager.State()
	s.True(ok)
	s.Equal(domain.StatusConnected, state.Status)
	s.Equal(int64(7), state.BlockID)
}

func (s *ManagerTestSuite) TestMalformedPayloadIsDropped() {
	s.newManager(time.Millisecond, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	stream := s.waitStream(0)

	stream.events <- Event{Name: EventSnapshot, Data: []byte(`{"seats":`)}
	stream.events <- Event{Name: EventChanges, Data: []byte(`{"changes":[{"seatId":1,"state":"BOGUS"}]}`)}
	stream.events <- Event{Name: EventChanges, Data: []byte(`{"changes":[{"seatId":2,"state":"OCCUPIED"}]}`)}

	select {
	case changes := <-s.handler.changes:
		s.Equal([]domain.SeatChange{{SeatID: 2, State: domain.SeatOccupied}}, changes)
	case <-time.After(waitTimeout):
		s.FailNow("valid changes not delivered")
	}

	s.Empty(s.handler.snapshots)
	state, _ := s.manager.State()
	s.Equal(domain.StatusConnected, state.Status)
	s.Len(s.dialer.dialed(), 1)
}

func (s *ManagerTestSuite) TestFailsAfterMaxRetries() {
	s.newManager(time.Millisecond)

	s.Require().NoError(s.manager.Open(context.Background(), 7))

	failed := s.waitStatus(domain.StatusFailed)
	s.Equal(3, failed.Attempt)
	s.ErrorIs(failed.Err, domain.ErrReconnectRequired)
	s.ErrorIs(failed.Err, errDialRefused)

	time.Sleep(20 * time.Millisecond)
	s.Equal([]int64{7, 7, 7}, s.dialer.dialed(), "no attempt after failed")

	state, ok := s.manager.State()
	s.True(ok)
	s.Equal(domain.StatusFailed, state.Status)
}

func (s *ManagerTestSuite) TestReconnect_RestartsFailedSession() {
	s.newManager(time.Millisecond)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	s.waitStatus(domain.StatusFailed)
	before, _ := s.manager.State()

	s.dialer.mu.Lock()
	s.dialer.script = []error{nil}
	s.dialer.mu.Unlock()

	s.Require().NoError(s.manager.Reconnect())
	connected := s.waitStatus(domain.StatusConnected)

	s.Zero(connected.Attempt)
	s.NotEqual(before.SessionID, connected.SessionID)
	s.Equal([]int64{7, 7, 7, 7}, s.dialer.dialed())
}

func (s *ManagerTestSuite) TestReconnect_WithoutSession() {
	s.newManager(time.Millisecond)

	s.ErrorIs(s.manager.Reconnect(), domain.ErrNoActiveBlock)
}

func (s *ManagerTestSuite) TestReconnect_IgnoredWhileConnected() {
	s.newManager(time.Millisecond, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	s.waitStatus(domain.StatusConnected)
	before, _ := s.manager.State()

	s.Require().NoError(s.manager.Reconnect())

	after, _ := s.manager.State()
	s.Equal(before.SessionID, after.SessionID)
	s.Len(s.dialer.dialed(), 1)
}

func (s *ManagerTestSuite) TestSuccessfulOpenResetsAttempt() {
	s.newManager(time.Millisecond, errDialRefused, errDialRefused, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	connected := s.waitStatus(domain.StatusConnected)
	s.Zero(connected.Attempt)

	// The stream drops; the next error starts counting from one again.
	s.dialer.mu.Lock()
	s.dialer.script = []error{nil}
	s.dialer.mu.Unlock()
	s.waitStream(0).errs <- io.ErrUnexpectedEOF

	reconnecting := s.waitStatus(domain.StatusReconnecting)
	s.Equal(1, reconnecting.Attempt)
	s.ErrorIs(reconnecting.Err, io.ErrUnexpectedEOF)
	s.waitStatus(domain.StatusConnected)
}

func (s *ManagerTestSuite) TestServerCloseTriggersRetry() {
	s.newManager(time.Millisecond, nil, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	s.waitStatus(domain.StatusConnected)

	s.Require().NoError(s.waitStream(0).Close())

	reconnecting := s.waitStatus(domain.StatusReconnecting)
	s.ErrorIs(reconnecting.Err, errStreamClosed)
	s.waitStatus(domain.StatusConnected)
	s.Equal([]int64{7, 7}, s.dialer.dialed())
}

func (s *ManagerTestSuite) TestSwitchDuringPendingRetry() {
	s.newManager(time.Hour, errDialRefused, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 1))
	s.waitStatus(domain.StatusReconnecting)

	s.Require().NoError(s.manager.Open(context.Background(), 2))
	connected := s.waitStatus(domain.StatusConnected)

	s.Equal(int64(2), connected.BlockID)
	s.Zero(connected.Attempt)
	s.Equal([]int64{1, 2}, s.dialer.dialed(), "the old block must not be redialed")
}

func (s *ManagerTestSuite) TestCloseStopsDelivery() {
	s.newManager(time.Millisecond, nil)

	s.Require().NoError(s.manager.Open(context.Background(), 7))
	s.waitStatus(domain.StatusConnected)
	stream := s.waitStream(0)

	s.manager.Close()
	closed := s.waitStatus(domain.StatusDisconnected)
	s.Equal(domain.StatusConnected, closed.From)

	select {
	case <-stream.closed:
	default:
		s.Fail("stream left open after Close")
	}

	_, ok := s.manager.State()
	s.False(ok)
	s.Empty(s.handler.snapshots)
}

func (s *ManagerTestSuite) TestParentContextEndsSession() {
	s.newManager(time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Require().NoError(s.manager.Open(ctx, 7))
	s.waitStatus(domain.StatusConnected)

	cancel()

	s.waitStatus(domain.StatusDisconnected)
	state, ok := s.manager.State()
	s.True(ok)
	s.Equal(domain.StatusDisconnected, state.Status)
}

func TestRetryPolicy_NewBackOff(t *testing.T) {
	p := RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	}

	b := p.newBackOff()

	require.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 400*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 800*time.Millisecond, b.NextBackOff())
	assert.Equal(t, time.Second, b.NextBackOff())
}
