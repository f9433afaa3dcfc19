package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/metinatakli/seatsync/internal/channel"
	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/metinatakli/seatsync/internal/seatmap"
)

// Session is the push channel of the selected block.
type Session interface {
	Open(ctx context.Context, blockID int64) error
	Close()
	Reconnect() error
	State() (channel.State, bool)
}

// Coordinator owns the block context. Every selection change starts a new
// epoch; work begun under an older epoch must not mutate shared state.
type Coordinator struct {
	session Session
	store   *seatmap.Store
	logger  *slog.Logger

	// switchMu serializes selection changes.
	switchMu sync.Mutex

	mu       sync.RWMutex
	block    domain.Block
	selected bool
	epoch    uint64
}

func New(session Session, store *seatmap.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Coordinator{
		session: session,
		store:   store,
		logger:  logger,
	}
}

// SelectBlock closes the previous session, clears the seat map and opens a
// session for block. A zero block id deselects.
func (c *Coordinator) SelectBlock(ctx context.Context, block domain.Block) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.session.Close()

	c.mu.Lock()
	previous := c.block.ID
	c.epoch++
	c.block = block
	c.selected = block.ID > 0
	c.mu.Unlock()

	c.store.Reset(block.ID)

	if block.ID <= 0 {
		c.logger.Info("block deselected", "previous_block_id", previous)
		return nil
	}

	if err := c.session.Open(ctx, block.ID); err != nil {
		return fmt.Errorf("failed to open session for block %d: %w", block.ID, err)
	}

	c.logger.Info("block selected", "block_id", block.ID, "block", block.Name, "previous_block_id", previous)

	return nil
}

func (c *Coordinator) Deselect() {
	_ = c.SelectBlock(context.Background(), domain.Block{})
}

func (c *Coordinator) Current() (domain.Block, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.block, c.epoch, c.selected
}

func (c *Coordinator) IsCurrent(epoch uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.selected && c.epoch == epoch
}

// Reconnect restarts a failed push session for the selected block.
func (c *Coordinator) Reconnect() error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	if _, _, ok := c.Current(); !ok {
		return domain.ErrNoActiveBlock
	}

	return c.session.Reconnect()
}

func (c *Coordinator) Status() channel.State {
	state, _ := c.session.State()
	return state
}

// Err reports domain.ErrReconnectRequired while the session is failed.
func (c *Coordinator) Err() error {
	state, ok := c.session.State()
	if ok && state.Status == domain.StatusFailed {
		return fmt.Errorf("%w: block %d", domain.ErrReconnectRequired, state.BlockID)
	}

	return nil
}

func (c *Coordinator) Close() {
	c.Deselect()
}
