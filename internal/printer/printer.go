package printer

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/metinatakli/seatsync/internal/domain"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes human readable watch output. It is safe for concurrent use
// since status, seat and command output arrive from different goroutines.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Success(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	green.Fprintf(p.w, "✓ %s\n", fmt.Sprintf(format, a...))
}

func (p *Printer) Warning(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	yellow.Fprintf(p.w, "! %s\n", fmt.Sprintf(format, a...))
}

func (p *Printer) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	red.Fprintf(p.w, "✗ %s\n", err)
}

func (p *Printer) Info(format string, a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, format+"\n", a...)
}

func (p *Printer) Status(change domain.StatusChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := faint.Sprint(time.Now().Format("15:04:05"))
	label := fmt.Sprintf("block %d: %s -> %s", change.BlockID, change.From, change.To)

	switch change.To {
	case domain.StatusConnected:
		fmt.Fprintf(p.w, "%s %s\n", ts, green.Sprint(label))
	case domain.StatusReconnecting:
		fmt.Fprintf(p.w, "%s %s (attempt %d: %v)\n", ts, yellow.Sprint(label), change.Attempt, change.Err)
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "%s %s (%v); type 'reconnect' to retry\n", ts, red.Sprint(label), change.Err)
	default:
		fmt.Fprintf(p.w, "%s %s\n", ts, cyan.Sprint(label))
	}
}

// Summary prints seat counts per state.
func (p *Printer) Summary(blockID int64, version uint64, seats []domain.Seat) {
	counts := make(map[domain.SeatState]int, 3)
	for _, seat := range seats {
		counts[seat.State]++
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "block %d v%d: %s available, %s held, %s occupied\n",
		blockID, version,
		green.Sprint(counts[domain.SeatAvailable]),
		yellow.Sprint(counts[domain.SeatHold]),
		red.Sprint(counts[domain.SeatOccupied]),
	)
}

func (p *Printer) Seats(seats []domain.Seat) {
	p.mu.Lock()
	defer p.mu.Unlock()

	row := -1
	var line strings.Builder

	flush := func() {
		if line.Len() > 0 {
			fmt.Fprintln(p.w, line.String())
			line.Reset()
		}
	}

	for _, seat := range seats {
		if seat.Row != row {
			flush()
			row = seat.Row
			fmt.Fprintf(&line, "R%-3d", row)
		}

		cell := fmt.Sprintf(" %d", seat.ID)
		switch seat.State {
		case domain.SeatAvailable:
			line.WriteString(green.Sprint(cell))
		case domain.SeatHold:
			line.WriteString(yellow.Sprint(cell))
		default:
			line.WriteString(red.Sprint(cell))
		}
	}

	flush()
}

func (p *Printer) Holds(held []domain.HeldSeat) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(held) == 0 {
		fmt.Fprintln(p.w, "no held seats")
		return
	}

	for _, h := range held {
		expires := ""
		if h.ExpiresAt != nil {
			expires = " until " + h.ExpiresAt.Local().Format("15:04:05")
		}

		name := h.BlockName
		if name == "" {
			name = fmt.Sprintf("block %d", h.BlockID)
		}

		fmt.Fprintf(p.w, "seat %d %s (%s)%s\n", h.SeatID, h.SeatLabel, name, expires)
	}
}
