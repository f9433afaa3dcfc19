package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/metinatakli/seatsync/internal/allocation"
	"github.com/metinatakli/seatsync/internal/channel"
	"github.com/metinatakli/seatsync/internal/config"
	"github.com/metinatakli/seatsync/internal/coordinator"
	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/metinatakli/seatsync/internal/handler"
	"github.com/metinatakli/seatsync/internal/printer"
	"github.com/metinatakli/seatsync/internal/reconcile"
	"github.com/metinatakli/seatsync/internal/seatmap"
	"github.com/metinatakli/seatsync/internal/validator"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type application struct {
	cfg     config.Config
	logger  *slog.Logger
	out     *printer.Printer
	store   *seatmap.Store
	manager *channel.Manager
	blocks  *coordinator.Coordinator
	seats   *allocation.Service
}

func newApplication(cfg config.Config, logger *slog.Logger, out *printer.Printer) *application {
	store := seatmap.NewStore()
	reconciler := reconcile.New(store, logger.With("component", "reconcile"))

	// Event streams are long lived, so only allocation requests get a timeout.
	streamClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	requestClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.HTTPTimeout,
	}

	manager := channel.NewManager(
		channel.Config{MatchID: cfg.MatchID, Retry: cfg.RetryPolicy()},
		channel.NewHTTPDialer(cfg.BaseURL, streamClient),
		reconciler,
		validator.NewValidator(),
		logger.With("component", "channel", "match_id", cfg.MatchID),
		channel.WithStatusListener(out.Status),
	)

	blocks := coordinator.New(manager, store, logger.With("component", "coordinator"))

	seats := allocation.NewService(
		allocation.NewClient(cfg.BaseURL, cfg.MatchID, requestClient),
		store,
		allocation.StaticUser(domain.User{ID: cfg.UserID}),
		blocks,
		logger.With("component", "allocation"),
		allocation.WithLostHoldListener(func(h domain.HeldSeat) {
			out.Warning("seat %d (%s) was taken by someone else, hold lost", h.SeatID, h.SeatLabel)
		}),
	)
	reconciler.Observe(seats)

	return &application{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		store:   store,
		manager: manager,
		blocks:  blocks,
		seats:   seats,
	}
}

// run selects the configured block and processes commands from in until
// quit or ctx is done. An exhausted input keeps watching until ctx is done.
func (a *application) run(ctx context.Context, in io.Reader) error {
	if a.cfg.StatusAddr != "" {
		stopStatus, err := a.serveStatus(a.cfg.StatusAddr)
		if err != nil {
			return err
		}
		defer stopStatus()
	}

	defer a.blocks.Close()

	if a.cfg.BlockID > 0 {
		block := domain.Block{ID: a.cfg.BlockID, Name: a.cfg.BlockName}
		if err := a.blocks.SelectBlock(ctx, block); err != nil {
			return err
		}
	}

	go a.watchSeats(ctx)

	lines := readLines(in)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down", "reason", context.Cause(ctx))
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}

			cmd, err := parseCommand(line)
			if err != nil {
				a.out.Error(err)
				continue
			}

			if cmd.name == "quit" {
				return nil
			}

			a.execute(ctx, cmd)
		}
	}
}

func (a *application) execute(ctx context.Context, cmd command) {
	switch cmd.name {
	case "":
		return

	case "block":
		block := domain.Block{ID: cmd.ids[0], Name: cmd.arg}
		if err := a.blocks.SelectBlock(ctx, block); err != nil {
			a.out.Error(err)
			return
		}
		a.out.Success("watching block %d", block.ID)

	case "hold":
		if err := a.seats.Hold(ctx, cmd.ids[0]); err != nil {
			a.out.Error(err)
			return
		}
		a.out.Success("seat %d held", cmd.ids[0])

	case "release":
		if err := a.seats.Release(ctx, cmd.ids[0]); err != nil {
			a.out.Error(err)
			return
		}
		a.out.Success("seat %d released", cmd.ids[0])

	case "confirm":
		result, err := a.seats.Confirm(ctx, cmd.ids...)
		if err != nil {
			a.out.Error(err)
			return
		}

		// The reservation is final; held seats no longer need tracking.
		a.seats.ClearHeld()
		for _, seat := range result.ConfirmedSeats {
			a.out.Success("seat %d %s", seat.SeatID, seat.State)
		}

	case "reconnect":
		if err := a.blocks.Reconnect(); err != nil {
			a.out.Error(err)
		}

	case "seats":
		a.out.Seats(a.store.Seats())

	case "holds":
		a.out.Holds(a.seats.HeldSeats())

	case "status":
		state := a.blocks.Status()
		a.out.Info("block %d: %s (attempt %d)", state.BlockID, state.Status, state.Attempt)
		if err := a.blocks.Err(); err != nil {
			a.out.Error(err)
		}

	case "help":
		a.out.Info("commands: block <id> [name], hold <id>, release <id>, confirm [id...], reconnect, seats, holds, status, quit")
	}
}

func (a *application) watchSeats(ctx context.Context) {
	changed, cancel := a.store.Watch()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			if a.store.Len() > 0 {
				a.out.Summary(a.store.BlockID(), a.store.Version(), a.store.Seats())
			}
		}
	}
}

func (a *application) serveStatus(addr string) (func(), error) {
	srv := &http.Server{
		Handler: handler.Routes(
			a.logger,
			handler.NewHealthcheckHandler(a.cfg.Env),
			handler.NewStatusHandler(a.cfg.MatchID, a.blocks, a.store, a.seats),
		),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(a.logger.Handler(), slog.LevelDebug),
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status server stopped", "error", err)
		}
	}()

	a.logger.Info("starting status server", "addr", ln.Addr().String(), "env", a.cfg.Env)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown status server", "error", err)
		}
	}, nil
}
