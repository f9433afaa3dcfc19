package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/metinatakli/seatsync/internal/config"
	"github.com/metinatakli/seatsync/internal/printer"
	"github.com/metinatakli/seatsync/internal/telemetry"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream a block's seat map and manage holds interactively",
	Long: `Stream the seat map of a block and print connection and seat changes as
they arrive. Commands are read from stdin, one per line:

  block <id> [name]   switch to another block
  hold <id>           hold a seat
  release <id>        release one of your held seats
  confirm [id...]     confirm held seats (all when no ids are given)
  reconnect           restart a failed push channel
  seats               print the seat map
  holds               print your held seats
  status              print the push channel status
  quit                exit

Examples:
  # Watch block 3 of match 12 as user 42
  seatwatch watch --match 12 --block 3 --user 42

  # Expose the synchronized state on a local status server
  seatwatch watch --match 12 --block 3 --status-addr 127.0.0.1:4000`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(cmd.ErrOrStderr(), telemetry.ParseLevel(cfg.LogLevel), cfg.OtelCollectorUrl != "")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		CollectorURL:   cfg.OtelCollectorUrl,
		Version:        version,
		Env:            cfg.Env,
		MatchID:        cfg.MatchID,
		MetricInterval: cfg.MetricInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	app := newApplication(cfg, logger, printer.New(cmd.OutOrStdout()))

	return app.run(ctx, cmd.InOrStdin())
}
