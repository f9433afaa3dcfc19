package commands

import (
	"github.com/metinatakli/seatsync/internal/config"
	"github.com/spf13/cobra"
)

var (
	version = "devel"
	envFile string

	// flagValues only backs flag registration; config.Load reads the flags
	// that were actually set.
	flagValues = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "seatwatch",
	Short: "Live seat availability for one block of a match",
	Long: `seatwatch keeps a local copy of a block's seat map in sync with the
allocation server's push channel and lets you hold, release and confirm
seats against it.

Settings come from defaults, a .env file, SEATSYNC_* environment variables
and flags, in increasing order of precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Errors are returned unprinted.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func SetVersionInfo(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path of the .env file (missing file is ignored)")
	config.BindFlags(rootCmd.PersistentFlags(), &flagValues)
}
