package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/metinatakli/seatsync/cmd/seatwatch/commands"
	"github.com/metinatakli/seatsync/internal/vcs"
)

func main() {
	commands.SetVersionInfo(vcs.Version())

	if err := commands.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
