package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var errUnknownCommand = errors.New("unknown command")

type command struct {
	name string
	ids  []int64
	arg  string
}

// parseCommand reads one stdin line. Blank lines yield an empty command.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}

	cmd := command{name: strings.ToLower(fields[0])}
	rest := fields[1:]

	switch cmd.name {
	case "hold", "release", "block":
		if len(rest) == 0 {
			return command{}, fmt.Errorf("%s needs an id", cmd.name)
		}

		id, err := parseID(rest[0])
		if err != nil {
			return command{}, err
		}
		cmd.ids = []int64{id}

		if cmd.name == "block" {
			cmd.arg = strings.Join(rest[1:], " ")
		} else if len(rest) > 1 {
			return command{}, fmt.Errorf("%s takes one id", cmd.name)
		}

	case "confirm":
		for _, raw := range rest {
			id, err := parseID(raw)
			if err != nil {
				return command{}, err
			}
			cmd.ids = append(cmd.ids, id)
		}

	case "reconnect", "seats", "holds", "status", "help", "quit", "exit":
		if len(rest) > 0 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.name)
		}
		if cmd.name == "exit" {
			cmd.name = "quit"
		}

	default:
		return command{}, fmt.Errorf("%w: %q (try 'help')", errUnknownCommand, fields[0])
	}

	return cmd, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}

	return id, nil
}

// readLines streams lines of r until EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	return lines
}
