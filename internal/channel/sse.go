package channel

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

const maxEventLine = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	ID   string
	Name string
	Data []byte
}

// eventReader decodes a text/event-stream body. Comment lines and retry
// hints are skipped; events without data are not dispatched.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	return &eventReader{scanner: scanner}
}

func (er *eventReader) Next() (Event, error) {
	var (
		ev   Event
		data bytes.Buffer
		seen bool
	)

	for er.scanner.Scan() {
		line := er.scanner.Text()

		if line == "" {
			if !seen {
				ev = Event{}
				continue
			}
			if ev.Name == "" {
				ev.Name = "message"
			}
			ev.Data = bytes.TrimSuffix(data.Bytes(), []byte("\n"))
			return ev, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			ev.Name = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			seen = true
		case "id":
			ev.ID = value
		}
	}

	if err := er.scanner.Err(); err != nil {
		return Event{}, err
	}

	return Event{}, io.EOF
}
