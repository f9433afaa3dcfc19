package channel

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventReader_Next(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Event
	}{
		{
			name:  "should decode named event",
			input: "event: snapshot\ndata: {\"seats\":[]}\n\n",
			want:  []Event{{Name: "snapshot", Data: []byte(`{"seats":[]}`)}},
		},
		{
			name:  "should default name to message",
			input: "data: hello\n\n",
			want:  []Event{{Name: "message", Data: []byte("hello")}},
		},
		{
			name:  "should join multi-line data",
			input: "event: changes\ndata: {\"a\":\ndata: 1}\n\n",
			want:  []Event{{Name: "changes", Data: []byte("{\"a\":\n1}")}},
		},
		{
			name:  "should skip comments and events without data",
			input: ": keep-alive\n\nevent: ping\n\nid: 7\nevent: changes\ndata: x\n\n",
			want:  []Event{{ID: "7", Name: "changes", Data: []byte("x")}},
		},
		{
			name:  "should drop trailing event without terminating blank line",
			input: "event: snapshot\ndata: x\n\nevent: changes\ndata: y\n",
			want:  []Event{{Name: "snapshot", Data: []byte("x")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEventReader(strings.NewReader(tt.input))

			var got []Event
			for {
				ev, err := r.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, ev)
			}

			assert.Equal(t, tt.want, got)
		})
	}
}
