package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventServer(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/matches/{matchID}/blocks/{blockID}/seats/events", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "blockID") == "404" {
			http.NotFound(w, r)
			return
		}

		if chi.URLParam(r, "blockID") == "500" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"message":"boom"}`)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		fmt.Fprintf(w, "event: snapshot\ndata: {\"block\":%s}\n\n", chi.URLParam(r, "blockID"))
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "event: changes\ndata: {\"changes\":[]}\n\n")
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPDialer_Dial(t *testing.T) {
	srv := newEventServer(t)
	d := NewHTTPDialer(srv.URL+"/", srv.Client())

	stream, err := d.Dial(context.Background(), 3, 12)
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, EventSnapshot, ev.Name)
	assert.JSONEq(t, `{"block":12}`, string(ev.Data))

	ev, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, EventChanges, ev.Name)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestHTTPDialer_DialRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		blockID int64
		wantErr string
	}{
		{name: "should reject non-200 status", blockID: 404, wantErr: "status 404"},
		{name: "should reject non event-stream content", blockID: 500, wantErr: "content type"},
	}

	srv := newEventServer(t)
	d := NewHTTPDialer(srv.URL, srv.Client())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := d.Dial(context.Background(), 1, tt.blockID)

			assert.Nil(t, stream)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEventsPath(t *testing.T) {
	assert.Equal(t, "/matches/5/blocks/9/seats/events", EventsPath(5, 9))
}
