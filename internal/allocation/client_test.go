package allocation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path      string
	requestID string
	body      map[string]any
}

func newAllocationServer(t *testing.T, requests chan<- recordedRequest) *httptest.Server {
	t.Helper()

	record := func(r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests <- recordedRequest{path: r.URL.Path, requestID: r.Header.Get("X-Request-Id"), body: body}
	}

	r := chi.NewRouter()
	r.Route("/matches/{matchID}/allocation/seats", func(r chi.Router) {
		r.Post("/confirm", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":200,"data":{"confirmedSeats":[{"seatId":1,"status":"OCCUPIED"},{"seatId":2,"status":"OCCUPIED"}]}}`))
		})
		r.Post("/{seatID}/hold", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.Header().Set("Content-Type", "application/json")
			if chi.URLParam(r, "seatID") == "9" {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"message":"Seat is already held","timestamp":"2026-05-01T18:00:00"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":200,"data":{"seatId":5,"state":"HOLD","holdExpiresAt":"2026-05-01T18:10:00Z"}}`))
		})
		r.Post("/{seatID}/release", func(w http.ResponseWriter, r *http.Request) {
			record(r)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"Seat is held by another user"}`))
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_Hold(t *testing.T) {
	requests := make(chan recordedRequest, 1)
	srv := newAllocationServer(t, requests)
	c := NewClient(srv.URL, 3, srv.Client())

	status, err := c.Hold(context.Background(), 42, 5)
	require.NoError(t, err)

	expires := time.Date(2026, 5, 1, 18, 10, 0, 0, time.UTC)
	assert.Equal(t, int64(5), status.SeatID)
	assert.Equal(t, domain.SeatHold, status.State)
	require.NotNil(t, status.HoldExpiresAt)
	assert.True(t, expires.Equal(*status.HoldExpiresAt))

	req := <-requests
	assert.Equal(t, "/matches/3/allocation/seats/5/hold", req.path)
	assert.NotEmpty(t, req.requestID)
	assert.Equal(t, map[string]any{"userId": float64(42)}, req.body)
}

func TestClient_HoldConflict(t *testing.T) {
	requests := make(chan recordedRequest, 1)
	srv := newAllocationServer(t, requests)
	c := NewClient(srv.URL, 3, srv.Client())

	_, err := c.Hold(context.Background(), 42, 9)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "Seat is already held", apiErr.Message)
	assert.True(t, apiErr.Conflict())
	assert.True(t, IsRemote(err))
}

func TestClient_ReleaseForbidden(t *testing.T) {
	requests := make(chan recordedRequest, 1)
	srv := newAllocationServer(t, requests)
	c := NewClient(srv.URL, 3, srv.Client())

	_, err := c.Release(context.Background(), 42, 5)

	assert.EqualError(t, err, "allocation request failed with status 403: Seat is held by another user")
	assert.Equal(t, "/matches/3/allocation/seats/5/release", (<-requests).path)
}

func TestClient_Confirm(t *testing.T) {
	requests := make(chan recordedRequest, 1)
	srv := newAllocationServer(t, requests)
	c := NewClient(srv.URL+"/", 3, srv.Client())

	result, err := c.Confirm(context.Background(), 42, []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, []domain.SeatChange{
		{SeatID: 1, State: domain.SeatOccupied},
		{SeatID: 2, State: domain.SeatOccupied},
	}, result.ConfirmedSeats)

	req := <-requests
	assert.Equal(t, "/matches/3/allocation/seats/confirm", req.path)
	assert.Equal(t, map[string]any{"userId": float64(42), "seatIds": []any{float64(1), float64(2)}}, req.body)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, 3, nil)
	_, err := c.Hold(context.Background(), 42, 1)

	require.Error(t, err)
	assert.False(t, IsRemote(err))
}
