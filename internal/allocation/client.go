package allocation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/seatsync/internal/domain"
)

const maxResponseBytes = 1 << 20

// APIError is a rejection reported by the allocation server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("allocation request failed with status %d", e.StatusCode)
	}

	return fmt.Sprintf("allocation request failed with status %d: %s", e.StatusCode, e.Message)
}

// Conflict reports whether the seat was taken by another actor.
func (e *APIError) Conflict() bool {
	return e.StatusCode == http.StatusConflict
}

// ConfirmResult lists the seats the server turned into a reservation.
type ConfirmResult struct {
	ConfirmedSeats []domain.SeatChange
}

// API is the remote side of seat allocation.
type API interface {
	Hold(ctx context.Context, userID, seatID int64) (domain.AllocationStatus, error)
	Release(ctx context.Context, userID, seatID int64) (domain.AllocationStatus, error)
	Confirm(ctx context.Context, userID int64, seatIDs []int64) (ConfirmResult, error)
}

type Client struct {
	baseURL string
	matchID int64
	http    *http.Client
}

func NewClient(baseURL string, matchID int64, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		matchID: matchID,
		http:    httpClient,
	}
}

type userRequest struct {
	UserID int64 `json:"userId"`
}

type confirmRequest struct {
	UserID  int64   `json:"userId"`
	SeatIDs []int64 `json:"seatIds"`
}

type successResponse struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type errorResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type allocationStatus struct {
	SeatID        int64  `json:"seatId"`
	State         string `json:"state"`
	HoldExpiresAt string `json:"holdExpiresAt"`
}

type confirmResponse struct {
	ConfirmedSeats []struct {
		SeatID int64  `json:"seatId"`
		Status string `json:"status"`
		State  string `json:"state"`
	} `json:"confirmedSeats"`
}

func HoldPath(matchID, seatID int64) string {
	return fmt.Sprintf("/matches/%d/allocation/seats/%d/hold", matchID, seatID)
}

func ReleasePath(matchID, seatID int64) string {
	return fmt.Sprintf("/matches/%d/allocation/seats/%d/release", matchID, seatID)
}

func ConfirmPath(matchID int64) string {
	return fmt.Sprintf("/matches/%d/allocation/seats/confirm", matchID)
}

func (c *Client) Hold(ctx context.Context, userID, seatID int64) (domain.AllocationStatus, error) {
	return c.seatRequest(ctx, HoldPath(c.matchID, seatID), userID, seatID)
}

func (c *Client) Release(ctx context.Context, userID, seatID int64) (domain.AllocationStatus, error) {
	return c.seatRequest(ctx, ReleasePath(c.matchID, seatID), userID, seatID)
}

func (c *Client) Confirm(ctx context.Context, userID int64, seatIDs []int64) (ConfirmResult, error) {
	var resp confirmResponse

	err := c.post(ctx, ConfirmPath(c.matchID), confirmRequest{UserID: userID, SeatIDs: seatIDs}, &resp)
	if err != nil {
		return ConfirmResult{}, err
	}

	result := ConfirmResult{ConfirmedSeats: make([]domain.SeatChange, 0, len(resp.ConfirmedSeats))}
	for _, seat := range resp.ConfirmedSeats {
		state := seat.State
		if state == "" {
			state = seat.Status
		}

		parsed, err := domain.ParseSeatState(state)
		if err != nil {
			return ConfirmResult{}, fmt.Errorf("%w: confirmed seat %d: %w", domain.ErrMalformedPayload, seat.SeatID, err)
		}

		result.ConfirmedSeats = append(result.ConfirmedSeats, domain.SeatChange{SeatID: seat.SeatID, State: parsed})
	}

	return result, nil
}

func (c *Client) seatRequest(ctx context.Context, path string, userID, seatID int64) (domain.AllocationStatus, error) {
	var resp allocationStatus

	if err := c.post(ctx, path, userRequest{UserID: userID}, &resp); err != nil {
		return domain.AllocationStatus{}, err
	}

	status := domain.AllocationStatus{
		SeatID:        resp.SeatID,
		State:         domain.SeatState(resp.State),
		HoldExpiresAt: domain.ParseTimestamp(resp.HoldExpiresAt),
	}

	if status.SeatID == 0 {
		status.SeatID = seatID
	}

	return status, nil
}

// post sends body as JSON and decodes the data field of the success
// envelope into dst. Non-2xx responses become *APIError.
func (c *Client) post(ctx context.Context, path string, body any, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("allocation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read allocation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var errResp errorResponse
		if json.Unmarshal(raw, &errResp) == nil {
			apiErr.Message = errResp.Message
		}

		return apiErr
	}

	if dst == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var env successResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	data := []byte(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = raw
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	return nil
}

// IsRemote reports whether err came from the allocation server rather than
// from a local precondition or the transport.
func IsRemote(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
