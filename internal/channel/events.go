package channel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seatsync/internal/domain"
)

const (
	EventSnapshot = "snapshot"
	EventChanges  = "changes"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type snapshotPayload struct {
	Seats              []seatPayload             `json:"seats" validate:"dive"`
	AllocationStatuses []allocationStatusPayload `json:"allocationStatuses" validate:"dive"`
}

type seatPayload struct {
	ID         int64 `json:"id" validate:"gt=0"`
	RowNumber  *int  `json:"rowNumber"`
	Row        *int  `json:"row"`
	SeatNumber int   `json:"seatNumber"`
}

type allocationStatusPayload struct {
	SeatID        int64  `json:"seatId" validate:"gt=0"`
	State         string `json:"state" validate:"required,seat_state"`
	HoldExpiresAt string `json:"holdExpiresAt"`
}

type changesPayload struct {
	Changes []changePayload `json:"changes" validate:"dive"`
}

type changePayload struct {
	SeatID int64  `json:"seatId"`
	State  string `json:"state"`
	Status string `json:"status"`
}

type seatChange struct {
	SeatID int64  `validate:"gt=0"`
	State  string `validate:"required,seat_state"`
}

// unwrap returns the payload inside the {status, data} envelope, or the raw
// body when it is not enveloped.
func unwrap(raw []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return raw, nil
	}

	return env.Data, nil
}

func DecodeSnapshot(v *validator.Validate, raw []byte) (domain.BlockSnapshot, error) {
	data, err := unwrap(raw)
	if err != nil {
		return domain.BlockSnapshot{}, err
	}

	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.BlockSnapshot{}, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	if payload.Seats == nil {
		return domain.BlockSnapshot{}, fmt.Errorf("%w: snapshot without seats", domain.ErrMalformedPayload)
	}

	if err := v.Struct(payload); err != nil {
		return domain.BlockSnapshot{}, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	snap := domain.BlockSnapshot{
		Seats:              make([]domain.SeatInfo, len(payload.Seats)),
		AllocationStatuses: make([]domain.AllocationStatus, len(payload.AllocationStatuses)),
	}

	for i, seat := range payload.Seats {
		row := 0
		switch {
		case seat.RowNumber != nil:
			row = *seat.RowNumber
		case seat.Row != nil:
			row = *seat.Row
		}

		snap.Seats[i] = domain.SeatInfo{ID: seat.ID, Row: row, SeatNumber: seat.SeatNumber}
	}

	for i, status := range payload.AllocationStatuses {
		snap.AllocationStatuses[i] = domain.AllocationStatus{
			SeatID:        status.SeatID,
			State:         domain.SeatState(status.State),
			HoldExpiresAt: domain.ParseTimestamp(status.HoldExpiresAt),
		}
	}

	return snap, nil
}

func DecodeChanges(v *validator.Validate, raw []byte) ([]domain.SeatChange, error) {
	data, err := unwrap(raw)
	if err != nil {
		return nil, err
	}

	var payload changesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}

	changes := make([]domain.SeatChange, 0, len(payload.Changes))
	for _, c := range payload.Changes {
		state := c.State
		if state == "" {
			state = c.Status
		}

		sc := seatChange{SeatID: c.SeatID, State: state}
		if err := v.Struct(sc); err != nil {
			return nil, fmt.Errorf("%w: seat %d: %w", domain.ErrMalformedPayload, c.SeatID, err)
		}

		changes = append(changes, domain.SeatChange{SeatID: sc.SeatID, State: domain.SeatState(sc.State)})
	}

	return changes, nil
}
