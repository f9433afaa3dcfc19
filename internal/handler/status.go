package handler

import (
	"net/http"

	"github.com/metinatakli/seatsync/api"
	"github.com/metinatakli/seatsync/internal/channel"
	"github.com/metinatakli/seatsync/internal/domain"
	"github.com/metinatakli/seatsync/internal/jsonutil"
)

type BlockStatus interface {
	Current() (domain.Block, uint64, bool)
	Status() channel.State
	Err() error
}

type SeatMap interface {
	BlockID() int64
	Version() uint64
	Seats() []domain.Seat
}

type HeldSeats interface {
	HeldSeats() []domain.HeldSeat
}

// StatusHandler serves read-only views of the synchronized state.
type StatusHandler struct {
	matchID int64
	blocks  BlockStatus
	seats   SeatMap
	holds   HeldSeats
}

func NewStatusHandler(matchID int64, blocks BlockStatus, seats SeatMap, holds HeldSeats) *StatusHandler {
	return &StatusHandler{
		matchID: matchID,
		blocks:  blocks,
		seats:   seats,
		holds:   holds,
	}
}

func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	state := h.blocks.Status()

	resp := api.ChannelStatusResponse{
		MatchId:   h.matchID,
		SessionId: state.SessionID,
		Status:    string(state.Status),
		Attempt:   state.Attempt,
	}

	if block, _, ok := h.blocks.Current(); ok {
		resp.BlockId = block.ID
		resp.BlockName = block.Name
	}

	if err := h.blocks.Err(); err != nil {
		msg := err.Error()
		resp.Error = &msg
	}

	jsonutil.WriteJSON(w, http.StatusOK, resp, nil)
}

func (h *StatusHandler) GetSeats(w http.ResponseWriter, r *http.Request) {
	seats := h.seats.Seats()

	resp := api.SeatMapResponse{
		BlockId: h.seats.BlockID(),
		Version: h.seats.Version(),
		Seats:   make([]api.Seat, len(seats)),
	}

	for i, seat := range seats {
		resp.Seats[i] = api.Seat{
			Id:         seat.ID,
			Row:        seat.Row,
			SeatNumber: seat.SeatNumber,
			Label:      seat.Label(),
			State:      string(seat.State),
		}
	}

	jsonutil.WriteJSON(w, http.StatusOK, resp, nil)
}

func (h *StatusHandler) GetHolds(w http.ResponseWriter, r *http.Request) {
	held := h.holds.HeldSeats()

	resp := api.HeldSeatsResponse{Seats: make([]api.HeldSeat, len(held))}
	for i, seat := range held {
		resp.Seats[i] = api.HeldSeat{
			SeatId:    seat.SeatID,
			BlockId:   seat.BlockID,
			BlockName: seat.BlockName,
			SeatLabel: seat.SeatLabel,
			HeldAt:    seat.HeldAt,
			ExpiresAt: seat.ExpiresAt,
		}
	}

	jsonutil.WriteJSON(w, http.StatusOK, resp, nil)
}
