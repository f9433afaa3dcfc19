// Package api holds the JSON bodies served by the local status server.
package api

import "time"

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type ChannelStatusResponse struct {
	MatchId   int64   `json:"matchId"`
	BlockId   int64   `json:"blockId,omitempty"`
	BlockName string  `json:"blockName,omitempty"`
	SessionId string  `json:"sessionId,omitempty"`
	Status    string  `json:"status"`
	Attempt   int     `json:"attempt"`
	Error     *string `json:"error,omitempty"`
}

type Seat struct {
	Id         int64  `json:"id"`
	Row        int    `json:"rowNumber"`
	SeatNumber int    `json:"seatNumber"`
	Label      string `json:"label"`
	State      string `json:"state"`
}

type SeatMapResponse struct {
	BlockId int64  `json:"blockId"`
	Version uint64 `json:"version"`
	Seats   []Seat `json:"seats"`
}

type HeldSeat struct {
	SeatId    int64      `json:"seatId"`
	BlockId   int64      `json:"blockId"`
	BlockName string     `json:"blockName,omitempty"`
	SeatLabel string     `json:"seatLabel"`
	HeldAt    time.Time  `json:"heldAt"`
	ExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
}

type HeldSeatsResponse struct {
	Seats []HeldSeat `json:"seats"`
}
