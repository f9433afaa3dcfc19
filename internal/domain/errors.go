package domain

import "errors"

var (
	ErrUnauthenticated   = errors.New("user not authenticated")
	ErrSeatNotFound      = errors.New("seat not found in current block")
	ErrSeatOccupied      = errors.New("seat is already occupied")
	ErrSeatHeldByOther   = errors.New("seat is held by another user")
	ErrForeignHold       = errors.New("cannot release a seat held by another user")
	ErrSeatNotHeld       = errors.New("seat is not held")
	ErrRequestInFlight   = errors.New("a request for this seat is already in progress")
	ErrNoSeatsToConfirm  = errors.New("no held seats to confirm")
	ErrNoActiveBlock     = errors.New("no block selected")
	ErrReconnectRequired = errors.New("reconnection required")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrInvalidSeatState  = errors.New("invalid seat state")
)

var preconditionErrors = []error{
	ErrUnauthenticated,
	ErrSeatNotFound,
	ErrSeatOccupied,
	ErrSeatHeldByOther,
	ErrForeignHold,
	ErrSeatNotHeld,
	ErrRequestInFlight,
	ErrNoSeatsToConfirm,
	ErrNoActiveBlock,
}

// IsPrecondition reports whether err was raised locally before any network
// call was made.
func IsPrecondition(err error) bool {
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
