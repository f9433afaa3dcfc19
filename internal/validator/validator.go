package validator

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seatsync/internal/domain"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_state", validateSeatState)
	validator.RegisterValidation("base_url", validateBaseURL)

	return validator
}

func validateSeatState(fl validator.FieldLevel) bool {
	return domain.SeatState(fl.Field().String()).Valid()
}

func validateBaseURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "seat_state":
		return "must be one of AVAILABLE, HOLD, OCCUPIED"
	case "base_url":
		return "must be an absolute http(s) URL"
	default:
		return "is invalid"
	}
}
