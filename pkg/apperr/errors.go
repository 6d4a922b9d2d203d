package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrInvalidPair            = errors.New("invalid pair")
)

var kinds = []struct {
	err    error
	code   string
	status int
}{
	{ErrInvalidInput, "InvalidInput", http.StatusBadRequest},
	{ErrNotFound, "NotFound", http.StatusNotFound},
	{ErrForbidden, "Forbidden", http.StatusForbidden},
	{ErrUnauthorized, "Unauthorized", http.StatusUnauthorized},
	{ErrInvalidStateTransition, "InvalidStateTransition", http.StatusConflict},
	{ErrSlotUnavailable, "SlotUnavailable", http.StatusConflict},
	{ErrInvalidPair, "InvalidPair", http.StatusBadRequest},
}

// Error is a domain failure with a human readable message. It unwraps to
// one of the Err* kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Code returns the stable machine name of err's kind, or "Internal".
func Code(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "Internal"
}

func StatusCode(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// IsDomain reports whether err carries one of the known kinds.
func IsDomain(err error) bool {
	return StatusCode(err) != http.StatusInternalServerError
}
