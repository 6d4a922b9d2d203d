package models

import (
	"errors"
	"fmt"
)

var (
	ErrProvider       = errors.New("image provider failed")
	ErrFileTooLarge   = errors.New("file too large")
	ErrQuotaExceeded  = errors.New("daily image limit reached")
	ErrNotImage       = errors.New("only image uploads are accepted")
	ErrProviderNotSet = errors.New("image provider is not configured")
)

// QuotaError carries the numbers the client shows next to the limit message.
type QuotaError struct {
	Limit     int
	UsedToday int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily image limit reached (%d of %d)", e.UsedToday, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
