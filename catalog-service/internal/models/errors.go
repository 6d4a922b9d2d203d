package models

import "tattoo-app/pkg/apperr"

var (
	ErrNotFound  = apperr.New(apperr.ErrNotFound, "design not found")
	ErrInvalidID = apperr.New(apperr.ErrInvalidInput, "invalid id")
)
