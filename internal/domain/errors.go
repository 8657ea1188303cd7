package domain

import "errors"

// Error taxonomy. Repositories and services wrap these with context;
// the handler boundary maps them to HTTP statuses exactly once.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)
