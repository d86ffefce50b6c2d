package model

import "errors"

var (
	// ErrNotFound is returned when no secret exists for an id.
	ErrNotFound = errors.New("secret not found")
	// ErrExhausted is returned when a secret's view budget is fully
	// consumed. It is terminal and distinct from ErrNotFound.
	ErrExhausted = errors.New("secret view budget exhausted")
	// ErrAlreadyExists is returned on insert when the unique id is taken.
	ErrAlreadyExists = errors.New("secret already exists")
	// ErrInvalidInput is returned when a request fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
