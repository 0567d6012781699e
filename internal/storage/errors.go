package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTerminalState is returned when updating a swap transaction that
	// already reached completed or failed.
	ErrTerminalState = errors.New("record is in a terminal state")

	// ErrPendingExists is returned when inserting a pending swap transaction
	// while another one is pending for the same user, pair and strategy.
	ErrPendingExists = errors.New("pending record exists for key")
)
