package client

import "errors"

var (
	// ErrNotConnected is returned when an operation requires an open connection.
	ErrNotConnected = errors.New("not connected to server")

	// ErrInvalidInput is returned when a required field is empty after trimming.
	ErrInvalidInput = errors.New("invalid input")
)
