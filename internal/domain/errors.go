package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownHotel    = errors.New("unknown hotel")
	ErrInvalidStatus   = errors.New("invalid status transition")
	ErrInvalidInput    = errors.New("invalid input")
	ErrFeedUnavailable = errors.New("feed unavailable")
)
