package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
)

// Benign ingestion outcomes. Callers may drop the chunk instead of surfacing a failure.
var (
	ErrMeetingNotLive = fmt.Errorf("%w: meeting is not live", ErrInvalidState)
	ErrNoSpeech       = fmt.Errorf("%w: could not derive text from chunk", ErrInvalidInput)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// NewError builds a typed error without an underlying cause.
func NewError(kind error, operation, message string) error {
	return fmt.Errorf("%s: %w: %s", operation, kind, message)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
