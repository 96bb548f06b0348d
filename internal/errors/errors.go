package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the failure categories pigeon distinguishes.
var (
	// ErrInvalidInput - configuration or argument is invalid (fatal at startup)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - a file, folder, channel, or project does not exist
	ErrNotFound = errors.New("not found")

	// ErrTransient - remote call failed in a way worth retrying next cycle
	ErrTransient = errors.New("transient error")

	// ErrConflict - destination already exists and collision resolution was exhausted
	ErrConflict = errors.New("conflict")

	// ErrInternal - unexpected internal failure
	ErrInternal = errors.New("internal error")
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFound wraps a message as not found.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps a message as invalid input.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps a message as transient.
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Conflict wraps a message as a conflict.
func Conflict(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConflict)
}

// Internal wraps a message as internal.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// IsCategory checks if err belongs to the given sentinel category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// IsRetryable reports whether a poll loop should simply try again next cycle.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrConflict)
}
