package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUpdateFailed      = errors.New("update failed")
	ErrInvalidDecision   = errors.New("invalid moderation decision")
)

// ValidationError describes a rejected field of a create or update request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError reports a moderation attempt on a listing that left pending
type TransitionError struct {
	ListingID string
	From      ListingStatus
	To        ListingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("listing %s: cannot move from %s to %s", e.ListingID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
