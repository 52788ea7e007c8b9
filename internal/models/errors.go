package models

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy shared by every inboxd component. Callers test with
// errors.Is; NotFound and NotEligible are usually reported to users the
// same way, Forbidden never is.
var (
	ErrInvalidID   = errors.New("invalid identifier")
	ErrNotFound    = errors.New("not found")
	ErrNotEligible = errors.New("not eligible")
	ErrForbidden   = errors.New("forbidden")

	// ErrNothingAvailable is the normal outcome of an allocation with no
	// winner. It matches ErrNotEligible.
	ErrNothingAvailable = fmt.Errorf("nothing available: %w", ErrNotEligible)
)

// CleanID trims id and rejects empty or whitespace-only values. name is
// used in the error message.
func CleanID(name, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s is required: %w", name, ErrInvalidID)
	}
	return id, nil
}
