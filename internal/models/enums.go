package models

import (
	"fmt"
	"strings"
)

// ConversationState is the lifecycle state of a conversation.
type ConversationState string

const (
	StateQueued    ConversationState = "QUEUED"
	StateAllocated ConversationState = "ALLOCATED"
	StateResolved  ConversationState = "RESOLVED"
)

// Valid reports whether s is one of the known conversation states.
func (s ConversationState) Valid() bool {
	switch s {
	case StateQueued, StateAllocated, StateResolved:
		return true
	}
	return false
}

// ParseConversationState converts a wire value (case-insensitive) to a state.
func ParseConversationState(v string) (ConversationState, error) {
	s := ConversationState(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("models: unknown conversation state %q", v)
	}
	return s, nil
}

// OperatorRole is the permission tier of an operator.
type OperatorRole string

const (
	RoleOperator OperatorRole = "OPERATOR"
	RoleManager  OperatorRole = "MANAGER"
	RoleAdmin    OperatorRole = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r OperatorRole) Valid() bool {
	switch r {
	case RoleOperator, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Supervises reports whether the role may act on other operators' work.
func (r OperatorRole) Supervises() bool {
	return r == RoleManager || r == RoleAdmin
}

// ParseOperatorRole converts a wire value (case-insensitive) to a role.
func ParseOperatorRole(v string) (OperatorRole, error) {
	r := OperatorRole(strings.ToUpper(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", fmt.Errorf("models: unknown operator role %q", v)
	}
	return r, nil
}

// Availability is whether an operator can currently take work.
type Availability string

const (
	Available Availability = "AVAILABLE"
	Offline   Availability = "OFFLINE"

	// AvailabilityUnknown is reported, never stored, when an operator
	// has no status record.
	AvailabilityUnknown Availability = "UNKNOWN"
)

// ParseAvailability converts a wire value (case-insensitive) to a storable
// availability. UNKNOWN is not accepted.
func ParseAvailability(v string) (Availability, error) {
	a := Availability(strings.ToUpper(strings.TrimSpace(v)))
	if a != Available && a != Offline {
		return "", fmt.Errorf("models: availability must be AVAILABLE or OFFLINE, got %q", v)
	}
	return a, nil
}

// GraceReason records why a grace period entry was created.
type GraceReason string

const (
	GraceOffline GraceReason = "OFFLINE"
	GraceManual  GraceReason = "MANUAL"
)
