package models

import (
	"time"
)

// QueueStatus represents the state of a join request
type QueueStatus string

const (
	// QueueStatusPending indicates a request awaiting host action
	QueueStatusPending QueueStatus = "pending"

	// QueueStatusApproved indicates the host admitted the player
	QueueStatusApproved QueueStatus = "approved"

	// QueueStatusRejected indicates the host declined the request
	QueueStatusRejected QueueStatus = "rejected"

	// QueueStatusExpired indicates the request aged out before the host acted
	QueueStatusExpired QueueStatus = "expired"
)

// Terminal reports whether the status admits no further transitions
func (s QueueStatus) Terminal() bool {
	return s != QueueStatusPending
}

// QueueEntry represents a pending request to join a session
type QueueEntry struct {
	// ID is the unique identifier for the entry
	ID string `json:"id"`

	// SessionID is the session the user wants to join
	SessionID string `json:"session_id"`

	// UserID is the requesting user
	UserID string `json:"user_id"`

	// Color is the marking color the user asked for
	Color string `json:"color"`

	// Team is the team number the user asked for
	Team int `json:"team"`

	// Status is the current state of the request
	Status QueueStatus `json:"status"`

	// RequestedAt is when the request was made
	RequestedAt time.Time `json:"requested_at"`

	// ProcessedAt is when the request reached a terminal status
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
