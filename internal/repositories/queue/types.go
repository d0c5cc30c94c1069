package queue

import (
	"time"

	"github.com/gridhall/bingo/internal/models"
)

// CreateEntryInput contains parameters for storing a pending entry
type CreateEntryInput struct {
	// Entry is the pending entry to store
	Entry *models.QueueEntry
}

// GetEntryInput contains parameters for retrieving an entry
type GetEntryInput struct {
	// EntryID is the unique identifier of the entry
	EntryID string
}

// UpdateStatusInput contains parameters for a status transition
type UpdateStatusInput struct {
	// EntryID is the unique identifier of the entry
	EntryID string

	// Status is the terminal status to transition to
	Status models.QueueStatus

	// ProcessedAt is when the transition happened
	ProcessedAt time.Time
}

// ListPendingInput contains parameters for listing pending entries
type ListPendingInput struct {
	// SessionID is the session whose queue to list
	SessionID string
}

// SweepExpiredInput contains parameters for the TTL sweep
type SweepExpiredInput struct {
	// SessionID is the session whose queue to sweep
	SessionID string

	// OlderThan is the cutoff; pending entries requested before it expire
	OlderThan time.Time
}
