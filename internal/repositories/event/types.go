package event

import (
	"github.com/gridhall/bingo/internal/models"
)

// AppendInput contains parameters for appending an event
type AppendInput struct {
	// Event is the record to append; its Version field is assigned by the log
	Event *models.SessionEvent
}

// ListSinceInput contains parameters for reading the log
type ListSinceInput struct {
	// SessionID is the session whose log to read
	SessionID string

	// SinceVersion excludes events at or below this version (0 = full log)
	SinceVersion int64
}

// LatestVersionInput contains parameters for reading the log head
type LatestVersionInput struct {
	// SessionID is the session whose log head to read
	SessionID string
}
