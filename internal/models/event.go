package models

import (
	"time"
)

// EventType identifies the kind of state change an event records. The set is
// closed; consumers switch over it exhaustively.
type EventType string

const (
	// EventTypeCellMarked records an accepted mark mutation
	EventTypeCellMarked EventType = "cell_marked"

	// EventTypeCellUnmarked records an accepted unmark mutation
	EventTypeCellUnmarked EventType = "cell_unmarked"

	// EventTypePlayerJoined records a seat being created
	EventTypePlayerJoined EventType = "player_joined"

	// EventTypePlayerLeft records a player departing
	EventTypePlayerLeft EventType = "player_left"

	// EventTypeGameStarted records the waiting -> active transition
	EventTypeGameStarted EventType = "game_started"

	// EventTypeGameEnded records the transition to a terminal status
	EventTypeGameEnded EventType = "game_ended"
)

// NoPosition is the Position value for events not tied to a cell
const NoPosition = -1

// SessionEvent is an immutable record in a session's append-only log
type SessionEvent struct {
	// ID is the unique identifier for the event
	ID string `json:"id"`

	// SessionID is the session the event belongs to
	SessionID string `json:"session_id"`

	// Version is the gapless, strictly increasing per-session sequence
	// number, assigned by the log at append time
	Version int64 `json:"version"`

	// Type is the kind of state change recorded
	Type EventType `json:"type"`

	// PlayerID is the actor that caused the event
	PlayerID string `json:"player_id,omitempty"`

	// Position is the affected cell position, or NoPosition
	Position int `json:"position"`

	// Cell is the post-mutation cell snapshot for cell events
	Cell *Cell `json:"cell,omitempty"`

	// Player is the seat snapshot for join/leave events
	Player *SessionPlayer `json:"player,omitempty"`

	// Winners lists winning player IDs on a game_ended event caused by a win
	Winners []string `json:"winners,omitempty"`

	// WinningTeams lists winning team numbers in team mode
	WinningTeams []int `json:"winning_teams,omitempty"`

	// WinPatterns lists the patterns that produced the win
	WinPatterns []string `json:"win_patterns,omitempty"`

	// Timestamp is when the event was accepted
	Timestamp time.Time `json:"timestamp"`
}
