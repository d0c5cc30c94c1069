package models

import (
	"time"
)

// SessionStatus represents the current state of a session
type SessionStatus string

const (
	// SessionStatusWaiting indicates a session is waiting for players to join
	SessionStatusWaiting SessionStatus = "waiting"

	// SessionStatusActive indicates a session is in progress
	SessionStatusActive SessionStatus = "active"

	// SessionStatusCompleted indicates a session has finished, either by a win
	// or because the host ended it
	SessionStatusCompleted SessionStatus = "completed"

	// SessionStatusCancelled indicates a session was abandoned before or during play
	SessionStatusCancelled SessionStatus = "cancelled"
)

// SessionSettings holds the host-chosen rules for a session
type SessionSettings struct {
	// MaxPlayers is the maximum number of seated players
	MaxPlayers int `json:"max_players"`

	// BoardSize is the width/height of the square grid
	BoardSize int `json:"board_size"`

	// AllowSpectators permits read-only subscribers without a seat
	AllowSpectators bool `json:"allow_spectators"`

	// AutoStart starts the session as soon as it is full
	AutoStart bool `json:"auto_start"`

	// RequireApproval routes join requests through the host's queue
	RequireApproval bool `json:"require_approval"`

	// Lockout ends the session immediately on the first qualifying win
	Lockout bool `json:"lockout"`

	// TeamMode groups players into teams for win evaluation
	TeamMode bool `json:"team_mode"`

	// SoundEnabled toggles client-side sound cues
	SoundEnabled bool `json:"sound_enabled"`

	// TimeLimitSeconds is an optional session time limit (0 = none)
	TimeLimitSeconds int `json:"time_limit_seconds"`

	// WinPatterns lists the enabled win patterns (line, column, diagonal,
	// corners, majority)
	WinPatterns []string `json:"win_patterns"`

	// MajorityThreshold is the fraction of cells one player or team must
	// complete for the majority pattern
	MajorityThreshold float64 `json:"majority_threshold"`
}

// Session represents one active or historical multiplayer game instance
type Session struct {
	// ID is the unique identifier for the session
	ID string `json:"id"`

	// BoardID references the board the session was started from
	BoardID string `json:"board_id"`

	// HostID is the user ID of the session host
	HostID string `json:"host_id"`

	// Status is the current lifecycle state of the session
	Status SessionStatus `json:"status"`

	// Settings holds the rules chosen when the session was created
	Settings SessionSettings `json:"settings"`

	// WinnerIDs lists the winning player IDs once the session completes via a win
	WinnerIDs []string `json:"winner_ids,omitempty"`

	// WinningTeams lists the winning team numbers in team mode
	WinningTeams []int `json:"winning_teams,omitempty"`

	// WinPatterns lists the patterns that produced the win
	WinPatterns []string `json:"win_patterns,omitempty"`

	// Version mirrors the latest event-log version applied to the session
	Version int64 `json:"version"`

	// CreatedAt is when the session was created
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session was last updated
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when the session transitioned to active
	StartedAt *time.Time `json:"started_at,omitempty"`

	// EndedAt is when the session reached a terminal status
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// CanTransitionTo reports whether the session status may move to the target.
// Transitions are monotonic: waiting -> active -> completed, and
// waiting|active -> cancelled. There are no reverse transitions.
func (s *Session) CanTransitionTo(target SessionStatus) bool {
	switch target {
	case SessionStatusActive:
		return s.Status == SessionStatusWaiting
	case SessionStatusCompleted:
		return s.Status == SessionStatusActive
	case SessionStatusCancelled:
		return s.Status == SessionStatusWaiting || s.Status == SessionStatusActive
	default:
		return false
	}
}
