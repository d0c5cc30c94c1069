package models

import (
	"time"
)

// SessionPlayer represents a participant seat within a session
type SessionPlayer struct {
	// SessionID is the session the seat belongs to
	SessionID string `json:"session_id"`

	// UserID is the verified identity occupying the seat
	UserID string `json:"user_id"`

	// Color is the player's marking color, unique within the session
	Color string `json:"color"`

	// Team is the player's team number in team mode (0 = no team)
	Team int `json:"team"`

	// Position is the join order of the seat
	Position int `json:"position"`

	// Score counts cells the player currently has completed
	Score int `json:"score"`

	// IsHost marks the single host seat of the session
	IsHost bool `json:"is_host"`

	// IsReady indicates the player has signalled readiness
	IsReady bool `json:"is_ready"`

	// JoinedAt is when the seat was created
	JoinedAt time.Time `json:"joined_at"`

	// LeftAt is when the player departed; nil while the player is present.
	// The seat is retained after departure so marked cells keep their
	// historical attribution.
	LeftAt *time.Time `json:"left_at,omitempty"`
}

// Present reports whether the player currently occupies the seat
func (p *SessionPlayer) Present() bool {
	return p.LeftAt == nil
}
