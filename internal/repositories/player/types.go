package player

import (
	"time"

	"github.com/gridhall/bingo/internal/models"
)

// CreatePlayerInput contains parameters for creating a seat
type CreatePlayerInput struct {
	// Player is the seat to create; its Color is claimed atomically
	Player *models.SessionPlayer
}

// SavePlayerInput contains parameters for saving a seat
type SavePlayerInput struct {
	// Player is the seat to persist
	Player *models.SessionPlayer
}

// GetPlayerInput contains parameters for retrieving a seat
type GetPlayerInput struct {
	// SessionID is the session the seat belongs to
	SessionID string

	// UserID is the user occupying the seat
	UserID string
}

// ListPlayersInput contains parameters for listing a session's seats
type ListPlayersInput struct {
	// SessionID is the session whose seats to list
	SessionID string
}

// MarkLeftInput contains parameters for recording a departure
type MarkLeftInput struct {
	// SessionID is the session the seat belongs to
	SessionID string

	// UserID is the departing user
	UserID string

	// LeftAt is the departure time
	LeftAt time.Time
}

// CountActiveInput contains parameters for counting present players
type CountActiveInput struct {
	// SessionID is the session whose seats to count
	SessionID string
}
