package player

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/gridhall/bingo/internal/repositories/player Repository

import (
	"context"

	"github.com/gridhall/bingo/internal/models"
)

// Repository defines the interface for session player persistence
type Repository interface {
	// CreatePlayer creates a seat, claiming the color atomically.
	// ErrColorTaken is returned when another seat holds the color.
	CreatePlayer(ctx context.Context, input *CreatePlayerInput) (*models.SessionPlayer, error)

	// SavePlayer persists an existing seat (score, ready flag, departure)
	SavePlayer(ctx context.Context, input *SavePlayerInput) error

	// GetPlayer retrieves one seat
	GetPlayer(ctx context.Context, input *GetPlayerInput) (*models.SessionPlayer, error)

	// ListPlayers retrieves every seat of a session in join order
	ListPlayers(ctx context.Context, input *ListPlayersInput) ([]*models.SessionPlayer, error)

	// MarkLeft stamps a seat's departure time. The seat is retained so marked
	// cells keep their attribution.
	MarkLeft(ctx context.Context, input *MarkLeftInput) (*models.SessionPlayer, error)

	// CountActive counts seats whose player has not departed
	CountActive(ctx context.Context, input *CountActiveInput) (int, error)
}
