package event

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/gridhall/bingo/internal/repositories/event Repository

import (
	"context"

	"github.com/gridhall/bingo/internal/models"
)

// Repository defines the interface for the append-only session event log
type Repository interface {
	// Append assigns the next version of the session's sequence to the event
	// and writes it, atomically. The sequence is strictly increasing and
	// gapless; the returned event carries the assigned version.
	Append(ctx context.Context, input *AppendInput) (*models.SessionEvent, error)

	// ListSince retrieves events with version greater than SinceVersion, in
	// ascending version order
	ListSince(ctx context.Context, input *ListSinceInput) ([]*models.SessionEvent, error)

	// LatestVersion retrieves the session's current log version (0 when the
	// log is empty)
	LatestVersion(ctx context.Context, input *LatestVersionInput) (int64, error)
}
