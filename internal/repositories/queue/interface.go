package queue

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/gridhall/bingo/internal/repositories/queue Repository

import (
	"context"

	"github.com/gridhall/bingo/internal/models"
)

// Repository defines the interface for join queue persistence
type Repository interface {
	// CreateEntry stores a pending entry, guarding one non-terminal entry
	// per user per session. ErrDuplicateEntry is returned when the user
	// already has a pending entry.
	CreateEntry(ctx context.Context, input *CreateEntryInput) (*models.QueueEntry, error)

	// GetEntry retrieves one entry
	GetEntry(ctx context.Context, input *GetEntryInput) (*models.QueueEntry, error)

	// UpdateStatus transitions a pending entry to a terminal status.
	// ErrEntryNotPending is returned when the entry is already terminal.
	UpdateStatus(ctx context.Context, input *UpdateStatusInput) (*models.QueueEntry, error)

	// ListPending retrieves a session's pending entries ordered by request time
	ListPending(ctx context.Context, input *ListPendingInput) ([]*models.QueueEntry, error)

	// SweepExpired transitions pending entries requested before the cutoff to
	// expired and returns them
	SweepExpired(ctx context.Context, input *SweepExpiredInput) ([]*models.QueueEntry, error)
}
