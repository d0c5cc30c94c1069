package session

//go:generate mockgen -package=mocks -destination=mocks/mock_repository.go github.com/gridhall/bingo/internal/repositories/session Repository

import (
	"context"

	"github.com/gridhall/bingo/internal/models"
)

// Repository defines the interface for session and cell persistence. Cells
// live here rather than in their own repository because every cell belongs to
// exactly one session and is seeded and torn down with it.
type Repository interface {
	// SaveSession persists a session record
	SaveSession(ctx context.Context, input *SaveSessionInput) error

	// GetSession retrieves a session by ID
	GetSession(ctx context.Context, input *GetSessionInput) (*models.Session, error)

	// DeleteSession removes a session, its layout and its cells
	DeleteSession(ctx context.Context, input *DeleteSessionInput) error

	// GetActiveSessions retrieves all sessions currently in play
	GetActiveSessions(ctx context.Context, input *GetActiveSessionsInput) (*GetActiveSessionsOutput, error)

	// SaveLayout stores the board layout a session will be seeded from
	SaveLayout(ctx context.Context, input *SaveLayoutInput) error

	// GetLayout retrieves a session's stored board layout
	GetLayout(ctx context.Context, input *GetLayoutInput) (*models.BoardLayout, error)

	// SeedCells creates the zero-version grid from a board layout
	SeedCells(ctx context.Context, input *SeedCellsInput) error

	// GetCell retrieves one cell
	GetCell(ctx context.Context, input *GetCellInput) (*models.Cell, error)

	// GetCells retrieves the full grid in position order
	GetCells(ctx context.Context, input *GetCellsInput) ([]*models.Cell, error)

	// ApplyCellMutation applies a change to a cell iff the expected version
	// matches the stored version, atomically. On success the returned cell
	// carries the incremented version. ErrVersionConflict is returned when
	// the expectation is stale or a concurrent writer got there first;
	// ErrCellBlocked when the cell refuses mutation.
	ApplyCellMutation(ctx context.Context, input *ApplyCellMutationInput) (*models.Cell, error)

	// RestoreCell writes a full cell record back. Used to compensate when a
	// follow-up write fails after an accepted mutation; the restored record
	// must keep the advanced version so cell versions never decrease.
	RestoreCell(ctx context.Context, input *RestoreCellInput) error
}
