package session

import (
	"github.com/gridhall/bingo/internal/models"
)

// SaveSessionInput contains parameters for saving a session
type SaveSessionInput struct {
	// Session is the session to persist
	Session *models.Session
}

// GetSessionInput contains parameters for retrieving a session
type GetSessionInput struct {
	// SessionID is the unique identifier of the session
	SessionID string
}

// DeleteSessionInput contains parameters for deleting a session
type DeleteSessionInput struct {
	// SessionID is the unique identifier of the session
	SessionID string
}

// GetActiveSessionsInput contains parameters for listing active sessions
type GetActiveSessionsInput struct{}

// GetActiveSessionsOutput contains the sessions currently in play
type GetActiveSessionsOutput struct {
	// Sessions holds the active sessions
	Sessions []*models.Session
}

// SaveLayoutInput contains parameters for storing a board layout
type SaveLayoutInput struct {
	// SessionID is the session the layout belongs to
	SessionID string

	// Layout is the board layout to store
	Layout *models.BoardLayout
}

// GetLayoutInput contains parameters for retrieving a board layout
type GetLayoutInput struct {
	// SessionID is the session the layout belongs to
	SessionID string
}

// SeedCellsInput contains parameters for seeding a session's grid
type SeedCellsInput struct {
	// SessionID is the session to seed
	SessionID string

	// Layout is the board layout providing cell content
	Layout *models.BoardLayout
}

// GetCellInput contains parameters for retrieving one cell
type GetCellInput struct {
	// SessionID is the session the cell belongs to
	SessionID string

	// Position is the cell's grid position
	Position int
}

// GetCellsInput contains parameters for retrieving the full grid
type GetCellsInput struct {
	// SessionID is the session whose grid to retrieve
	SessionID string

	// Size is the grid width/height
	Size int
}

// CellChange describes a mutation to apply to a cell. Zero-valued fields are
// left untouched.
type CellChange struct {
	// SetMarked sets the marked flag when non-nil
	SetMarked *bool

	// AddColor adds a contributing player color
	AddColor string

	// RemoveColor removes a contributing player color
	RemoveColor string

	// AddCompletedBy attaches a completing player
	AddCompletedBy string

	// RemoveCompletedBy detaches a completing player
	RemoveCompletedBy string
}

// ApplyCellMutationInput contains parameters for a version-checked mutation
type ApplyCellMutationInput struct {
	// SessionID is the session the cell belongs to
	SessionID string

	// Position is the cell's grid position
	Position int

	// ExpectedVersion is the caller's last-known cell version
	ExpectedVersion int64

	// Change is the mutation to apply on acceptance
	Change CellChange

	// ActorID is the player performing the mutation
	ActorID string
}

// RestoreCellInput contains parameters for writing a cell record back
type RestoreCellInput struct {
	// SessionID is the session the cell belongs to
	SessionID string

	// Cell is the full record to write
	Cell *models.Cell
}
