package models

import (
	"time"
)

// Cell represents one grid position within a session
type Cell struct {
	// Position is the zero-based index of the cell in the grid
	Position int `json:"position"`

	// Text is the content reference copied from the board layout
	Text string `json:"text"`

	// Marked indicates the cell is currently marked
	Marked bool `json:"marked"`

	// Colors holds the colors of players contributing to the mark
	Colors []string `json:"colors,omitempty"`

	// CompletedBy holds the IDs of players who completed the cell
	CompletedBy []string `json:"completed_by,omitempty"`

	// Blocked prevents any further mutation of the cell
	Blocked bool `json:"blocked"`

	// Version is the per-cell monotonic counter; it increases by exactly one
	// on every accepted mutation and never decreases
	Version int64 `json:"version"`

	// UpdatedAt is when the cell was last mutated
	UpdatedAt time.Time `json:"updated_at"`

	// LastModifiedBy is the player that performed the last accepted mutation
	LastModifiedBy string `json:"last_modified_by,omitempty"`
}

// CompletedByPlayer reports whether the cell currently counts for the player
func (c *Cell) CompletedByPlayer(playerID string) bool {
	if !c.Marked || c.Blocked {
		return false
	}
	for _, id := range c.CompletedBy {
		if id == playerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the cell
func (c *Cell) Clone() *Cell {
	cp := *c
	if c.Colors != nil {
		cp.Colors = append([]string(nil), c.Colors...)
	}
	if c.CompletedBy != nil {
		cp.CompletedBy = append([]string(nil), c.CompletedBy...)
	}
	return &cp
}
