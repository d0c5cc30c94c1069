package ws

import (
	"github.com/gridhall/bingo/internal/models"
	"github.com/gridhall/bingo/internal/wincheck"
)

// Inbound frame types
const (
	frameTypePropose     = "propose"
	frameTypeRequestJoin = "request_join"
	frameTypeApproveJoin = "approve_join"
	frameTypeRejectJoin  = "reject_join"
	frameTypeLeave       = "leave"
	frameTypeStart       = "start"
	frameTypeEnd         = "end"
	frameTypeCancel      = "cancel"
)

// Outbound frame types
const (
	frameTypeSnapshot = "snapshot"
	frameTypeEvent    = "event"
	frameTypeResult   = "result"
)

// InboundFrame is the JSON envelope for client-to-server messages. Type
// selects the operation; the remaining fields are read per type.
type InboundFrame struct {
	// Type selects the operation
	Type string `json:"type"`

	// Ref is a client-chosen correlation token echoed on the result frame
	Ref string `json:"ref,omitempty"`

	// Position is the target cell for propose
	Position int `json:"position,omitempty"`

	// ExpectedVersion is the proposer's last-known cell version
	ExpectedVersion int64 `json:"expected_version,omitempty"`

	// Action is the propose action, mark or unmark
	Action string `json:"action,omitempty"`

	// Color is the requested marking color for request_join
	Color string `json:"color,omitempty"`

	// Team is the requested team number for request_join
	Team int `json:"team,omitempty"`

	// Spectator requests a read-only subscription on request_join
	Spectator bool `json:"spectator,omitempty"`

	// EntryID is the queue entry for approve_join and reject_join
	EntryID string `json:"entry_id,omitempty"`
}

// SnapshotFrame is the first frame sent after the upgrade. It carries the
// full session state the backlog and live events continue from.
type SnapshotFrame struct {
	Type    string                  `json:"type"`
	Session *models.Session         `json:"session"`
	Cells   []*models.Cell          `json:"cells,omitempty"`
	Players []*models.SessionPlayer `json:"players"`
}

// EventFrame carries one log record, backlog and live alike
type EventFrame struct {
	Type  string               `json:"type"`
	Event *models.SessionEvent `json:"event"`
}

// ResultFrame is the response to one inbound frame, correlated by Ref
type ResultFrame struct {
	Type string `json:"type"`
	Ref  string `json:"ref,omitempty"`

	// OK reports whether the operation succeeded
	OK bool `json:"ok"`

	// Error names the failure when OK is false
	Error string `json:"error,omitempty"`

	// Cell is the post-mutation cell on an accepted propose, or the
	// authoritative cell on a version conflict
	Cell *models.Cell `json:"cell,omitempty"`

	// Event is the appended log record on an accepted propose
	Event *models.SessionEvent `json:"event,omitempty"`

	// Win is set when the propose completed one or more patterns
	Win *wincheck.WinResult `json:"win,omitempty"`

	// Status is the join outcome for request_join
	Status string `json:"status,omitempty"`

	// Entry is the queue entry for join operations
	Entry *models.QueueEntry `json:"entry,omitempty"`

	// Player is the seat for join operations
	Player *models.SessionPlayer `json:"player,omitempty"`
}
