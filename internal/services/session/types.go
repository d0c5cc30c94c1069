package session

import (
	"time"

	"github.com/gridhall/bingo/internal/common/clock"
	"github.com/gridhall/bingo/internal/common/uuid"
	"github.com/gridhall/bingo/internal/models"
	eventRepo "github.com/gridhall/bingo/internal/repositories/event"
	playerRepo "github.com/gridhall/bingo/internal/repositories/player"
	queueRepo "github.com/gridhall/bingo/internal/repositories/queue"
	sessionRepo "github.com/gridhall/bingo/internal/repositories/session"
	"github.com/gridhall/bingo/internal/services/realtime"
	"github.com/gridhall/bingo/internal/wincheck"
)

// MutationAction identifies the change a mutation proposal applies
type MutationAction string

const (
	// MutationActionMark marks the cell for the proposing player
	MutationActionMark MutationAction = "mark"

	// MutationActionUnmark removes the proposing player's mark
	MutationActionUnmark MutationAction = "unmark"
)

// JoinStatus describes the outcome of a join request
type JoinStatus string

const (
	// JoinStatusPending indicates the request awaits host approval
	JoinStatusPending JoinStatus = "pending"

	// JoinStatusApproved indicates the player was seated
	JoinStatusApproved JoinStatus = "approved"

	// JoinStatusSpectator indicates a read-only subscription was granted
	JoinStatusSpectator JoinStatus = "spectator"
)

// Config holds configuration for the session service
type Config struct {
	// DefaultMaxPlayers caps sessions whose settings carry no limit
	DefaultMaxPlayers int

	// QueueTTL is how long a pending join request lives before the sweep
	// expires it
	QueueTTL time.Duration

	// Repository dependencies
	SessionRepo sessionRepo.Repository
	PlayerRepo  playerRepo.Repository
	QueueRepo   queueRepo.Repository
	EventRepo   eventRepo.Repository

	// Service dependencies
	Broadcaster   realtime.Service
	Clock         clock.Clock
	UUIDGenerator uuid.UUID
}

// CreateSessionInput contains parameters for creating a session
type CreateSessionInput struct {
	// HostID is the user creating and hosting the session
	HostID string

	// HostColor is the host's marking color ("" picks the first free color)
	HostColor string

	// HostTeam is the host's team number in team mode
	HostTeam int

	// Layout is the board layout the grid will be seeded from
	Layout *models.BoardLayout

	// Settings holds the session rules; zero values get defaults
	Settings models.SessionSettings
}

// CreateSessionOutput contains the result of creating a session
type CreateSessionOutput struct {
	// Session is the created session
	Session *models.Session

	// Host is the host's seat
	Host *models.SessionPlayer
}

// StartSessionInput contains parameters for starting a session
type StartSessionInput struct {
	// SessionID is the session to start
	SessionID string

	// HostID is the caller; must be the session host
	HostID string
}

// StartSessionOutput contains the result of starting a session
type StartSessionOutput struct {
	// Session is the now-active session
	Session *models.Session

	// Cells is the freshly seeded grid
	Cells []*models.Cell
}

// ProposeMutationInput contains parameters for a mutation proposal
type ProposeMutationInput struct {
	// SessionID is the session the cell belongs to
	SessionID string

	// PlayerID is the proposing player
	PlayerID string

	// Position is the cell's grid position
	Position int

	// ExpectedVersion is the proposer's last-known cell version
	ExpectedVersion int64

	// Action is the change to apply
	Action MutationAction
}

// ProposeMutationOutput contains the result of a mutation proposal
type ProposeMutationOutput struct {
	// Accepted reports whether the mutation was applied
	Accepted bool

	// Cell is the post-mutation cell on acceptance, or the authoritative
	// cell on a version conflict
	Cell *models.Cell

	// Event is the appended log record on acceptance
	Event *models.SessionEvent

	// Win is the win result when the mutation completed one or more
	// patterns, nil otherwise
	Win *wincheck.WinResult
}

// RequestJoinInput contains parameters for a join request
type RequestJoinInput struct {
	// SessionID is the session to join
	SessionID string

	// UserID is the requesting user
	UserID string

	// Color is the requested marking color ("" picks the first free color)
	Color string

	// Team is the requested team number
	Team int

	// Spectator requests a read-only subscription without a seat
	Spectator bool
}

// RequestJoinOutput contains the result of a join request
type RequestJoinOutput struct {
	// Status is the outcome of the request
	Status JoinStatus

	// Entry is the pending queue entry when approval is required
	Entry *models.QueueEntry

	// Player is the seat when the join was granted immediately
	Player *models.SessionPlayer
}

// ApproveJoinInput contains parameters for approving a queue entry
type ApproveJoinInput struct {
	// SessionID is the session the entry belongs to
	SessionID string

	// EntryID is the pending entry to approve
	EntryID string

	// HostID is the caller; must be the session host
	HostID string
}

// ApproveJoinOutput contains the result of approving a queue entry
type ApproveJoinOutput struct {
	// Entry is the approved entry
	Entry *models.QueueEntry

	// Player is the newly created seat
	Player *models.SessionPlayer
}

// RejectJoinInput contains parameters for rejecting a queue entry
type RejectJoinInput struct {
	// SessionID is the session the entry belongs to
	SessionID string

	// EntryID is the pending entry to reject
	EntryID string

	// HostID is the caller; must be the session host
	HostID string
}

// RejectJoinOutput contains the result of rejecting a queue entry
type RejectJoinOutput struct {
	// Entry is the rejected entry
	Entry *models.QueueEntry
}

// LeaveSessionInput contains parameters for leaving a session
type LeaveSessionInput struct {
	// SessionID is the session to leave
	SessionID string

	// UserID is the departing player
	UserID string
}

// LeaveSessionOutput contains the result of leaving a session
type LeaveSessionOutput struct {
	// Player is the departed seat, retained for attribution
	Player *models.SessionPlayer
}

// EndSessionInput contains parameters for ending a session
type EndSessionInput struct {
	// SessionID is the session to end
	SessionID string

	// HostID is the caller; must be the session host
	HostID string
}

// EndSessionOutput contains the result of ending a session
type EndSessionOutput struct {
	// Session is the completed session
	Session *models.Session
}

// CancelSessionInput contains parameters for cancelling a session
type CancelSessionInput struct {
	// SessionID is the session to cancel
	SessionID string

	// HostID is the caller; must be the session host
	HostID string
}

// CancelSessionOutput contains the result of cancelling a session
type CancelSessionOutput struct {
	// Session is the cancelled session
	Session *models.Session
}

// SubscribeInput contains parameters for subscribing to a session
type SubscribeInput struct {
	// SessionID is the session to subscribe to
	SessionID string

	// SinceVersion excludes events at or below this version (0 = full
	// history)
	SinceVersion int64
}

// SubscribeOutput contains the snapshot and the ordered stream
type SubscribeOutput struct {
	// Session is the session at subscription time
	Session *models.Session

	// Cells is the grid at subscription time (nil before the session starts)
	Cells []*models.Cell

	// Players holds every seat in join order
	Players []*models.SessionPlayer

	// Backlog holds the events after SinceVersion up to the snapshot, in
	// version order
	Backlog []*models.SessionEvent

	// Updates continues the stream after the backlog. Every version arrives
	// exactly once, in order; the channel closes when the subscriber is
	// disconnected or the session is torn down.
	Updates <-chan *models.SessionEvent

	// Cancel releases the subscription
	Cancel func()
}

// GetSessionInput contains parameters for retrieving a session
type GetSessionInput struct {
	// SessionID is the session to retrieve
	SessionID string
}

// GetSessionOutput contains the retrieved session
type GetSessionOutput struct {
	// Session is the session
	Session *models.Session

	// Players holds every seat in join order
	Players []*models.SessionPlayer

	// Pending holds the queue entries awaiting host action
	Pending []*models.QueueEntry
}

// ExpireStaleRequestsInput contains parameters for the queue sweep
type ExpireStaleRequestsInput struct {
	// SessionID is the session whose queue to sweep
	SessionID string
}

// ExpireStaleRequestsOutput contains the swept entries
type ExpireStaleRequestsOutput struct {
	// Expired holds the entries transitioned to expired
	Expired []*models.QueueEntry
}
