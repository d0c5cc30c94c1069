package session

import "errors"

var (
	// ErrSessionNotFound is returned when the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrEntryNotFound is returned when the queue entry does not exist
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrVersionConflict is returned when a mutation proposal carries a stale
	// cell version. The output accompanying it holds the authoritative cell
	// so the caller can reconcile; the proposal is never partially applied.
	ErrVersionConflict = errors.New("mutation version conflict")

	// ErrCellBlocked is returned when the target cell refuses mutation
	ErrCellBlocked = errors.New("cell is blocked")

	// ErrCapacityExceeded is returned when the session has no free seats
	ErrCapacityExceeded = errors.New("session is at maximum capacity")

	// ErrDuplicateRequest is returned when the user already has a seat or a
	// pending join request
	ErrDuplicateRequest = errors.New("duplicate join request")

	// ErrColorConflict is returned when the requested color is already taken
	ErrColorConflict = errors.New("color already taken")

	// ErrNotAuthorized is returned when the actor is not a current player, or
	// a non-host attempts a host-only action
	ErrNotAuthorized = errors.New("not authorized")

	// ErrSessionNotActive is returned when a mutation is proposed outside the
	// active state
	ErrSessionNotActive = errors.New("session is not active")

	// ErrInvalidTransition is returned when an action is attempted outside
	// the lifecycle state that permits it
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrSpectatorsNotAllowed is returned when a spectator join is requested
	// on a session that forbids spectators
	ErrSpectatorsNotAllowed = errors.New("spectators not allowed")

	// ErrPositionOutOfRange is returned when a mutation targets a position
	// outside the grid
	ErrPositionOutOfRange = errors.New("position out of range")
)
