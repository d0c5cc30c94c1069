package session

//go:generate mockgen -package=mocks -destination=mocks/mock_service.go github.com/gridhall/bingo/internal/services/session Service

import "context"

// Service defines the interface for session coordination. It is the single
// entry point for every state-changing action on a session: it validates the
// action against the session lifecycle, runs the version-checked mutation
// path, appends to the event log and fans the result out to subscribers, in
// that order.
type Service interface {
	// CreateSession creates a waiting session from a board layout and seats
	// the host
	CreateSession(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error)

	// StartSession seeds the grid and transitions waiting -> active (host only)
	StartSession(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error)

	// ProposeMutation applies a version-checked cell mutation. On
	// ErrVersionConflict the output carries the authoritative cell for
	// reconciliation. Accepted mutations are logged, broadcast and win-checked
	// exactly once.
	ProposeMutation(ctx context.Context, input *ProposeMutationInput) (*ProposeMutationOutput, error)

	// RequestJoin asks for a seat, queueing behind host approval when the
	// session requires it. Spectator requests bypass queue and capacity.
	RequestJoin(ctx context.Context, input *RequestJoinInput) (*RequestJoinOutput, error)

	// ApproveJoin admits a pending queue entry (host only)
	ApproveJoin(ctx context.Context, input *ApproveJoinInput) (*ApproveJoinOutput, error)

	// RejectJoin declines a pending queue entry (host only)
	RejectJoin(ctx context.Context, input *RejectJoinInput) (*RejectJoinOutput, error)

	// LeaveSession records a player's departure. Cells the player completed
	// keep their attribution.
	LeaveSession(ctx context.Context, input *LeaveSessionInput) (*LeaveSessionOutput, error)

	// EndSession forces active -> completed without a winner (host only)
	EndSession(ctx context.Context, input *EndSessionInput) (*EndSessionOutput, error)

	// CancelSession abandons a waiting or active session (host only)
	CancelSession(ctx context.Context, input *CancelSessionInput) (*CancelSessionOutput, error)

	// Subscribe returns the current snapshot, the ordered events after
	// SinceVersion, and a live channel continuing from there. Each version is
	// delivered exactly once, in order.
	Subscribe(ctx context.Context, input *SubscribeInput) (*SubscribeOutput, error)

	// GetSession retrieves a session
	GetSession(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error)

	// ExpireStaleRequests sweeps pending queue entries older than the
	// configured TTL to expired
	ExpireStaleRequests(ctx context.Context, input *ExpireStaleRequestsInput) (*ExpireStaleRequestsOutput, error)
}
