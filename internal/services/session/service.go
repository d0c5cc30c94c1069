package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
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

// defaultColors is the palette used when a joiner does not ask for a color
var defaultColors = []string{
	"red", "blue", "green", "yellow", "purple", "orange", "teal", "pink",
}

// service implements the Service interface
type service struct {
	config      *Config
	sessionRepo sessionRepo.Repository
	playerRepo  playerRepo.Repository
	queueRepo   queueRepo.Repository
	eventRepo   eventRepo.Repository
	broadcaster realtime.Service
	clock       clock.Clock
	uuid        uuid.UUID

	sessionLocks sync.Map // sessionID -> *sync.Mutex
}

// lockSession serializes a session's state-changing operations. The cell CAS
// guards individual cells, but the win path reads the whole grid and must not
// interleave with another accepted mutation's evaluation, or two marks that
// jointly complete a line both observe the finished grid and both end the
// session.
func (s *service) lockSession(sessionID string) func() {
	mu, _ := s.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// New creates a new session service
func New(cfg *Config) (*service, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.SessionRepo == nil {
		return nil, errors.New("session repository cannot be nil")
	}

	if cfg.PlayerRepo == nil {
		return nil, errors.New("player repository cannot be nil")
	}

	if cfg.QueueRepo == nil {
		return nil, errors.New("queue repository cannot be nil")
	}

	if cfg.EventRepo == nil {
		return nil, errors.New("event repository cannot be nil")
	}

	if cfg.Broadcaster == nil {
		return nil, errors.New("broadcaster cannot be nil")
	}

	// Set default values if not provided
	if cfg.DefaultMaxPlayers <= 0 {
		cfg.DefaultMaxPlayers = 8
	}

	if cfg.QueueTTL <= 0 {
		cfg.QueueTTL = time.Minute
	}

	c := cfg.Clock
	if c == nil {
		c = &clock.DefaultClock{}
	}

	u := cfg.UUIDGenerator
	if u == nil {
		u = uuid.New()
	}

	return &service{
		config:      cfg,
		sessionRepo: cfg.SessionRepo,
		playerRepo:  cfg.PlayerRepo,
		queueRepo:   cfg.QueueRepo,
		eventRepo:   cfg.EventRepo,
		broadcaster: cfg.Broadcaster,
		clock:       c,
		uuid:        u,
	}, nil
}

// CreateSession creates a waiting session from a board layout and seats the host
func (s *service) CreateSession(ctx context.Context, input *CreateSessionInput) (*CreateSessionOutput, error) {
	if input == nil || input.HostID == "" {
		return nil, errors.New("input and host ID cannot be empty")
	}

	if input.Layout == nil || !input.Layout.Valid() {
		return nil, errors.New("layout must describe a complete square grid")
	}

	settings := input.Settings
	settings.BoardSize = input.Layout.Size
	if settings.MaxPlayers <= 0 {
		settings.MaxPlayers = s.config.DefaultMaxPlayers
	}
	if settings.MajorityThreshold <= 0 {
		settings.MajorityThreshold = 0.5
	}
	if len(settings.WinPatterns) == 0 {
		settings.WinPatterns = []string{
			string(wincheck.PatternLine),
			string(wincheck.PatternColumn),
			string(wincheck.PatternDiagonal),
		}
	}

	now := s.clock.Now()
	session := &models.Session{
		ID:        s.uuid.NewUUID(),
		BoardID:   input.Layout.BoardID,
		HostID:    input.HostID,
		Status:    models.SessionStatusWaiting,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.SaveSession(ctx, &sessionRepo.SaveSessionInput{Session: session}); err != nil {
		return nil, err
	}

	if err := s.sessionRepo.SaveLayout(ctx, &sessionRepo.SaveLayoutInput{
		SessionID: session.ID,
		Layout:    input.Layout,
	}); err != nil {
		return nil, err
	}

	host, err := s.seatPlayer(ctx, session, input.HostID, input.HostColor, input.HostTeam)
	if err != nil {
		return nil, err
	}

	return &CreateSessionOutput{
		Session: session,
		Host:    host,
	}, nil
}

// StartSession seeds the grid and transitions waiting -> active
func (s *service) StartSession(ctx context.Context, input *StartSessionInput) (*StartSessionOutput, error) {
	unlock := s.lockSession(input.SessionID)
	defer unlock()

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if session.HostID != input.HostID {
		return nil, ErrNotAuthorized
	}

	return s.start(ctx, session)
}

// start performs the waiting -> active transition. Split from StartSession so
// auto-start on a filled session can reuse it without the host check.
func (s *service) start(ctx context.Context, session *models.Session) (*StartSessionOutput, error) {
	if !session.CanTransitionTo(models.SessionStatusActive) {
		return nil, ErrInvalidTransition
	}

	layout, err := s.sessionRepo.GetLayout(ctx, &sessionRepo.GetLayoutInput{SessionID: session.ID})
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.SeedCells(ctx, &sessionRepo.SeedCellsInput{
		SessionID: session.ID,
		Layout:    layout,
	}); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	event := s.newEvent(session.ID, models.EventTypeGameStarted, session.HostID)

	appended, err := s.eventRepo.Append(ctx, &eventRepo.AppendInput{Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to append game_started event: %w", err)
	}

	session.Status = models.SessionStatusActive
	session.StartedAt = &now
	session.UpdatedAt = now
	session.Version = appended.Version

	if err := s.sessionRepo.SaveSession(ctx, &sessionRepo.SaveSessionInput{Session: session}); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(session.ID, appended)

	cells, err := s.sessionRepo.GetCells(ctx, &sessionRepo.GetCellsInput{
		SessionID: session.ID,
		Size:      session.Settings.BoardSize,
	})
	if err != nil {
		return nil, err
	}

	return &StartSessionOutput{
		Session: session,
		Cells:   cells,
	}, nil
}

// ProposeMutation applies a version-checked cell mutation
func (s *service) ProposeMutation(ctx context.Context, input *ProposeMutationInput) (*ProposeMutationOutput, error) {
	if input == nil || input.SessionID == "" || input.PlayerID == "" {
		return nil, errors.New("input, session ID and player ID cannot be empty")
	}

	unlock := s.lockSession(input.SessionID)
	defer unlock()

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	// Mutations are only valid while the session is active. A completed
	// lockout session therefore refuses every later proposal.
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionNotActive
	}

	player, err := s.playerRepo.GetPlayer(ctx, &playerRepo.GetPlayerInput{
		SessionID: input.SessionID,
		UserID:    input.PlayerID,
	})
	if err != nil {
		if errors.Is(err, playerRepo.ErrPlayerNotFound) {
			return nil, ErrNotAuthorized
		}
		return nil, err
	}
	if !player.Present() {
		return nil, ErrNotAuthorized
	}

	size := session.Settings.BoardSize
	if input.Position < 0 || input.Position >= size*size {
		return nil, ErrPositionOutOfRange
	}

	var change sessionRepo.CellChange
	var eventType models.EventType
	marked := true
	unmarked := false

	switch input.Action {
	case MutationActionMark:
		change = sessionRepo.CellChange{
			SetMarked:      &marked,
			AddColor:       player.Color,
			AddCompletedBy: player.UserID,
		}
		eventType = models.EventTypeCellMarked
	case MutationActionUnmark:
		change = sessionRepo.CellChange{
			SetMarked:         &unmarked,
			RemoveColor:       player.Color,
			RemoveCompletedBy: player.UserID,
		}
		eventType = models.EventTypeCellUnmarked
	default:
		return nil, fmt.Errorf("unknown mutation action %q", input.Action)
	}

	// Snapshot the cell before the swap so an event-append failure can put
	// the observable fields back.
	prior, err := s.sessionRepo.GetCell(ctx, &sessionRepo.GetCellInput{
		SessionID: input.SessionID,
		Position:  input.Position,
	})
	if err != nil {
		return nil, err
	}

	cell, err := s.sessionRepo.ApplyCellMutation(ctx, &sessionRepo.ApplyCellMutationInput{
		SessionID:       input.SessionID,
		Position:        input.Position,
		ExpectedVersion: input.ExpectedVersion,
		Change:          change,
		ActorID:         player.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, sessionRepo.ErrVersionConflict):
			current, getErr := s.sessionRepo.GetCell(ctx, &sessionRepo.GetCellInput{
				SessionID: input.SessionID,
				Position:  input.Position,
			})
			if getErr != nil {
				return nil, getErr
			}
			// The proposal lost the race. Hand back the authoritative cell
			// so the caller can re-derive intent against the fresh version.
			return &ProposeMutationOutput{
				Accepted: false,
				Cell:     current,
			}, ErrVersionConflict
		case errors.Is(err, sessionRepo.ErrCellBlocked):
			return nil, ErrCellBlocked
		default:
			return nil, err
		}
	}

	event := s.newEvent(input.SessionID, eventType, player.UserID)
	event.Position = input.Position
	event.Cell = cell.Clone()

	appended, err := s.eventRepo.Append(ctx, &eventRepo.AppendInput{Event: event})
	if err != nil {
		// The mutation must not be observable without its log record. Roll
		// the fields back but keep the advanced version: cell versions are
		// monotonic, not gapless.
		restore := prior.Clone()
		restore.Version = cell.Version
		_ = s.sessionRepo.RestoreCell(ctx, &sessionRepo.RestoreCellInput{
			SessionID: input.SessionID,
			Cell:      restore,
		})
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	// Broadcast in the exact order the log was appended.
	s.broadcaster.Publish(input.SessionID, appended)

	s.adjustScore(ctx, player, input.Action)

	var win *wincheck.WinResult
	if input.Action == MutationActionMark {
		win, err = s.evaluateWin(ctx, session, input.Position)
		if err != nil {
			return nil, err
		}
	}

	latest := appended.Version
	if win != nil {
		endedVersion, err := s.completeWithWin(ctx, session, win)
		if err != nil {
			return nil, err
		}
		latest = endedVersion
	}

	session.Version = latest
	session.UpdatedAt = s.clock.Now()
	if err := s.sessionRepo.SaveSession(ctx, &sessionRepo.SaveSessionInput{Session: session}); err != nil {
		return nil, err
	}

	return &ProposeMutationOutput{
		Accepted: true,
		Cell:     cell,
		Event:    appended,
		Win:      win,
	}, nil
}

// RequestJoin asks for a seat in a session
func (s *service) RequestJoin(ctx context.Context, input *RequestJoinInput) (*RequestJoinOutput, error) {
	if input == nil || input.SessionID == "" || input.UserID == "" {
		return nil, errors.New("input, session ID and user ID cannot be empty")
	}

	unlock := s.lockSession(input.SessionID)
	defer unlock()

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.SessionStatusCompleted || session.Status == models.SessionStatusCancelled {
		return nil, ErrInvalidTransition
	}

	if input.Spectator {
		if !session.Settings.AllowSpectators {
			return nil, ErrSpectatorsNotAllowed
		}
		// Spectators bypass queue and capacity entirely: subscription only,
		// no seat, no mutation rights.
		return &RequestJoinOutput{Status: JoinStatusSpectator}, nil
	}

	existing, err := s.playerRepo.GetPlayer(ctx, &playerRepo.GetPlayerInput{
		SessionID: input.SessionID,
		UserID:    input.UserID,
	})
	if err != nil && !errors.Is(err, playerRepo.ErrPlayerNotFound) {
		return nil, err
	}
	if existing != nil && existing.Present() {
		return nil, ErrDuplicateRequest
	}

	if err := s.checkCapacity(ctx, session); err != nil {
		return nil, err
	}

	if !session.Settings.RequireApproval {
		player, err := s.admit(ctx, session, input.UserID, input.Color, input.Team)
		if err != nil {
			return nil, err
		}
		return &RequestJoinOutput{
			Status: JoinStatusApproved,
			Player: player,
		}, nil
	}

	entry := &models.QueueEntry{
		ID:          s.uuid.NewUUID(),
		SessionID:   input.SessionID,
		UserID:      input.UserID,
		Color:       input.Color,
		Team:        input.Team,
		Status:      models.QueueStatusPending,
		RequestedAt: s.clock.Now(),
	}

	created, err := s.queueRepo.CreateEntry(ctx, &queueRepo.CreateEntryInput{Entry: entry})
	if err != nil {
		if errors.Is(err, queueRepo.ErrDuplicateEntry) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	return &RequestJoinOutput{
		Status: JoinStatusPending,
		Entry:  created,
	}, nil
}

// ApproveJoin admits a pending queue entry
func (s *service) ApproveJoin(ctx context.Context, input *ApproveJoinInput) (*ApproveJoinOutput, error) {
	if input == nil || input.SessionID == "" || input.EntryID == "" {
		return nil, errors.New("input, session ID and entry ID cannot be empty")
	}

	unlock := s.lockSession(input.SessionID)
	defer unlock()

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if session.HostID != input.HostID {
		return nil, ErrNotAuthorized
	}

	// A terminal session admits nobody, however long the entry has been
	// waiting.
	if session.Status == models.SessionStatusCompleted || session.Status == models.SessionStatusCancelled {
		return nil, ErrInvalidTransition
	}

	entry, err := s.getEntry(ctx, input.EntryID, input.SessionID)
	if err != nil {
		return nil, err
	}

	if entry.Status != models.QueueStatusPending {
		return nil, ErrInvalidTransition
	}

	if err := s.checkCapacity(ctx, session); err != nil {
		return nil, err
	}

	// Seat first: a color conflict must leave the entry pending so the host
	// can retry after the requester picks another color.
	player, err := s.admit(ctx, session, entry.UserID, entry.Color, entry.Team)
	if err != nil {
		return nil, err
	}

	updated, err := s.queueRepo.UpdateStatus(ctx, &queueRepo.UpdateStatusInput{
		EntryID:     entry.ID,
		Status:      models.QueueStatusApproved,
		ProcessedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &ApproveJoinOutput{
		Entry:  updated,
		Player: player,
	}, nil
}

// RejectJoin declines a pending queue entry
func (s *service) RejectJoin(ctx context.Context, input *RejectJoinInput) (*RejectJoinOutput, error) {
	if input == nil || input.SessionID == "" || input.EntryID == "" {
		return nil, errors.New("input, session ID and entry ID cannot be empty")
	}

	unlock := s.lockSession(input.SessionID)
	defer unlock()

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if session.HostID != input.HostID {
		return nil, ErrNotAuthorized
	}

	entry, err := s.getEntry(ctx, input.EntryID, input.SessionID)
	if err != nil {
		return nil, err
	}

	if entry.Status != models.QueueStatusPending {
		return nil, ErrInvalidTransition
	}

	updated, err := s.queueRepo.UpdateStatus(ctx, &queueRepo.UpdateStatusInput{
		EntryID:     entry.ID,
		Status:      models.QueueStatusRejected,
		ProcessedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &RejectJoinOutput{Entry: updated}, nil
}

// LeaveSession records a player's departure
func (s *service) LeaveSession(ctx context.Context, input *LeaveSessionInput) (*LeaveSessionOutput, error) {
	if input == nil || input.SessionID == "" || input.UserID == "" {
		return nil, errors.New("input, session ID and user ID cannot be empty")
	}

	unlock := s.lockSession(input.SessionID)
	defer unlock()

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	player, err := s.playerRepo.MarkLeft(ctx, &playerRepo.MarkLeftInput{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		LeftAt:    s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, playerRepo.ErrPlayerNotFound) {
			return nil, ErrNotAuthorized
		}
		return nil, err
	}

	event := s.newEvent(input.SessionID, models.EventTypePlayerLeft, input.UserID)
	event.Player = player

	appended, err := s.eventRepo.Append(ctx, &eventRepo.AppendInput{Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to append player_left event: %w", err)
	}

	session.Version = appended.Version
	session.UpdatedAt = s.clock.Now()
	if err := s.sessionRepo.SaveSession(ctx, &sessionRepo.SaveSessionInput{Session: session}); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(input.SessionID, appended)

	return &LeaveSessionOutput{Player: player}, nil
}

// EndSession forces active -> completed without a winner
func (s *service) EndSession(ctx context.Context, input *EndSessionInput) (*EndSessionOutput, error) {
	session, err := s.terminate(ctx, input.SessionID, input.HostID, models.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	return &EndSessionOutput{Session: session}, nil
}

// CancelSession abandons a waiting or active session
func (s *service) CancelSession(ctx context.Context, input *CancelSessionInput) (*CancelSessionOutput, error) {
	session, err := s.terminate(ctx, input.SessionID, input.HostID, models.SessionStatusCancelled)
	if err != nil {
		return nil, err
	}
	return &CancelSessionOutput{Session: session}, nil
}

// Subscribe returns the snapshot plus the ordered stream from SinceVersion
func (s *service) Subscribe(ctx context.Context, input *SubscribeInput) (*SubscribeOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	// Register before reading the backlog so no version can fall between
	// backlog and live stream. Overlap is filtered below.
	sub := s.broadcaster.Subscribe(input.SessionID)

	players, err := s.playerRepo.ListPlayers(ctx, &playerRepo.ListPlayersInput{SessionID: input.SessionID})
	if err != nil {
		s.broadcaster.Unsubscribe(sub)
		return nil, err
	}

	var cells []*models.Cell
	if session.Status != models.SessionStatusWaiting {
		cells, err = s.sessionRepo.GetCells(ctx, &sessionRepo.GetCellsInput{
			SessionID: input.SessionID,
			Size:      session.Settings.BoardSize,
		})
		if err != nil {
			s.broadcaster.Unsubscribe(sub)
			return nil, err
		}
	}

	backlog, err := s.eventRepo.ListSince(ctx, &eventRepo.ListSinceInput{
		SessionID:    input.SessionID,
		SinceVersion: input.SinceVersion,
	})
	if err != nil {
		s.broadcaster.Unsubscribe(sub)
		return nil, err
	}

	last := input.SinceVersion
	if n := len(backlog); n > 0 {
		last = backlog[n-1].Version
	}

	updates := make(chan *models.SessionEvent, cap(sub.Events()))
	done := make(chan struct{})
	go func() {
		defer close(updates)
		delivered := last
		for ev := range sub.Events() {
			// Drop anything the backlog already covered.
			if ev.Version <= delivered {
				continue
			}
			delivered = ev.Version
			select {
			case updates <- ev:
			case <-done:
				// The consumer cancelled; a full buffer must not pin this
				// goroutine forever.
				return
			}
		}
	}()

	var cancelOnce sync.Once
	cancel := func() {
		cancelOnce.Do(func() {
			close(done)
			s.broadcaster.Unsubscribe(sub)
		})
	}

	return &SubscribeOutput{
		Session: session,
		Cells:   cells,
		Players: players,
		Backlog: backlog,
		Updates: updates,
		Cancel:  cancel,
	}, nil
}

// GetSession retrieves a session with its seats and pending queue
func (s *service) GetSession(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	session, err := s.getSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	players, err := s.playerRepo.ListPlayers(ctx, &playerRepo.ListPlayersInput{SessionID: input.SessionID})
	if err != nil {
		return nil, err
	}

	pending, err := s.queueRepo.ListPending(ctx, &queueRepo.ListPendingInput{SessionID: input.SessionID})
	if err != nil {
		return nil, err
	}

	return &GetSessionOutput{
		Session: session,
		Players: players,
		Pending: pending,
	}, nil
}

// ExpireStaleRequests sweeps pending queue entries older than the TTL
func (s *service) ExpireStaleRequests(ctx context.Context, input *ExpireStaleRequestsInput) (*ExpireStaleRequestsOutput, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	expired, err := s.queueRepo.SweepExpired(ctx, &queueRepo.SweepExpiredInput{
		SessionID: input.SessionID,
		OlderThan: s.clock.Now().Add(-s.config.QueueTTL),
	})
	if err != nil {
		return nil, err
	}

	return &ExpireStaleRequestsOutput{Expired: expired}, nil
}

// getSession maps the repository not-found error to the service sentinel
func (s *service) getSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessionRepo.GetSession(ctx, &sessionRepo.GetSessionInput{SessionID: sessionID})
	if err != nil {
		if errors.Is(err, sessionRepo.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// getEntry fetches a queue entry and checks it belongs to the session
func (s *service) getEntry(ctx context.Context, entryID, sessionID string) (*models.QueueEntry, error) {
	entry, err := s.queueRepo.GetEntry(ctx, &queueRepo.GetEntryInput{EntryID: entryID})
	if err != nil {
		if errors.Is(err, queueRepo.ErrEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	if entry.SessionID != sessionID {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// checkCapacity fails when the session has no free seats
func (s *service) checkCapacity(ctx context.Context, session *models.Session) error {
	count, err := s.playerRepo.CountActive(ctx, &playerRepo.CountActiveInput{SessionID: session.ID})
	if err != nil {
		return err
	}
	if count >= session.Settings.MaxPlayers {
		return ErrCapacityExceeded
	}
	return nil
}

// seatPlayer creates a seat, picking the first free palette color when none
// was requested
func (s *service) seatPlayer(ctx context.Context, session *models.Session, userID, color string, team int) (*models.SessionPlayer, error) {
	players, err := s.playerRepo.ListPlayers(ctx, &playerRepo.ListPlayersInput{SessionID: session.ID})
	if err != nil {
		return nil, err
	}

	if color == "" {
		taken := make(map[string]bool, len(players))
		for _, p := range players {
			taken[p.Color] = true
		}
		for _, c := range defaultColors {
			if !taken[c] {
				color = c
				break
			}
		}
		if color == "" {
			return nil, ErrColorConflict
		}
	}

	seat := &models.SessionPlayer{
		SessionID: session.ID,
		UserID:    userID,
		Color:     color,
		Team:      team,
		Position:  len(players),
		IsHost:    userID == session.HostID,
		JoinedAt:  s.clock.Now(),
	}

	created, err := s.playerRepo.CreatePlayer(ctx, &playerRepo.CreatePlayerInput{Player: seat})
	if err != nil {
		if errors.Is(err, playerRepo.ErrColorTaken) {
			return nil, ErrColorConflict
		}
		return nil, err
	}

	return created, nil
}

// admit seats a player, logs player_joined and auto-starts a filled session
// when the settings ask for it
func (s *service) admit(ctx context.Context, session *models.Session, userID, color string, team int) (*models.SessionPlayer, error) {
	player, err := s.seatPlayer(ctx, session, userID, color, team)
	if err != nil {
		return nil, err
	}

	event := s.newEvent(session.ID, models.EventTypePlayerJoined, userID)
	event.Player = player

	appended, err := s.eventRepo.Append(ctx, &eventRepo.AppendInput{Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to append player_joined event: %w", err)
	}

	session.Version = appended.Version
	session.UpdatedAt = s.clock.Now()
	if err := s.sessionRepo.SaveSession(ctx, &sessionRepo.SaveSessionInput{Session: session}); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(session.ID, appended)

	if session.Settings.AutoStart && session.Status == models.SessionStatusWaiting {
		count, err := s.playerRepo.CountActive(ctx, &playerRepo.CountActiveInput{SessionID: session.ID})
		if err != nil {
			return nil, err
		}
		if count >= session.Settings.MaxPlayers {
			if _, err := s.start(ctx, session); err != nil {
				return nil, err
			}
		}
	}

	return player, nil
}

// adjustScore tracks how many cells the player currently has completed.
// Best effort: a failed score write never fails the accepted mutation.
func (s *service) adjustScore(ctx context.Context, player *models.SessionPlayer, action MutationAction) {
	switch action {
	case MutationActionMark:
		player.Score++
	case MutationActionUnmark:
		if player.Score > 0 {
			player.Score--
		}
	}
	_ = s.playerRepo.SavePlayer(ctx, &playerRepo.SavePlayerInput{Player: player})
}

// evaluateWin runs the detector against the post-mutation grid
func (s *service) evaluateWin(ctx context.Context, session *models.Session, position int) (*wincheck.WinResult, error) {
	grid, err := s.sessionRepo.GetCells(ctx, &sessionRepo.GetCellsInput{
		SessionID: session.ID,
		Size:      session.Settings.BoardSize,
	})
	if err != nil {
		return nil, err
	}

	patterns := make([]wincheck.Pattern, 0, len(session.Settings.WinPatterns))
	for _, p := range session.Settings.WinPatterns {
		patterns = append(patterns, wincheck.Pattern(p))
	}

	var teams map[string]int
	if session.Settings.TeamMode {
		players, err := s.playerRepo.ListPlayers(ctx, &playerRepo.ListPlayersInput{SessionID: session.ID})
		if err != nil {
			return nil, err
		}
		teams = make(map[string]int, len(players))
		for _, p := range players {
			if p.Team > 0 {
				teams[p.UserID] = p.Team
			}
		}
	}

	detector := wincheck.New(&wincheck.Config{
		Size:              session.Settings.BoardSize,
		MajorityThreshold: session.Settings.MajorityThreshold,
	})

	return detector.Evaluate(grid, patterns, position, teams), nil
}

// completeWithWin transitions the session to completed with the win recorded
// and logs game_ended. Returns the game_ended log version.
func (s *service) completeWithWin(ctx context.Context, session *models.Session, win *wincheck.WinResult) (int64, error) {
	now := s.clock.Now()

	winPatterns := make([]string, 0, len(win.Patterns))
	for _, p := range win.Patterns {
		winPatterns = append(winPatterns, string(p))
	}

	event := s.newEvent(session.ID, models.EventTypeGameEnded, "")
	event.Winners = win.Winners
	event.WinningTeams = win.Teams
	event.WinPatterns = winPatterns

	appended, err := s.eventRepo.Append(ctx, &eventRepo.AppendInput{Event: event})
	if err != nil {
		return 0, fmt.Errorf("failed to append game_ended event: %w", err)
	}

	session.Status = models.SessionStatusCompleted
	session.WinnerIDs = win.Winners
	session.WinningTeams = win.Teams
	session.WinPatterns = winPatterns
	session.EndedAt = &now

	s.broadcaster.Publish(session.ID, appended)

	return appended.Version, nil
}

// terminate performs a host-forced transition to a terminal status
func (s *service) terminate(ctx context.Context, sessionID, hostID string, target models.SessionStatus) (*models.Session, error) {
	if sessionID == "" || hostID == "" {
		return nil, errors.New("session ID and host ID cannot be empty")
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.HostID != hostID {
		return nil, ErrNotAuthorized
	}

	if !session.CanTransitionTo(target) {
		return nil, ErrInvalidTransition
	}

	event := s.newEvent(sessionID, models.EventTypeGameEnded, hostID)

	appended, err := s.eventRepo.Append(ctx, &eventRepo.AppendInput{Event: event})
	if err != nil {
		return nil, fmt.Errorf("failed to append game_ended event: %w", err)
	}

	now := s.clock.Now()
	session.Status = target
	session.EndedAt = &now
	session.UpdatedAt = now
	session.Version = appended.Version

	if err := s.sessionRepo.SaveSession(ctx, &sessionRepo.SaveSessionInput{Session: session}); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(sessionID, appended)
	s.broadcaster.CloseSession(sessionID)

	return session, nil
}

// newEvent builds an event skeleton with identity and timestamp filled in
func (s *service) newEvent(sessionID string, eventType models.EventType, playerID string) *models.SessionEvent {
	return &models.SessionEvent{
		ID:        s.uuid.NewUUID(),
		SessionID: sessionID,
		Type:      eventType,
		PlayerID:  playerID,
		Position:  models.NoPosition,
		Timestamp: s.clock.Now(),
	}
}
