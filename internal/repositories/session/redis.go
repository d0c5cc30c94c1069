package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gridhall/bingo/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	sessionKeyPrefix  = "bingo:session:"
	layoutKeyPrefix   = "bingo:layout:"
	cellKeyPrefix     = "bingo:cell:"
	activeSessionsKey = "bingo:active_sessions"
)

var (
	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")

	// ErrLayoutNotFound is returned when a session has no stored layout
	ErrLayoutNotFound = errors.New("board layout not found")

	// ErrCellNotFound is returned when a cell is not found
	ErrCellNotFound = errors.New("cell not found")

	// ErrVersionConflict is returned when a mutation carries a stale version
	// or loses the race against a concurrent writer
	ErrVersionConflict = errors.New("cell version conflict")

	// ErrCellBlocked is returned when the target cell refuses mutation
	ErrCellBlocked = errors.New("cell is blocked")
)

// Config holds configuration for the Redis session repository
type Config struct {
	// Redis client
	RedisClient *redis.Client
}

// redisRepository implements the Repository interface using Redis
type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed session repository
func NewRedis(cfg *Config) (*redisRepository, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	// Test connection
	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisRepository{
		client: cfg.RedisClient,
	}, nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func layoutKey(sessionID string) string {
	return layoutKeyPrefix + sessionID
}

func cellKey(sessionID string, position int) string {
	return fmt.Sprintf("%s%s:%d", cellKeyPrefix, sessionID, position)
}

// SaveSession persists a session to Redis and maintains the active set
func (r *redisRepository) SaveSession(ctx context.Context, input *SaveSessionInput) error {
	if input == nil || input.Session == nil {
		return errors.New("input and session cannot be nil")
	}

	sessionJSON, err := json.Marshal(input.Session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, sessionKey(input.Session.ID), sessionJSON, 0)

	if input.Session.Status == models.SessionStatusWaiting || input.Session.Status == models.SessionStatusActive {
		pipe.SAdd(ctx, activeSessionsKey, input.Session.ID)
	} else {
		pipe.SRem(ctx, activeSessionsKey, input.Session.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by ID from Redis
func (r *redisRepository) GetSession(ctx context.Context, input *GetSessionInput) (*models.Session, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	sessionJSON, err := r.client.Get(ctx, sessionKey(input.SessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// DeleteSession removes a session, its layout and its cells from Redis
func (r *redisRepository) DeleteSession(ctx context.Context, input *DeleteSessionInput) error {
	if input == nil || input.SessionID == "" {
		return errors.New("input and session ID cannot be empty")
	}

	session, err := r.GetSession(ctx, &GetSessionInput{SessionID: input.SessionID})
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, sessionKey(input.SessionID))
	pipe.Del(ctx, layoutKey(input.SessionID))
	pipe.SRem(ctx, activeSessionsKey, input.SessionID)

	size := session.Settings.BoardSize
	for pos := 0; pos < size*size; pos++ {
		pipe.Del(ctx, cellKey(input.SessionID, pos))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// GetActiveSessions retrieves all waiting and active sessions from Redis
func (r *redisRepository) GetActiveSessions(ctx context.Context, input *GetActiveSessionsInput) (*GetActiveSessionsOutput, error) {
	sessionIDs, err := r.client.SMembers(ctx, activeSessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active session IDs: %w", err)
	}

	if len(sessionIDs) == 0 {
		return &GetActiveSessionsOutput{Sessions: []*models.Session{}}, nil
	}

	pipe := r.client.Pipeline()
	commands := make(map[string]*redis.StringCmd, len(sessionIDs))
	for _, id := range sessionIDs {
		commands[id] = pipe.Get(ctx, sessionKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get active sessions: %w", err)
	}

	sessions := make([]*models.Session, 0, len(sessionIDs))
	for id, cmd := range commands {
		sessionJSON, err := cmd.Result()
		if err != nil {
			if err == redis.Nil {
				// Session was deleted between listing and fetching
				continue
			}
			return nil, fmt.Errorf("failed to get session %s: %w", id, err)
		}

		var session models.Session
		if err := json.Unmarshal([]byte(sessionJSON), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
		}

		sessions = append(sessions, &session)
	}

	return &GetActiveSessionsOutput{Sessions: sessions}, nil
}

// SaveLayout stores the board layout a session will be seeded from
func (r *redisRepository) SaveLayout(ctx context.Context, input *SaveLayoutInput) error {
	if input == nil || input.SessionID == "" || input.Layout == nil {
		return errors.New("input, session ID and layout cannot be empty")
	}

	layoutJSON, err := json.Marshal(input.Layout)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	if err := r.client.Set(ctx, layoutKey(input.SessionID), layoutJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to save layout: %w", err)
	}

	return nil
}

// GetLayout retrieves a session's stored board layout
func (r *redisRepository) GetLayout(ctx context.Context, input *GetLayoutInput) (*models.BoardLayout, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	layoutJSON, err := r.client.Get(ctx, layoutKey(input.SessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrLayoutNotFound
		}
		return nil, fmt.Errorf("failed to get layout: %w", err)
	}

	var layout models.BoardLayout
	if err := json.Unmarshal([]byte(layoutJSON), &layout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout: %w", err)
	}

	return &layout, nil
}

// SeedCells creates the zero-version grid from a board layout
func (r *redisRepository) SeedCells(ctx context.Context, input *SeedCellsInput) error {
	if input == nil || input.SessionID == "" || input.Layout == nil {
		return errors.New("input, session ID and layout cannot be empty")
	}

	if !input.Layout.Valid() {
		return errors.New("layout does not describe a complete grid")
	}

	now := time.Now()
	pipe := r.client.Pipeline()

	for pos, text := range input.Layout.Cells {
		cell := &models.Cell{
			Position:  pos,
			Text:      text,
			Version:   0,
			UpdatedAt: now,
		}

		cellJSON, err := json.Marshal(cell)
		if err != nil {
			return fmt.Errorf("failed to marshal cell %d: %w", pos, err)
		}

		pipe.Set(ctx, cellKey(input.SessionID, pos), cellJSON, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed cells: %w", err)
	}

	return nil
}

// GetCell retrieves one cell from Redis
func (r *redisRepository) GetCell(ctx context.Context, input *GetCellInput) (*models.Cell, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	cellJSON, err := r.client.Get(ctx, cellKey(input.SessionID, input.Position)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCellNotFound
		}
		return nil, fmt.Errorf("failed to get cell: %w", err)
	}

	var cell models.Cell
	if err := json.Unmarshal([]byte(cellJSON), &cell); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cell: %w", err)
	}

	return &cell, nil
}

// GetCells retrieves the full grid in position order
func (r *redisRepository) GetCells(ctx context.Context, input *GetCellsInput) ([]*models.Cell, error) {
	if input == nil || input.SessionID == "" || input.Size <= 0 {
		return nil, errors.New("input, session ID and size cannot be empty")
	}

	total := input.Size * input.Size
	pipe := r.client.Pipeline()
	commands := make([]*redis.StringCmd, total)
	for pos := 0; pos < total; pos++ {
		commands[pos] = pipe.Get(ctx, cellKey(input.SessionID, pos))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get cells: %w", err)
	}

	cells := make([]*models.Cell, total)
	for pos, cmd := range commands {
		cellJSON, err := cmd.Result()
		if err != nil {
			if err == redis.Nil {
				return nil, ErrCellNotFound
			}
			return nil, fmt.Errorf("failed to get cell %d: %w", pos, err)
		}

		var cell models.Cell
		if err := json.Unmarshal([]byte(cellJSON), &cell); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cell %d: %w", pos, err)
		}

		cells[pos] = &cell
	}

	return cells, nil
}

// ApplyCellMutation applies a change to a cell iff the expected version
// matches, using a WATCH transaction so two racing writers cannot both
// succeed against the same version.
func (r *redisRepository) ApplyCellMutation(ctx context.Context, input *ApplyCellMutationInput) (*models.Cell, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	key := cellKey(input.SessionID, input.Position)
	var updated *models.Cell

	txf := func(tx *redis.Tx) error {
		cellJSON, err := tx.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				return ErrCellNotFound
			}
			return fmt.Errorf("failed to get cell: %w", err)
		}

		var cell models.Cell
		if err := json.Unmarshal([]byte(cellJSON), &cell); err != nil {
			return fmt.Errorf("failed to unmarshal cell: %w", err)
		}

		if cell.Blocked {
			return ErrCellBlocked
		}

		if cell.Version != input.ExpectedVersion {
			return ErrVersionConflict
		}

		applyChange(&cell, input.Change)
		cell.Version++
		cell.UpdatedAt = time.Now()
		cell.LastModifiedBy = input.ActorID

		newJSON, err := json.Marshal(&cell)
		if err != nil {
			return fmt.Errorf("failed to marshal cell: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newJSON, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &cell
		return nil
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// A concurrent writer advanced the cell while we held the
			// expectation, which is the same conflict as a stale version.
			return nil, ErrVersionConflict
		}
		return nil, err
	}

	return updated, nil
}

// RestoreCell writes a full cell record back
func (r *redisRepository) RestoreCell(ctx context.Context, input *RestoreCellInput) error {
	if input == nil || input.SessionID == "" || input.Cell == nil {
		return errors.New("input, session ID and cell cannot be empty")
	}

	cellJSON, err := json.Marshal(input.Cell)
	if err != nil {
		return fmt.Errorf("failed to marshal cell: %w", err)
	}

	if err := r.client.Set(ctx, cellKey(input.SessionID, input.Cell.Position), cellJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to restore cell: %w", err)
	}

	return nil
}

// applyChange mutates the cell in place according to the change set
func applyChange(cell *models.Cell, change CellChange) {
	if change.SetMarked != nil {
		cell.Marked = *change.SetMarked
	}

	if change.AddColor != "" {
		cell.Colors = appendUnique(cell.Colors, change.AddColor)
	}

	if change.RemoveColor != "" {
		cell.Colors = removeValue(cell.Colors, change.RemoveColor)
	}

	if change.AddCompletedBy != "" {
		cell.CompletedBy = appendUnique(cell.CompletedBy, change.AddCompletedBy)
	}

	if change.RemoveCompletedBy != "" {
		cell.CompletedBy = removeValue(cell.CompletedBy, change.RemoveCompletedBy)
	}
}

func appendUnique(values []string, value string) []string {
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}

func removeValue(values []string, value string) []string {
	result := values[:0]
	for _, v := range values {
		if v != value {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
