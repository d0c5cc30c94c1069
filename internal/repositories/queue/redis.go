package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gridhall/bingo/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	entryKeyPrefix   = "bingo:queue:entry:"
	pendingKeyPrefix = "bingo:queue:pending:" // ZSet of entry IDs scored by request time
	activeKeyPrefix  = "bingo:queue:active:"  // one-active-entry-per-user guard
)

var (
	// ErrEntryNotFound is returned when an entry is not found
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrDuplicateEntry is returned when the user already has a pending
	// entry for the session
	ErrDuplicateEntry = errors.New("user already has a pending entry")

	// ErrEntryNotPending is returned when a transition is attempted on a
	// terminal entry
	ErrEntryNotPending = errors.New("queue entry is not pending")
)

// Config holds configuration for the Redis queue repository
type Config struct {
	// Redis client
	RedisClient *redis.Client
}

// redisRepository implements the Repository interface using Redis
type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed queue repository
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

func entryKey(entryID string) string {
	return entryKeyPrefix + entryID
}

func pendingKey(sessionID string) string {
	return pendingKeyPrefix + sessionID
}

func activeKey(sessionID, userID string) string {
	return fmt.Sprintf("%s%s:%s", activeKeyPrefix, sessionID, userID)
}

// CreateEntry stores a pending entry, guarding one non-terminal entry per
// user per session
func (r *redisRepository) CreateEntry(ctx context.Context, input *CreateEntryInput) (*models.QueueEntry, error) {
	if input == nil || input.Entry == nil {
		return nil, errors.New("input and entry cannot be nil")
	}

	e := input.Entry
	if e.ID == "" || e.SessionID == "" || e.UserID == "" {
		return nil, errors.New("entry ID, session ID and user ID cannot be empty")
	}

	// SETNX is the guard: a second request while one is pending loses.
	acquired, err := r.client.SetNX(ctx, activeKey(e.SessionID, e.UserID), e.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to guard entry: %w", err)
	}
	if !acquired {
		return nil, ErrDuplicateEntry
	}

	e.Status = models.QueueStatusPending

	entryJSON, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, entryKey(e.ID), entryJSON, 0)
	pipe.ZAdd(ctx, pendingKey(e.SessionID), redis.Z{
		Score:  float64(e.RequestedAt.Unix()),
		Member: e.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	return e, nil
}

// GetEntry retrieves one entry from Redis
func (r *redisRepository) GetEntry(ctx context.Context, input *GetEntryInput) (*models.QueueEntry, error) {
	if input == nil || input.EntryID == "" {
		return nil, errors.New("input and entry ID cannot be empty")
	}

	entryJSON, err := r.client.Get(ctx, entryKey(input.EntryID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	var entry models.QueueEntry
	if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return &entry, nil
}

// UpdateStatus transitions a pending entry to a terminal status. The
// pending check and the write run under WATCH so two transitions racing on
// the same entry (a sweep against a host approval) cannot both apply.
func (r *redisRepository) UpdateStatus(ctx context.Context, input *UpdateStatusInput) (*models.QueueEntry, error) {
	if input == nil || input.EntryID == "" {
		return nil, errors.New("input and entry ID cannot be empty")
	}

	if !input.Status.Terminal() {
		return nil, errors.New("target status must be terminal")
	}

	key := entryKey(input.EntryID)
	var updated *models.QueueEntry

	txf := func(tx *redis.Tx) error {
		entryJSON, err := tx.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				return ErrEntryNotFound
			}
			return fmt.Errorf("failed to get entry: %w", err)
		}

		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
			return fmt.Errorf("failed to unmarshal entry: %w", err)
		}

		if entry.Status.Terminal() {
			return ErrEntryNotPending
		}

		processedAt := input.ProcessedAt
		entry.Status = input.Status
		entry.ProcessedAt = &processedAt

		newJSON, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newJSON, 0)
			pipe.ZRem(ctx, pendingKey(entry.SessionID), entry.ID)
			pipe.Del(ctx, activeKey(entry.SessionID, entry.UserID))
			return nil
		})
		if err != nil {
			return err
		}

		updated = &entry
		return nil
	}

	if err := r.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Lost to a concurrent transition, so the entry is terminal now.
			return nil, ErrEntryNotPending
		}
		return nil, err
	}

	return updated, nil
}

// ListPending retrieves a session's pending entries ordered by request time
func (r *redisRepository) ListPending(ctx context.Context, input *ListPendingInput) ([]*models.QueueEntry, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	entryIDs, err := r.client.ZRange(ctx, pendingKey(input.SessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	entries := make([]*models.QueueEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		entry, err := r.GetEntry(ctx, &GetEntryInput{EntryID: id})
		if err != nil {
			if errors.Is(err, ErrEntryNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// SweepExpired transitions pending entries requested before the cutoff to
// expired and returns them
func (r *redisRepository) SweepExpired(ctx context.Context, input *SweepExpiredInput) ([]*models.QueueEntry, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	entryIDs, err := r.client.ZRangeByScore(ctx, pendingKey(input.SessionID), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(input.OlderThan.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find stale entries: %w", err)
	}

	expired := make([]*models.QueueEntry, 0, len(entryIDs))
	for _, id := range entryIDs {
		entry, err := r.UpdateStatus(ctx, &UpdateStatusInput{
			EntryID:     id,
			Status:      models.QueueStatusExpired,
			ProcessedAt: input.OlderThan,
		})
		if err != nil {
			// Raced with an approval or rejection; nothing to expire.
			if errors.Is(err, ErrEntryNotPending) || errors.Is(err, ErrEntryNotFound) {
				continue
			}
			return nil, err
		}
		expired = append(expired, entry)
	}

	return expired, nil
}
