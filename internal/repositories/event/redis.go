package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gridhall/bingo/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	seqKeyPrefix = "bingo:events:seq:"
	logKeyPrefix = "bingo:events:log:"
)

// appendScript allocates the next sequence number and writes the event in one
// atomic step, so the per-session version sequence is gapless: a version is
// only ever burned together with its record.
var appendScript = redis.NewScript(`
local version = redis.call('INCR', KEYS[1])
local event = cjson.decode(ARGV[1])
event['version'] = version
redis.call('ZADD', KEYS[2], version, cjson.encode(event))
return version
`)

// Config holds configuration for the Redis event log repository
type Config struct {
	// Redis client
	RedisClient *redis.Client
}

// redisRepository implements the Repository interface using Redis
type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed event log repository
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

func seqKey(sessionID string) string {
	return seqKeyPrefix + sessionID
}

func logKey(sessionID string) string {
	return logKeyPrefix + sessionID
}

// Append assigns the next version to the event and writes it atomically
func (r *redisRepository) Append(ctx context.Context, input *AppendInput) (*models.SessionEvent, error) {
	if input == nil || input.Event == nil {
		return nil, errors.New("input and event cannot be nil")
	}

	if input.Event.SessionID == "" {
		return nil, errors.New("event session ID cannot be empty")
	}

	eventJSON, err := json.Marshal(input.Event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	sessionID := input.Event.SessionID
	version, err := appendScript.Run(ctx, r.client,
		[]string{seqKey(sessionID), logKey(sessionID)},
		string(eventJSON),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	appended := *input.Event
	appended.Version = version
	return &appended, nil
}

// ListSince retrieves events with version greater than SinceVersion
func (r *redisRepository) ListSince(ctx context.Context, input *ListSinceInput) ([]*models.SessionEvent, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	records, err := r.client.ZRangeByScore(ctx, logKey(input.SessionID), &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", input.SinceVersion),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	events := make([]*models.SessionEvent, 0, len(records))
	for _, record := range records {
		var event models.SessionEvent
		if err := json.Unmarshal([]byte(record), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, &event)
	}

	return events, nil
}

// LatestVersion retrieves the session's current log version
func (r *redisRepository) LatestVersion(ctx context.Context, input *LatestVersionInput) (int64, error) {
	if input == nil || input.SessionID == "" {
		return 0, errors.New("input and session ID cannot be empty")
	}

	version, err := r.client.Get(ctx, seqKey(input.SessionID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read log version: %w", err)
	}

	return version, nil
}
