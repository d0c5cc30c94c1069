package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gridhall/bingo/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Key prefixes for Redis
	playerKeyPrefix  = "bingo:player:"
	membersKeyPrefix = "bingo:players:"
	colorsKeyPrefix  = "bingo:colors:"
)

var (
	// ErrPlayerNotFound is returned when a seat is not found
	ErrPlayerNotFound = errors.New("player not found")

	// ErrColorTaken is returned when the requested color is already claimed
	// by another seat in the session
	ErrColorTaken = errors.New("color already taken")
)

// Config holds configuration for the Redis player repository
type Config struct {
	// Redis client
	RedisClient *redis.Client
}

// redisRepository implements the Repository interface using Redis
type redisRepository struct {
	client *redis.Client
}

// NewRedis creates a new Redis-backed player repository
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

func playerKey(sessionID, userID string) string {
	return fmt.Sprintf("%s%s:%s", playerKeyPrefix, sessionID, userID)
}

func membersKey(sessionID string) string {
	return membersKeyPrefix + sessionID
}

func colorsKey(sessionID string) string {
	return colorsKeyPrefix + sessionID
}

// CreatePlayer creates a seat, claiming the color atomically
func (r *redisRepository) CreatePlayer(ctx context.Context, input *CreatePlayerInput) (*models.SessionPlayer, error) {
	if input == nil || input.Player == nil {
		return nil, errors.New("input and player cannot be nil")
	}

	p := input.Player
	if p.SessionID == "" || p.UserID == "" || p.Color == "" {
		return nil, errors.New("session ID, user ID and color cannot be empty")
	}

	// HSETNX is the claim: first writer wins the color.
	claimed, err := r.client.HSetNX(ctx, colorsKey(p.SessionID), p.Color, p.UserID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim color: %w", err)
	}
	if !claimed {
		owner, err := r.client.HGet(ctx, colorsKey(p.SessionID), p.Color).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check color owner: %w", err)
		}
		if owner != p.UserID {
			return nil, ErrColorTaken
		}
	}

	playerJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, playerKey(p.SessionID, p.UserID), playerJSON, 0)
	pipe.SAdd(ctx, membersKey(p.SessionID), p.UserID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	return p, nil
}

// SavePlayer persists an existing seat
func (r *redisRepository) SavePlayer(ctx context.Context, input *SavePlayerInput) error {
	if input == nil || input.Player == nil {
		return errors.New("input and player cannot be nil")
	}

	playerJSON, err := json.Marshal(input.Player)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}

	if err := r.client.Set(ctx, playerKey(input.Player.SessionID, input.Player.UserID), playerJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}

	return nil
}

// GetPlayer retrieves one seat from Redis
func (r *redisRepository) GetPlayer(ctx context.Context, input *GetPlayerInput) (*models.SessionPlayer, error) {
	if input == nil || input.SessionID == "" || input.UserID == "" {
		return nil, errors.New("input, session ID and user ID cannot be empty")
	}

	playerJSON, err := r.client.Get(ctx, playerKey(input.SessionID, input.UserID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	var player models.SessionPlayer
	if err := json.Unmarshal([]byte(playerJSON), &player); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	return &player, nil
}

// ListPlayers retrieves every seat of a session in join order
func (r *redisRepository) ListPlayers(ctx context.Context, input *ListPlayersInput) ([]*models.SessionPlayer, error) {
	if input == nil || input.SessionID == "" {
		return nil, errors.New("input and session ID cannot be empty")
	}

	userIDs, err := r.client.SMembers(ctx, membersKey(input.SessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session members: %w", err)
	}

	if len(userIDs) == 0 {
		return []*models.SessionPlayer{}, nil
	}

	pipe := r.client.Pipeline()
	commands := make(map[string]*redis.StringCmd, len(userIDs))
	for _, userID := range userIDs {
		commands[userID] = pipe.Get(ctx, playerKey(input.SessionID, userID))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	players := make([]*models.SessionPlayer, 0, len(userIDs))
	for userID, cmd := range commands {
		playerJSON, err := cmd.Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("failed to get player %s: %w", userID, err)
		}

		var player models.SessionPlayer
		if err := json.Unmarshal([]byte(playerJSON), &player); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player %s: %w", userID, err)
		}

		players = append(players, &player)
	}

	sort.Slice(players, func(i, j int) bool {
		return players[i].Position < players[j].Position
	})

	return players, nil
}

// MarkLeft stamps a seat's departure time
func (r *redisRepository) MarkLeft(ctx context.Context, input *MarkLeftInput) (*models.SessionPlayer, error) {
	if input == nil || input.SessionID == "" || input.UserID == "" {
		return nil, errors.New("input, session ID and user ID cannot be empty")
	}

	player, err := r.GetPlayer(ctx, &GetPlayerInput{
		SessionID: input.SessionID,
		UserID:    input.UserID,
	})
	if err != nil {
		return nil, err
	}

	leftAt := input.LeftAt
	player.LeftAt = &leftAt

	if err := r.SavePlayer(ctx, &SavePlayerInput{Player: player}); err != nil {
		return nil, err
	}

	return player, nil
}

// CountActive counts seats whose player has not departed
func (r *redisRepository) CountActive(ctx context.Context, input *CountActiveInput) (int, error) {
	if input == nil || input.SessionID == "" {
		return 0, errors.New("input and session ID cannot be empty")
	}

	players, err := r.ListPlayers(ctx, &ListPlayersInput{SessionID: input.SessionID})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range players {
		if p.Present() {
			count++
		}
	}

	return count, nil
}
