package event

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gridhall/bingo/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	repo    Repository
	testNow time.Time
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})

	repo, err := NewRedis(&Config{
		RedisClient: s.client,
	})
	s.Require().NoError(err)
	s.repo = repo

	s.testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *RedisRepositoryTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func (s *RedisRepositoryTestSuite) markEvent(id string, position int) *models.SessionEvent {
	return &models.SessionEvent{
		ID:        id,
		SessionID: "test-session-id",
		Type:      models.EventTypeCellMarked,
		PlayerID:  "test-player-id",
		Position:  position,
		Cell: &models.Cell{
			Position:       position,
			Text:           "goal",
			Marked:         true,
			Colors:         []string{"red"},
			CompletedBy:    []string{"test-player-id"},
			Version:        1,
			LastModifiedBy: "test-player-id",
		},
		Timestamp: s.testNow,
	}
}

func (s *RedisRepositoryTestSuite) TestAppendAssignsSequentialVersions() {
	first, err := s.repo.Append(context.Background(), &AppendInput{
		Event: s.markEvent("event-1", 0),
	})
	s.Require().NoError(err)
	s.Equal(int64(1), first.Version)

	second, err := s.repo.Append(context.Background(), &AppendInput{
		Event: s.markEvent("event-2", 1),
	})
	s.Require().NoError(err)
	s.Equal(int64(2), second.Version)

	version, err := s.repo.LatestVersion(context.Background(), &LatestVersionInput{
		SessionID: "test-session-id",
	})
	s.Require().NoError(err)
	s.Equal(int64(2), version)
}

func (s *RedisRepositoryTestSuite) TestAppendRoundTripsPayload() {
	_, err := s.repo.Append(context.Background(), &AppendInput{
		Event: s.markEvent("event-1", 7),
	})
	s.Require().NoError(err)

	events, err := s.repo.ListSince(context.Background(), &ListSinceInput{
		SessionID: "test-session-id",
	})
	s.Require().NoError(err)
	s.Require().Len(events, 1)

	ev := events[0]
	s.Equal("event-1", ev.ID)
	s.Equal(int64(1), ev.Version)
	s.Equal(models.EventTypeCellMarked, ev.Type)
	s.Equal("test-player-id", ev.PlayerID)
	s.Equal(7, ev.Position)
	s.Require().NotNil(ev.Cell)
	s.True(ev.Cell.Marked)
	s.Equal([]string{"red"}, ev.Cell.Colors)
	s.Equal([]string{"test-player-id"}, ev.Cell.CompletedBy)
	s.Equal(int64(1), ev.Cell.Version)
}

func (s *RedisRepositoryTestSuite) TestListSinceReturnsOrderedSuffix() {
	for i := 0; i < 12; i++ {
		_, err := s.repo.Append(context.Background(), &AppendInput{
			Event: s.markEvent("event", i),
		})
		s.Require().NoError(err)
	}

	// A subscriber at version 7 catches up with exactly events 8-12.
	events, err := s.repo.ListSince(context.Background(), &ListSinceInput{
		SessionID:    "test-session-id",
		SinceVersion: 7,
	})
	s.Require().NoError(err)
	s.Require().Len(events, 5)

	for i, ev := range events {
		s.Equal(int64(8+i), ev.Version)
	}
}

func (s *RedisRepositoryTestSuite) TestListSinceEmptyLog() {
	events, err := s.repo.ListSince(context.Background(), &ListSinceInput{
		SessionID: "empty-session-id",
	})
	s.Require().NoError(err)
	s.Len(events, 0)
}

func (s *RedisRepositoryTestSuite) TestLatestVersionEmptyLog() {
	version, err := s.repo.LatestVersion(context.Background(), &LatestVersionInput{
		SessionID: "empty-session-id",
	})
	s.Require().NoError(err)
	s.Equal(int64(0), version)
}

func (s *RedisRepositoryTestSuite) TestLogsAreIsolatedPerSession() {
	_, err := s.repo.Append(context.Background(), &AppendInput{
		Event: s.markEvent("event-a", 0),
	})
	s.Require().NoError(err)

	other := s.markEvent("event-b", 0)
	other.SessionID = "other-session-id"
	appended, err := s.repo.Append(context.Background(), &AppendInput{Event: other})
	s.Require().NoError(err)

	// Each session has its own gapless sequence.
	s.Equal(int64(1), appended.Version)
}
