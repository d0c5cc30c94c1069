package queue

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

func (s *RedisRepositoryTestSuite) entry(id, userID string, requestedAt time.Time) *models.QueueEntry {
	return &models.QueueEntry{
		ID:          id,
		SessionID:   "test-session-id",
		UserID:      userID,
		Color:       "red",
		Status:      models.QueueStatusPending,
		RequestedAt: requestedAt,
	}
}

func (s *RedisRepositoryTestSuite) TestCreateAndGetEntry() {
	created, err := s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-1", "user-a", s.testNow),
	})
	s.Require().NoError(err)
	s.Equal(models.QueueStatusPending, created.Status)

	retrieved, err := s.repo.GetEntry(context.Background(), &GetEntryInput{EntryID: "entry-1"})
	s.Require().NoError(err)
	s.Equal("user-a", retrieved.UserID)
	s.Equal("test-session-id", retrieved.SessionID)
	s.Equal(models.QueueStatusPending, retrieved.Status)
	s.Nil(retrieved.ProcessedAt)
}

func (s *RedisRepositoryTestSuite) TestCreateEntryDuplicateGuard() {
	_, err := s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-1", "user-a", s.testNow),
	})
	s.Require().NoError(err)

	_, err = s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-2", "user-a", s.testNow.Add(time.Second)),
	})
	s.Require().Error(err)
	s.Equal(ErrDuplicateEntry, err)

	// Another user is unaffected.
	_, err = s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-3", "user-b", s.testNow),
	})
	s.Require().NoError(err)
}

func (s *RedisRepositoryTestSuite) TestUpdateStatusReleasesGuard() {
	_, err := s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-1", "user-a", s.testNow),
	})
	s.Require().NoError(err)

	updated, err := s.repo.UpdateStatus(context.Background(), &UpdateStatusInput{
		EntryID:     "entry-1",
		Status:      models.QueueStatusRejected,
		ProcessedAt: s.testNow.Add(time.Minute),
	})
	s.Require().NoError(err)
	s.Equal(models.QueueStatusRejected, updated.Status)
	s.Require().NotNil(updated.ProcessedAt)

	// A terminal entry admits no further transitions.
	_, err = s.repo.UpdateStatus(context.Background(), &UpdateStatusInput{
		EntryID:     "entry-1",
		Status:      models.QueueStatusApproved,
		ProcessedAt: s.testNow.Add(2 * time.Minute),
	})
	s.Require().Error(err)
	s.Equal(ErrEntryNotPending, err)

	// The user may request again once their entry is terminal.
	_, err = s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-2", "user-a", s.testNow.Add(3*time.Minute)),
	})
	s.Require().NoError(err)
}

func (s *RedisRepositoryTestSuite) TestListPendingOrdered() {
	_, err := s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-2", "user-b", s.testNow.Add(time.Minute)),
	})
	s.Require().NoError(err)
	_, err = s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-1", "user-a", s.testNow),
	})
	s.Require().NoError(err)

	entries, err := s.repo.ListPending(context.Background(), &ListPendingInput{
		SessionID: "test-session-id",
	})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("entry-1", entries[0].ID)
	s.Equal("entry-2", entries[1].ID)

	// Processed entries drop out of the pending list.
	_, err = s.repo.UpdateStatus(context.Background(), &UpdateStatusInput{
		EntryID:     "entry-1",
		Status:      models.QueueStatusApproved,
		ProcessedAt: s.testNow.Add(2 * time.Minute),
	})
	s.Require().NoError(err)

	entries, err = s.repo.ListPending(context.Background(), &ListPendingInput{
		SessionID: "test-session-id",
	})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("entry-2", entries[0].ID)
}

func (s *RedisRepositoryTestSuite) TestSweepExpired() {
	_, err := s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("stale-entry", "user-a", s.testNow.Add(-2*time.Minute)),
	})
	s.Require().NoError(err)
	_, err = s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("fresh-entry", "user-b", s.testNow),
	})
	s.Require().NoError(err)

	expired, err := s.repo.SweepExpired(context.Background(), &SweepExpiredInput{
		SessionID: "test-session-id",
		OlderThan: s.testNow.Add(-time.Minute),
	})
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal("stale-entry", expired[0].ID)
	s.Equal(models.QueueStatusExpired, expired[0].Status)

	// The fresh entry is still pending.
	entries, err := s.repo.ListPending(context.Background(), &ListPendingInput{
		SessionID: "test-session-id",
	})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("fresh-entry", entries[0].ID)

	// The swept user may request again.
	_, err = s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("retry-entry", "user-a", s.testNow),
	})
	s.Require().NoError(err)
}

func (s *RedisRepositoryTestSuite) TestUpdateStatusConcurrentTransitionsOneWins() {
	_, err := s.repo.CreateEntry(context.Background(), &CreateEntryInput{
		Entry: s.entry("entry-1", "user-a", s.testNow),
	})
	s.Require().NoError(err)

	// An approval and an expiry sweep race on the same entry. Exactly one
	// transition may apply; the loser sees a terminal entry.
	approveErr := make(chan error, 1)
	expireErr := make(chan error, 1)

	go func() {
		_, err := s.repo.UpdateStatus(context.Background(), &UpdateStatusInput{
			EntryID:     "entry-1",
			Status:      models.QueueStatusApproved,
			ProcessedAt: s.testNow.Add(time.Minute),
		})
		approveErr <- err
	}()
	go func() {
		_, err := s.repo.UpdateStatus(context.Background(), &UpdateStatusInput{
			EntryID:     "entry-1",
			Status:      models.QueueStatusExpired,
			ProcessedAt: s.testNow.Add(time.Minute),
		})
		expireErr <- err
	}()

	errA := <-approveErr
	errB := <-expireErr

	if errA == nil {
		s.Equal(ErrEntryNotPending, errB)
	} else {
		s.Equal(ErrEntryNotPending, errA)
		s.Require().NoError(errB)
	}

	entry, err := s.repo.GetEntry(context.Background(), &GetEntryInput{EntryID: "entry-1"})
	s.Require().NoError(err)
	if errA == nil {
		s.Equal(models.QueueStatusApproved, entry.Status)
	} else {
		s.Equal(models.QueueStatusExpired, entry.Status)
	}
}

func (s *RedisRepositoryTestSuite) TestGetEntryNotFound() {
	_, err := s.repo.GetEntry(context.Background(), &GetEntryInput{EntryID: "missing-entry"})
	s.Require().Error(err)
	s.Equal(ErrEntryNotFound, err)
}
