package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	clockMocks "github.com/gridhall/bingo/internal/common/clock/mocks"
	uuidMocks "github.com/gridhall/bingo/internal/common/uuid/mocks"
	"github.com/gridhall/bingo/internal/models"
	eventRepo "github.com/gridhall/bingo/internal/repositories/event"
	playerRepo "github.com/gridhall/bingo/internal/repositories/player"
	queueRepo "github.com/gridhall/bingo/internal/repositories/queue"
	sessionRepo "github.com/gridhall/bingo/internal/repositories/session"
	"github.com/gridhall/bingo/internal/services/realtime"
	"github.com/gridhall/bingo/internal/wincheck"
)

// The suite runs the service against real Redis-backed repositories on
// miniredis and the real broadcast hub, so the CAS path, the Lua append and
// the fan-out ordering are all exercised end to end.
type SessionServiceTestSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mr          *miniredis.Miniredis
	client      *redis.Client
	mockClock   *clockMocks.MockClock
	mockUUID    *uuidMocks.MockUUID
	broadcaster realtime.Service
	svc         Service

	sessions sessionRepo.Repository
	players  playerRepo.Repository
	queue    queueRepo.Repository
	events   eventRepo.Repository

	testNow   time.Time
	uuidCount int
}

func (s *SessionServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})

	sessions, err := sessionRepo.NewRedis(&sessionRepo.Config{RedisClient: s.client})
	s.Require().NoError(err)
	players, err := playerRepo.NewRedis(&playerRepo.Config{RedisClient: s.client})
	s.Require().NoError(err)
	queue, err := queueRepo.NewRedis(&queueRepo.Config{RedisClient: s.client})
	s.Require().NoError(err)
	events, err := eventRepo.NewRedis(&eventRepo.Config{RedisClient: s.client})
	s.Require().NoError(err)
	s.sessions = sessions
	s.players = players
	s.queue = queue
	s.events = events

	broadcaster, err := realtime.NewService(&realtime.Config{BufferSize: 32})
	s.Require().NoError(err)
	s.broadcaster = broadcaster

	s.testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.mockClock = clockMocks.NewMockClock(s.ctrl)
	s.mockClock.EXPECT().Now().DoAndReturn(func() time.Time {
		return s.testNow
	}).AnyTimes()

	s.uuidCount = 0
	s.mockUUID = uuidMocks.NewMockUUID(s.ctrl)
	s.mockUUID.EXPECT().NewUUID().DoAndReturn(func() string {
		s.uuidCount++
		return fmt.Sprintf("test-uuid-%d", s.uuidCount)
	}).AnyTimes()

	svc, err := New(&Config{
		QueueTTL:      time.Minute,
		SessionRepo:   sessions,
		PlayerRepo:    players,
		QueueRepo:     queue,
		EventRepo:     events,
		Broadcaster:   broadcaster,
		Clock:         s.mockClock,
		UUIDGenerator: s.mockUUID,
	})
	s.Require().NoError(err)
	s.svc = svc
}

func (s *SessionServiceTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
	s.ctrl.Finish()
}

func TestSessionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceTestSuite))
}

func (s *SessionServiceTestSuite) layout() *models.BoardLayout {
	cells := make([]string, 25)
	for i := range cells {
		cells[i] = fmt.Sprintf("goal-%d", i)
	}
	return &models.BoardLayout{
		BoardID: "test-board-id",
		Size:    5,
		Cells:   cells,
	}
}

// createSession builds a waiting session hosted by host-id
func (s *SessionServiceTestSuite) createSession(settings models.SessionSettings) *models.Session {
	out, err := s.svc.CreateSession(context.Background(), &CreateSessionInput{
		HostID:    "host-id",
		HostColor: "red",
		Layout:    s.layout(),
		Settings:  settings,
	})
	s.Require().NoError(err)
	return out.Session
}

// activeSession builds a started session with host-id (red) and player-2 (blue)
func (s *SessionServiceTestSuite) activeSession(settings models.SessionSettings) *models.Session {
	session := s.createSession(settings)

	_, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
		Color:     "blue",
	})
	s.Require().NoError(err)

	started, err := s.svc.StartSession(context.Background(), &StartSessionInput{
		SessionID: session.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)
	return started.Session
}

func (s *SessionServiceTestSuite) mark(sessionID, playerID string, position int, expected int64) (*ProposeMutationOutput, error) {
	return s.svc.ProposeMutation(context.Background(), &ProposeMutationInput{
		SessionID:       sessionID,
		PlayerID:        playerID,
		Position:        position,
		ExpectedVersion: expected,
		Action:          MutationActionMark,
	})
}

func (s *SessionServiceTestSuite) TestCreateSessionSeatsHostWithDefaults() {
	session := s.createSession(models.SessionSettings{})

	s.Equal(models.SessionStatusWaiting, session.Status)
	s.Equal(8, session.Settings.MaxPlayers)
	s.Equal(5, session.Settings.BoardSize)
	s.Equal([]string{"line", "column", "diagonal"}, session.Settings.WinPatterns)

	out, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Require().Len(out.Players, 1)
	s.Equal("host-id", out.Players[0].UserID)
	s.True(out.Players[0].IsHost)
	s.Equal("red", out.Players[0].Color)
}

func (s *SessionServiceTestSuite) TestStartSessionSeedsGrid() {
	session := s.activeSession(models.SessionSettings{})

	s.Equal(models.SessionStatusActive, session.Status)
	s.Require().NotNil(session.StartedAt)

	sub, err := s.svc.Subscribe(context.Background(), &SubscribeInput{SessionID: session.ID})
	s.Require().NoError(err)
	defer sub.Cancel()

	s.Require().Len(sub.Cells, 25)
	for i, cell := range sub.Cells {
		s.Equal(i, cell.Position)
		s.Equal(fmt.Sprintf("goal-%d", i), cell.Text)
		s.False(cell.Marked)
		s.Equal(int64(0), cell.Version)
	}
}

func (s *SessionServiceTestSuite) TestStartSessionRequiresHost() {
	session := s.createSession(models.SessionSettings{})

	_, err := s.svc.StartSession(context.Background(), &StartSessionInput{
		SessionID: session.ID,
		HostID:    "player-2",
	})
	s.ErrorIs(err, ErrNotAuthorized)
}

func (s *SessionServiceTestSuite) TestStartSessionTwiceIsRejected() {
	session := s.activeSession(models.SessionSettings{})

	_, err := s.svc.StartSession(context.Background(), &StartSessionInput{
		SessionID: session.ID,
		HostID:    "host-id",
	})
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *SessionServiceTestSuite) TestProposeMutationMarksCell() {
	session := s.activeSession(models.SessionSettings{})

	out, err := s.mark(session.ID, "host-id", 7, 0)
	s.Require().NoError(err)

	s.True(out.Accepted)
	s.Require().NotNil(out.Cell)
	s.True(out.Cell.Marked)
	s.Equal(int64(1), out.Cell.Version)
	s.Equal([]string{"red"}, out.Cell.Colors)
	s.Equal([]string{"host-id"}, out.Cell.CompletedBy)
	s.Equal("host-id", out.Cell.LastModifiedBy)

	s.Require().NotNil(out.Event)
	s.Equal(models.EventTypeCellMarked, out.Event.Type)
	s.Equal(7, out.Event.Position)
	s.Require().NotNil(out.Event.Cell)
	s.True(out.Event.Cell.Marked)
	s.Nil(out.Win)
}

func (s *SessionServiceTestSuite) TestSimultaneousProposalsOneAcceptedOneConflicted() {
	session := s.activeSession(models.SessionSettings{})

	// Both players read the cell at version 0 and propose against it.
	first, err := s.mark(session.ID, "host-id", 3, 0)
	s.Require().NoError(err)
	s.True(first.Accepted)

	second, err := s.mark(session.ID, "player-2", 3, 0)
	s.ErrorIs(err, ErrVersionConflict)
	s.Require().NotNil(second)
	s.False(second.Accepted)

	// The loser gets the authoritative cell: only the winner's mark applied,
	// no partial state from the losing proposal.
	s.Require().NotNil(second.Cell)
	s.Equal(int64(1), second.Cell.Version)
	s.Equal([]string{"red"}, second.Cell.Colors)
	s.Equal([]string{"host-id"}, second.Cell.CompletedBy)

	// Retrying against the fresh version succeeds.
	retry, err := s.mark(session.ID, "player-2", 3, 1)
	s.Require().NoError(err)
	s.True(retry.Accepted)
	s.Equal(int64(2), retry.Cell.Version)
	s.Equal([]string{"red", "blue"}, retry.Cell.Colors)
}

func (s *SessionServiceTestSuite) TestUnmarkRemovesAttribution() {
	session := s.activeSession(models.SessionSettings{})

	marked, err := s.mark(session.ID, "host-id", 4, 0)
	s.Require().NoError(err)

	out, err := s.svc.ProposeMutation(context.Background(), &ProposeMutationInput{
		SessionID:       session.ID,
		PlayerID:        "host-id",
		Position:        4,
		ExpectedVersion: marked.Cell.Version,
		Action:          MutationActionUnmark,
	})
	s.Require().NoError(err)

	s.True(out.Accepted)
	s.False(out.Cell.Marked)
	s.Empty(out.Cell.Colors)
	s.Empty(out.Cell.CompletedBy)
	s.Equal(int64(2), out.Cell.Version)
	s.Equal(models.EventTypeCellUnmarked, out.Event.Type)
}

func (s *SessionServiceTestSuite) TestMutationRequiresActiveSession() {
	session := s.createSession(models.SessionSettings{})

	_, err := s.mark(session.ID, "host-id", 0, 0)
	s.ErrorIs(err, ErrSessionNotActive)
}

func (s *SessionServiceTestSuite) TestMutationByNonPlayerIsRejected() {
	session := s.activeSession(models.SessionSettings{})

	_, err := s.mark(session.ID, "stranger-id", 0, 0)
	s.ErrorIs(err, ErrNotAuthorized)
}

func (s *SessionServiceTestSuite) TestMutationOutOfRangeIsRejected() {
	session := s.activeSession(models.SessionSettings{})

	_, err := s.mark(session.ID, "host-id", 25, 0)
	s.ErrorIs(err, ErrPositionOutOfRange)

	_, err = s.mark(session.ID, "host-id", -1, 0)
	s.ErrorIs(err, ErrPositionOutOfRange)
}

func (s *SessionServiceTestSuite) TestRowCompletionWinsOnFifthMarkOnly() {
	session := s.activeSession(models.SessionSettings{
		Lockout:     true,
		WinPatterns: []string{string(wincheck.PatternLine)},
	})

	// Row 2 is positions 10 through 14. The first four marks must not win.
	for _, pos := range []int{10, 11, 12, 13} {
		out, err := s.mark(session.ID, "host-id", pos, 0)
		s.Require().NoError(err)
		s.Nil(out.Win)
	}

	out, err := s.mark(session.ID, "host-id", 14, 0)
	s.Require().NoError(err)

	s.Require().NotNil(out.Win)
	s.Equal([]string{"host-id"}, out.Win.Winners)
	s.Equal([]wincheck.Pattern{wincheck.PatternLine}, out.Win.Patterns)

	got, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Equal(models.SessionStatusCompleted, got.Session.Status)
	s.Equal([]string{"host-id"}, got.Session.WinnerIDs)
	s.Require().NotNil(got.Session.EndedAt)
}

func (s *SessionServiceTestSuite) TestLockoutRefusesProposalsAfterWin() {
	session := s.activeSession(models.SessionSettings{
		Lockout:     true,
		WinPatterns: []string{string(wincheck.PatternLine)},
	})

	for _, pos := range []int{0, 1, 2, 3, 4} {
		_, err := s.mark(session.ID, "host-id", pos, 0)
		s.Require().NoError(err)
	}

	// The win completed the session; the next proposal races it and loses.
	_, err := s.mark(session.ID, "player-2", 5, 0)
	s.ErrorIs(err, ErrSessionNotActive)
}

func (s *SessionServiceTestSuite) TestConcurrentLineMarksEndSessionOnce() {
	session := s.activeSession(models.SessionSettings{
		Lockout:     true,
		WinPatterns: []string{string(wincheck.PatternLine)},
	})

	for _, pos := range []int{10, 11, 12} {
		_, err := s.mark(session.ID, "host-id", pos, 0)
		s.Require().NoError(err)
	}

	// Two marks that jointly complete row 2 land at the same time. Both are
	// accepted, but only the one that observes the finished grid may end the
	// session.
	type proposal struct {
		out *ProposeMutationOutput
		err error
	}
	results := make(chan proposal, 2)
	for _, pos := range []int{13, 14} {
		go func(pos int) {
			out, err := s.mark(session.ID, "host-id", pos, 0)
			results <- proposal{out: out, err: err}
		}(pos)
	}

	wins := 0
	for i := 0; i < 2; i++ {
		r := <-results
		s.Require().NoError(r.err)
		s.True(r.out.Accepted)
		if r.out.Win != nil {
			wins++
		}
	}
	s.Equal(1, wins)

	got, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Equal(models.SessionStatusCompleted, got.Session.Status)
	s.Equal([]string{"host-id"}, got.Session.WinnerIDs)

	// The log records exactly one game_ended.
	log, err := s.events.ListSince(context.Background(), &eventRepo.ListSinceInput{
		SessionID: session.ID,
	})
	s.Require().NoError(err)
	ended := 0
	for _, ev := range log {
		if ev.Type == models.EventTypeGameEnded {
			ended++
		}
	}
	s.Equal(1, ended)
}

func (s *SessionServiceTestSuite) TestApproveJoinAfterCancelIsRejected() {
	session := s.createSession(models.SessionSettings{RequireApproval: true})

	requested, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)

	_, err = s.svc.CancelSession(context.Background(), &CancelSessionInput{
		SessionID: session.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)

	_, err = s.svc.ApproveJoin(context.Background(), &ApproveJoinInput{
		SessionID: session.ID,
		EntryID:   requested.Entry.ID,
		HostID:    "host-id",
	})
	s.ErrorIs(err, ErrInvalidTransition)

	// Nobody was seated into the cancelled session.
	out, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Len(out.Players, 1)
}

func (s *SessionServiceTestSuite) TestCancelReleasesUndrainedSubscriber() {
	broadcaster, err := realtime.NewService(&realtime.Config{BufferSize: 1})
	s.Require().NoError(err)

	svc, err := New(&Config{
		QueueTTL:      time.Minute,
		SessionRepo:   s.sessions,
		PlayerRepo:    s.players,
		QueueRepo:     s.queue,
		EventRepo:     s.events,
		Broadcaster:   broadcaster,
		Clock:         s.mockClock,
		UUIDGenerator: s.mockUUID,
	})
	s.Require().NoError(err)

	created, err := svc.CreateSession(context.Background(), &CreateSessionInput{
		HostID:    "host-id",
		HostColor: "red",
		Layout:    s.layout(),
	})
	s.Require().NoError(err)
	_, err = svc.StartSession(context.Background(), &StartSessionInput{
		SessionID: created.Session.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)

	sub, err := svc.Subscribe(context.Background(), &SubscribeInput{
		SessionID: created.Session.ID,
	})
	s.Require().NoError(err)

	// Never drain Updates; with a buffer of one, three marks are enough to
	// fill every stage of the pipeline.
	for _, pos := range []int{0, 1, 2} {
		_, err := svc.ProposeMutation(context.Background(), &ProposeMutationInput{
			SessionID:       created.Session.ID,
			PlayerID:        "host-id",
			Position:        pos,
			ExpectedVersion: 0,
			Action:          MutationActionMark,
		})
		s.Require().NoError(err)
	}

	sub.Cancel()

	// Cancel must release the forwarding goroutine even though nothing was
	// read: the updates channel closes once its buffer is drained.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Updates:
			if !ok {
				return
			}
		case <-deadline:
			s.FailNow("updates channel did not close after cancel")
			return
		}
	}
}

func (s *SessionServiceTestSuite) TestJoinQueueApprovalFlow() {
	session := s.createSession(models.SessionSettings{RequireApproval: true})

	requested, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
		Color:     "blue",
	})
	s.Require().NoError(err)
	s.Equal(JoinStatusPending, requested.Status)
	s.Require().NotNil(requested.Entry)

	// A second request while the first is pending is a duplicate.
	_, err = s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.ErrorIs(err, ErrDuplicateRequest)

	// Only the host may approve.
	_, err = s.svc.ApproveJoin(context.Background(), &ApproveJoinInput{
		SessionID: session.ID,
		EntryID:   requested.Entry.ID,
		HostID:    "player-2",
	})
	s.ErrorIs(err, ErrNotAuthorized)

	approved, err := s.svc.ApproveJoin(context.Background(), &ApproveJoinInput{
		SessionID: session.ID,
		EntryID:   requested.Entry.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)
	s.Equal(models.QueueStatusApproved, approved.Entry.Status)
	s.Require().NotNil(approved.Player)
	s.Equal("blue", approved.Player.Color)

	// The entry is terminal now; a second host action is rejected.
	_, err = s.svc.RejectJoin(context.Background(), &RejectJoinInput{
		SessionID: session.ID,
		EntryID:   requested.Entry.ID,
		HostID:    "host-id",
	})
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *SessionServiceTestSuite) TestRejectJoinLeavesNoSeat() {
	session := s.createSession(models.SessionSettings{RequireApproval: true})

	requested, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)

	rejected, err := s.svc.RejectJoin(context.Background(), &RejectJoinInput{
		SessionID: session.ID,
		EntryID:   requested.Entry.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)
	s.Equal(models.QueueStatusRejected, rejected.Entry.Status)

	out, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Len(out.Players, 1)
	s.Len(out.Pending, 0)
}

func (s *SessionServiceTestSuite) TestApprovalAtCapacityKeepsEntryPending() {
	session := s.createSession(models.SessionSettings{
		MaxPlayers:      2,
		RequireApproval: true,
	})

	second, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)
	third, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-3",
	})
	s.Require().NoError(err)

	_, err = s.svc.ApproveJoin(context.Background(), &ApproveJoinInput{
		SessionID: session.ID,
		EntryID:   second.Entry.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)

	// The session is full; approving the third request fails but must not
	// consume the entry.
	_, err = s.svc.ApproveJoin(context.Background(), &ApproveJoinInput{
		SessionID: session.ID,
		EntryID:   third.Entry.ID,
		HostID:    "host-id",
	})
	s.ErrorIs(err, ErrCapacityExceeded)

	out, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Require().Len(out.Pending, 1)
	s.Equal(third.Entry.ID, out.Pending[0].ID)
	s.Equal(models.QueueStatusPending, out.Pending[0].Status)
}

func (s *SessionServiceTestSuite) TestJoinAtCapacityIsRejected() {
	session := s.createSession(models.SessionSettings{MaxPlayers: 1})

	_, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.ErrorIs(err, ErrCapacityExceeded)
}

func (s *SessionServiceTestSuite) TestJoinWithTakenColorIsRejected() {
	session := s.createSession(models.SessionSettings{})

	_, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
		Color:     "red",
	})
	s.ErrorIs(err, ErrColorConflict)
}

func (s *SessionServiceTestSuite) TestSpectatorJoin() {
	session := s.createSession(models.SessionSettings{AllowSpectators: true})

	out, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "watcher-id",
		Spectator: true,
	})
	s.Require().NoError(err)
	s.Equal(JoinStatusSpectator, out.Status)
	s.Nil(out.Player)

	// No seat was created.
	got, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Len(got.Players, 1)
}

func (s *SessionServiceTestSuite) TestSpectatorJoinDisallowed() {
	session := s.createSession(models.SessionSettings{})

	_, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "watcher-id",
		Spectator: true,
	})
	s.ErrorIs(err, ErrSpectatorsNotAllowed)
}

func (s *SessionServiceTestSuite) TestAutoStartOnFill() {
	session := s.createSession(models.SessionSettings{
		MaxPlayers: 2,
		AutoStart:  true,
	})

	_, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)

	out, err := s.svc.GetSession(context.Background(), &GetSessionInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Equal(models.SessionStatusActive, out.Session.Status)
}

func (s *SessionServiceTestSuite) TestLeaveSessionKeepsAttribution() {
	session := s.activeSession(models.SessionSettings{})

	_, err := s.mark(session.ID, "player-2", 6, 0)
	s.Require().NoError(err)

	left, err := s.svc.LeaveSession(context.Background(), &LeaveSessionInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)
	s.Require().NotNil(left.Player.LeftAt)

	// Departed players cannot mutate.
	_, err = s.mark(session.ID, "player-2", 7, 0)
	s.ErrorIs(err, ErrNotAuthorized)

	// The departed player's mark keeps its attribution.
	sub, err := s.svc.Subscribe(context.Background(), &SubscribeInput{SessionID: session.ID})
	s.Require().NoError(err)
	defer sub.Cancel()
	s.Equal([]string{"player-2"}, sub.Cells[6].CompletedBy)
}

func (s *SessionServiceTestSuite) TestEndSessionCompletesWithoutWinner() {
	session := s.activeSession(models.SessionSettings{})

	out, err := s.svc.EndSession(context.Background(), &EndSessionInput{
		SessionID: session.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)
	s.Equal(models.SessionStatusCompleted, out.Session.Status)
	s.Empty(out.Session.WinnerIDs)
}

func (s *SessionServiceTestSuite) TestCancelCompletedSessionIsRejected() {
	session := s.activeSession(models.SessionSettings{})

	_, err := s.svc.EndSession(context.Background(), &EndSessionInput{
		SessionID: session.ID,
		HostID:    "host-id",
	})
	s.Require().NoError(err)

	_, err = s.svc.CancelSession(context.Background(), &CancelSessionInput{
		SessionID: session.ID,
		HostID:    "host-id",
	})
	s.ErrorIs(err, ErrInvalidTransition)
}

func (s *SessionServiceTestSuite) TestSubscribeCatchUpFromVersion() {
	session := s.activeSession(models.SessionSettings{})

	// Build up a log: player_joined is version 1, game_started version 2,
	// then nine marks bring the head to version 11.
	for pos := 0; pos < 9; pos++ {
		_, err := s.mark(session.ID, "host-id", pos, 0)
		s.Require().NoError(err)
	}

	// A subscriber at version 7 receives exactly versions 8 through 11.
	sub, err := s.svc.Subscribe(context.Background(), &SubscribeInput{
		SessionID:    session.ID,
		SinceVersion: 7,
	})
	s.Require().NoError(err)
	defer sub.Cancel()

	s.Require().Len(sub.Backlog, 4)
	for i, ev := range sub.Backlog {
		s.Equal(int64(8+i), ev.Version)
	}

	// A live mutation continues the stream with the next version, once.
	out, err := s.mark(session.ID, "player-2", 20, 0)
	s.Require().NoError(err)

	ev := <-sub.Updates
	s.Equal(out.Event.Version, ev.Version)
	s.Equal(int64(12), ev.Version)
}

func (s *SessionServiceTestSuite) TestReplayConvergesToAuthoritativeGrid() {
	session := s.activeSession(models.SessionSettings{})

	_, err := s.mark(session.ID, "host-id", 2, 0)
	s.Require().NoError(err)
	_, err = s.mark(session.ID, "player-2", 17, 0)
	s.Require().NoError(err)
	marked, err := s.mark(session.ID, "player-2", 2, 1)
	s.Require().NoError(err)
	_, err = s.svc.ProposeMutation(context.Background(), &ProposeMutationInput{
		SessionID:       session.ID,
		PlayerID:        "player-2",
		Position:        17,
		ExpectedVersion: 1,
		Action:          MutationActionUnmark,
	})
	s.Require().NoError(err)

	sub, err := s.svc.Subscribe(context.Background(), &SubscribeInput{SessionID: session.ID})
	s.Require().NoError(err)
	defer sub.Cancel()

	// Fold the full log into a blank local grid, with a duplicate delivery
	// thrown in. The result must match the authoritative grid cell for cell.
	local := make([]*models.Cell, 25)
	for _, ev := range sub.Backlog {
		models.ApplyEvent(local, ev)
		models.ApplyEvent(local, ev)
	}

	for pos, cell := range sub.Cells {
		if local[pos] == nil {
			// Never touched by a cell event; authoritative cell is pristine.
			s.False(cell.Marked)
			s.Equal(int64(0), cell.Version)
			continue
		}
		s.Equal(cell.Marked, local[pos].Marked)
		s.Equal(cell.Version, local[pos].Version)
		s.Equal(cell.Colors, local[pos].Colors)
		s.Equal(cell.CompletedBy, local[pos].CompletedBy)
	}

	// Spot check the contested cell: both colors, two completers, version 2.
	s.Equal(int64(2), local[2].Version)
	s.ElementsMatch([]string{"red", "blue"}, local[2].Colors)
	s.Equal(marked.Cell.CompletedBy, local[2].CompletedBy)

	// The unmarked cell converged back to empty at version 2.
	s.False(local[17].Marked)
	s.Equal(int64(2), local[17].Version)
}

func (s *SessionServiceTestSuite) TestExpireStaleRequests() {
	session := s.createSession(models.SessionSettings{RequireApproval: true})

	requested, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)

	// Nothing expires inside the TTL.
	swept, err := s.svc.ExpireStaleRequests(context.Background(), &ExpireStaleRequestsInput{
		SessionID: session.ID,
	})
	s.Require().NoError(err)
	s.Len(swept.Expired, 0)

	s.testNow = s.testNow.Add(2 * time.Minute)

	swept, err = s.svc.ExpireStaleRequests(context.Background(), &ExpireStaleRequestsInput{
		SessionID: session.ID,
	})
	s.Require().NoError(err)
	s.Require().Len(swept.Expired, 1)
	s.Equal(requested.Entry.ID, swept.Expired[0].ID)
	s.Equal(models.QueueStatusExpired, swept.Expired[0].Status)

	// An expired entry frees the user to request again.
	again, err := s.svc.RequestJoin(context.Background(), &RequestJoinInput{
		SessionID: session.ID,
		UserID:    "player-2",
	})
	s.Require().NoError(err)
	s.Equal(JoinStatusPending, again.Status)
}

func (s *SessionServiceTestSuite) TestSessionNotFound() {
	_, err := s.svc.GetSession(context.Background(), &GetSessionInput{
		SessionID: "missing-session-id",
	})
	s.ErrorIs(err, ErrSessionNotFound)
}
