package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/castlegate/castlegate/internal/connection"
	"github.com/castlegate/castlegate/internal/dependencies/mocks"
	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/rules"
	"github.com/castlegate/castlegate/internal/storage"
	"github.com/castlegate/castlegate/internal/storage/memory"
	"github.com/castlegate/castlegate/internal/testutil"
)

type nopSender struct{}

func (nopSender) Send(model.Message) error { return nil }

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	cache      *storage.SessionCache
	engine     *rules.FakeEngine
	registry   *connection.Registry
	clock      *mocks.MockClock
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.cache = storage.NewSessionCache(s.storage, testutil.NopLogger())
	s.engine = rules.NewFakeEngine()
	s.registry = connection.NewRegistry(testutil.NopLogger())
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.controller = NewController(s.storage, s.cache, s.engine, s.registry, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

// seedSession stores an active session with alice as white and bob as
// black, at the opaque position "start" with white to move.
func (s *ControllerSuite) seedSession() *model.Session {
	session := &model.Session{
		ID:        "sess-1",
		PlayerA:   model.Player{ID: "alice", Side: model.SideWhite},
		PlayerB:   model.Player{ID: "bob", Side: model.SideBlack},
		Position:  "start",
		Status:    model.SessionActive,
		CreatedAt: s.clock.Now(),
		UpdatedAt: s.clock.Now(),
	}
	s.Require().NoError(s.storage.CreatePairing(s.ctx, session))
	s.engine.SetTurn("start", model.SideWhite)
	return session
}

func (s *ControllerSuite) TestApplyMoveSucceeds() {
	s.seedSession()
	move := model.Move{From: "e2", To: "e4"}
	s.engine.Allow("start", move, "after-e4")
	s.engine.SetTurn("after-e4", model.SideBlack)
	s.clock.CurrentTime = s.clock.CurrentTime.Add(time.Minute)

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "alice", move)
	s.Require().NoError(err)
	s.True(outcome.Applied)
	s.False(outcome.Terminal)
	s.Equal("after-e4", outcome.Session.Position)
	s.Equal(s.clock.CurrentTime, outcome.Session.UpdatedAt)

	// The new position is durable before the outcome is returned
	stored, err := s.storage.GetSession(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal("after-e4", stored.Position)
	s.Equal(int64(1), stored.Version)
}

func (s *ControllerSuite) TestMoveOutOfTurnIsRejected() {
	s.seedSession()
	move := model.Move{From: "e7", To: "e5"}
	s.engine.Allow("start", move, "after-e5")

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "bob", move)
	s.Require().NoError(err)
	s.False(outcome.Applied)
	s.Equal(RejectNotYourTurn, outcome.RejectReason)

	stored, _ := s.storage.GetSession(s.ctx, "sess-1")
	s.Equal("start", stored.Position)
}

func (s *ControllerSuite) TestIllegalMoveIsRejectedWithoutMutation() {
	s.seedSession()

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "alice", model.Move{From: "e2", To: "e5"})
	s.Require().NoError(err)
	s.False(outcome.Applied)
	s.Equal(RejectIllegalMove, outcome.RejectReason)

	stored, _ := s.storage.GetSession(s.ctx, "sess-1")
	s.Equal("start", stored.Position)
	s.Equal(int64(0), stored.Version)
}

func (s *ControllerSuite) TestNonParticipantIsRefused() {
	s.seedSession()

	_, err := s.controller.ApplyMove(s.ctx, "sess-1", "mallory", model.Move{From: "e2", To: "e4"})
	s.Require().ErrorIs(err, model.ErrNotParticipant)
}

func (s *ControllerSuite) TestUnknownSession() {
	_, err := s.controller.ApplyMove(s.ctx, "nope", "alice", model.Move{From: "e2", To: "e4"})
	s.Require().ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ControllerSuite) TestMoveAgainstFinishedSessionIsRejected() {
	session := s.seedSession()
	session.Status = model.SessionOver
	s.Require().NoError(s.storage.SaveSession(s.ctx, session))

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "alice", model.Move{From: "e2", To: "e4"})
	s.Require().NoError(err)
	s.False(outcome.Applied)
	s.Equal(RejectSessionOver, outcome.RejectReason)
}

func (s *ControllerSuite) TestCheckmateEndsSessionWithWinner() {
	s.seedSession()
	move := model.Move{From: "d8", To: "h4"}
	s.engine.Allow("start", move, "mate")
	s.engine.SetTurn("start", model.SideBlack)
	// White is to move in the mated position, so white is the loser
	s.engine.SetTurn("mate", model.SideWhite)
	s.engine.SetOutcome("mate", rules.Outcome{Status: rules.StatusCheckmate})

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "bob", move)
	s.Require().NoError(err)
	s.True(outcome.Applied)
	s.True(outcome.Terminal)
	s.Equal(model.ResultBlackWins, outcome.Result)
	s.Equal(model.SessionOver, outcome.Session.Status)

	// All durable records are gone once the session is over
	_, err = s.storage.GetSession(s.ctx, "sess-1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	for _, playerID := range []model.PlayerID{"alice", "bob"} {
		_, err := s.storage.GetSessionPointer(s.ctx, playerID)
		s.ErrorIs(err, model.ErrNoSessionPointer)
	}
}

func (s *ControllerSuite) TestDrawEndsSessionWithoutWinner() {
	s.seedSession()
	move := model.Move{From: "f7", To: "f8"}
	s.engine.Allow("start", move, "stale")
	s.engine.SetOutcome("stale", rules.Outcome{Status: rules.StatusDraw, DrawReason: "stalemate"})

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "alice", move)
	s.Require().NoError(err)
	s.True(outcome.Terminal)
	s.Equal(model.ResultDraw, outcome.Result)
}

func (s *ControllerSuite) TestStaleCacheIsReloadedOnConflict() {
	session := s.seedSession()

	// Another process already moved: the store holds a newer version
	// than the cached copy. Black is to move in both, so the stale copy
	// passes validation, fails the version check, and the retry applies
	// the move against the reloaded position.
	stale := *session
	s.cache.Put(&stale)
	session.Position = "after-e4"
	s.Require().NoError(s.storage.SaveSessionCAS(s.ctx, session))
	s.engine.SetTurn("start", model.SideBlack)
	s.engine.SetTurn("after-e4", model.SideBlack)

	move := model.Move{From: "e7", To: "e5"}
	s.engine.Allow("start", move, "stale-e5")
	s.engine.Allow("after-e4", move, "after-e5")

	outcome, err := s.controller.ApplyMove(s.ctx, "sess-1", "bob", move)
	s.Require().NoError(err)
	s.True(outcome.Applied)
	s.Equal("after-e5", outcome.Session.Position)
	s.Equal(int64(2), outcome.Session.Version)
}

func (s *ControllerSuite) TestSimultaneousSubmissionsApplyExactlyOne() {
	s.seedSession()
	white := model.Move{From: "e2", To: "e4"}
	s.engine.Allow("start", white, "after-e4")
	s.engine.SetTurn("after-e4", model.SideBlack)

	// Bob's move is scripted nowhere, so whichever ordering the race
	// produces, it is refused (out of turn at "start", illegal at
	// "after-e4") and exactly alice's move lands.
	black := model.Move{From: "g8", To: "f6"}

	var wg sync.WaitGroup
	outcomes := make([]*MoveOutcome, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		outcomes[0], errs[0] = s.controller.ApplyMove(s.ctx, "sess-1", "alice", white)
	}()
	go func() {
		defer wg.Done()
		outcomes[1], errs[1] = s.controller.ApplyMove(s.ctx, "sess-1", "bob", black)
	}()
	wg.Wait()

	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])
	s.True(outcomes[0].Applied)
	s.False(outcomes[1].Applied)

	stored, err := s.storage.GetSession(s.ctx, "sess-1")
	s.Require().NoError(err)
	s.Equal("after-e4", stored.Position)
	s.Equal(int64(1), stored.Version)
}

func (s *ControllerSuite) TestResolveConnections() {
	session := s.seedSession()
	s.registry.Register("alice", "conn-a", nopSender{})

	err := s.controller.ResolveConnections(session, "alice")
	s.Require().NoError(err)
	s.Equal(model.ConnectionID("conn-a"), session.PlayerA.ConnectionID)
	s.Equal(model.ConnectionID(""), session.PlayerB.ConnectionID)
}

func (s *ControllerSuite) TestResolveConnectionsRequiresLivePlayer() {
	session := s.seedSession()

	err := s.controller.ResolveConnections(session, "bob")
	s.Require().ErrorIs(err, model.ErrConnectionNotFound)
}
