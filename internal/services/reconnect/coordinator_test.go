package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/castlegate/castlegate/internal/connection"
	"github.com/castlegate/castlegate/internal/dependencies/mocks"
	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/rules"
	"github.com/castlegate/castlegate/internal/services/session"
	"github.com/castlegate/castlegate/internal/storage"
	"github.com/castlegate/castlegate/internal/storage/memory"
	"github.com/castlegate/castlegate/internal/testutil"
)

type nopSender struct{}

func (nopSender) Send(model.Message) error { return nil }

type CoordinatorSuite struct {
	suite.Suite
	storage     *memory.Storage
	cache       *storage.SessionCache
	registry    *connection.Registry
	coordinator *Coordinator
	ctx         context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.storage = memory.New()
	s.cache = storage.NewSessionCache(s.storage, testutil.NopLogger())
	s.registry = connection.NewRegistry(testutil.NopLogger())
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	controller := session.NewController(
		s.storage, s.cache, rules.NewFakeEngine(), s.registry, clock, testutil.NopLogger(),
	)
	s.coordinator = NewCoordinator(s.storage, controller, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *CoordinatorSuite) seedSession(status model.SessionStatus) *model.Session {
	sess := &model.Session{
		ID:       "sess-1",
		PlayerA:  model.Player{ID: "alice", Side: model.SideWhite},
		PlayerB:  model.Player{ID: "bob", Side: model.SideBlack},
		Position: "middlegame",
		Status:   status,
	}
	s.Require().NoError(s.storage.CreatePairing(s.ctx, sess))
	return sess
}

func (s *CoordinatorSuite) TestNothingToResume() {
	s.registry.Register("alice", "conn-a", nopSender{})

	resumption, err := s.coordinator.OnConnect(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	s.Nil(resumption)
}

func (s *CoordinatorSuite) TestResumesActiveSession() {
	s.seedSession(model.SessionActive)
	s.registry.Register("bob", "conn-b", nopSender{})

	resumption, err := s.coordinator.OnConnect(s.ctx, "bob", "conn-b")
	s.Require().NoError(err)
	s.Require().NotNil(resumption)
	s.Equal(model.SessionID("sess-1"), resumption.Session.ID)
	s.Equal("middlegame", resumption.Payload.Position)
	s.Equal(model.SideBlack, resumption.Payload.Side)

	// The session's connection reference now points at the live connection
	s.Equal(model.ConnectionID("conn-b"), resumption.Session.Participant("bob").ConnectionID)
}

func (s *CoordinatorSuite) TestRepeatedConnectIsIdempotent() {
	s.seedSession(model.SessionActive)
	s.registry.Register("alice", "conn-a", nopSender{})

	first, err := s.coordinator.OnConnect(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	second, err := s.coordinator.OnConnect(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)

	s.Equal(first.Payload, second.Payload)
	s.Equal(first.Session.ID, second.Session.ID)
}

func (s *CoordinatorSuite) TestDanglingPointerIsCleared() {
	s.Require().NoError(s.storage.SetSessionPointer(s.ctx, "alice", "ghost"))
	s.registry.Register("alice", "conn-a", nopSender{})

	resumption, err := s.coordinator.OnConnect(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	s.Nil(resumption)

	_, err = s.storage.GetSessionPointer(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNoSessionPointer)
}

func (s *CoordinatorSuite) TestFinishedSessionPointerIsCleared() {
	s.seedSession(model.SessionOver)
	s.registry.Register("alice", "conn-a", nopSender{})

	resumption, err := s.coordinator.OnConnect(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	s.Nil(resumption)

	_, err = s.storage.GetSessionPointer(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNoSessionPointer)
}

func (s *CoordinatorSuite) TestPointerToForeignSessionIsCleared() {
	s.seedSession(model.SessionActive)
	s.Require().NoError(s.storage.SetSessionPointer(s.ctx, "mallory", "sess-1"))
	s.registry.Register("mallory", "conn-m", nopSender{})

	resumption, err := s.coordinator.OnConnect(s.ctx, "mallory", "conn-m")
	s.Require().NoError(err)
	s.Nil(resumption)

	_, err = s.storage.GetSessionPointer(s.ctx, "mallory")
	s.ErrorIs(err, model.ErrNoSessionPointer)
}
