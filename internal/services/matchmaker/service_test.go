package matchmaker

import (
	"context"
	"errors"
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

type ServiceSuite struct {
	suite.Suite
	storage  *memory.Storage
	registry *connection.Registry
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.registry = connection.NewRegistry(testutil.NopLogger())
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.registry, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) connect(playerID model.PlayerID, connID model.ConnectionID) {
	s.registry.Register(playerID, connID, nopSender{})
}

func (s *ServiceSuite) TestFirstPlayerIsEnqueued() {
	s.connect("alice", "conn-a")

	result, err := s.service.TryPair(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	s.True(result.Enqueued)
	s.Nil(result.Session)

	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(1), length)
}

func (s *ServiceSuite) TestSecondPlayerPairs() {
	s.connect("alice", "conn-a")
	s.connect("bob", "conn-b")

	first, err := s.service.TryPair(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	s.True(first.Enqueued)

	second, err := s.service.TryPair(s.ctx, "bob", "conn-b")
	s.Require().NoError(err)
	s.False(second.Enqueued)
	s.Require().NotNil(second.Session)

	session := second.Session
	s.Equal(model.PlayerID("alice"), session.PlayerA.ID)
	s.Equal(model.PlayerID("bob"), session.PlayerB.ID)
	s.NotEqual(session.PlayerA.Side, session.PlayerB.Side)
	s.Equal(rules.StartingPosition, session.Position)
	s.Equal(model.SessionActive, session.Status)
	s.NoError(session.Validate())

	// Queue is drained and both pointers are set
	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(0), length)
	for _, playerID := range []model.PlayerID{"alice", "bob"} {
		sessionID, err := s.storage.GetSessionPointer(s.ctx, playerID)
		s.Require().NoError(err)
		s.Equal(session.ID, sessionID)
	}
}

func (s *ServiceSuite) TestSideAssignmentFollowsCoinFlip() {
	s.connect("alice", "conn-a")
	s.connect("bob", "conn-b")
	s.random.QueueCoinFlip(true) // waiting player gets black

	_, _ = s.service.TryPair(s.ctx, "alice", "conn-a")
	result, err := s.service.TryPair(s.ctx, "bob", "conn-b")
	s.Require().NoError(err)

	s.Equal(model.SideBlack, result.Session.PlayerA.Side)
	s.Equal(model.SideWhite, result.Session.PlayerB.Side)
}

func (s *ServiceSuite) TestDeadEntryIsDiscarded() {
	s.connect("alice", "conn-a")
	_, _ = s.service.TryPair(s.ctx, "alice", "conn-a")

	// Alice disconnects while queued; her entry is still in the store
	s.registry.Unregister("conn-a")

	s.connect("bob", "conn-b")
	result, err := s.service.TryPair(s.ctx, "bob", "conn-b")
	s.Require().NoError(err)
	s.True(result.Enqueued)

	// Bob replaced the dead entry as the only waiter
	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(1), length)
	entry, err := s.storage.PopWaiting(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("bob"), entry.PlayerID)
}

func (s *ServiceSuite) TestOwnStaleEntryDoesNotSelfPair() {
	s.connect("alice", "conn-a")
	_, _ = s.service.TryPair(s.ctx, "alice", "conn-a")

	// Alice requests again while still queued
	result, err := s.service.TryPair(s.ctx, "alice", "conn-a")
	s.Require().NoError(err)
	s.True(result.Enqueued)

	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(1), length)
}

func (s *ServiceSuite) TestExhaustivePairing() {
	// Even number of distinct players: everyone ends up in exactly one
	// session and the queue is empty.
	players := []model.PlayerID{"p1", "p2", "p3", "p4", "p5", "p6"}
	sessions := make(map[model.SessionID][]model.PlayerID)

	for i, playerID := range players {
		connID := model.ConnectionID("conn-" + string(rune('a'+i)))
		s.connect(playerID, connID)
		result, err := s.service.TryPair(s.ctx, playerID, connID)
		s.Require().NoError(err)
		if result.Session != nil {
			sessions[result.Session.ID] = []model.PlayerID{
				result.Session.PlayerA.ID, result.Session.PlayerB.ID,
			}
		}
	}

	s.Len(sessions, 3)
	seen := make(map[model.PlayerID]int)
	for _, pair := range sessions {
		s.Len(pair, 2)
		s.NotEqual(pair[0], pair[1])
		seen[pair[0]]++
		seen[pair[1]]++
	}
	for _, playerID := range players {
		s.Equal(1, seen[playerID], "player %s should be in exactly one session", playerID)
	}

	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(0), length)
}

func (s *ServiceSuite) TestConcurrentPairingAgainstOneWaiter() {
	// Two callers race for the single waiting entry: the atomic pop
	// guarantees exactly one pairs and the other is enqueued.
	s.connect("alice", "conn-a")
	s.connect("bob", "conn-b")
	s.connect("carol", "conn-c")
	_, _ = s.service.TryPair(s.ctx, "alice", "conn-a")

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.service.TryPair(s.ctx, "bob", "conn-b")
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = s.service.TryPair(s.ctx, "carol", "conn-c")
	}()
	wg.Wait()

	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])

	paired, enqueued := 0, 0
	for _, result := range results {
		if result.Session != nil {
			paired++
			s.Equal(model.PlayerID("alice"), result.Session.PlayerA.ID)
		}
		if result.Enqueued {
			enqueued++
		}
	}
	s.Equal(1, paired)
	s.Equal(1, enqueued)

	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(1), length)
}

// pairingFailStore simulates a store that cannot persist new pairings
type pairingFailStore struct {
	storage.Store
}

func (pairingFailStore) CreatePairing(context.Context, *model.Session) error {
	return errors.New("store unavailable")
}

func (s *ServiceSuite) TestFailedPairingRequeuesWaiter() {
	s.connect("alice", "conn-a")
	s.connect("bob", "conn-b")
	_, _ = s.service.TryPair(s.ctx, "alice", "conn-a")

	broken := New(pairingFailStore{Store: s.storage}, s.registry, s.clock, s.random, testutil.NopLogger())
	_, err := broken.TryPair(s.ctx, "bob", "conn-b")
	s.Require().Error(err)

	// Alice keeps her place at the front of the queue
	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(1), length)
	entry, err := s.storage.PopWaiting(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.PlayerID("alice"), entry.PlayerID)
}

func (s *ServiceSuite) TestOddLeftover() {
	players := []model.PlayerID{"p1", "p2", "p3"}
	paired := 0

	for i, playerID := range players {
		connID := model.ConnectionID("conn-" + string(rune('a'+i)))
		s.connect(playerID, connID)
		result, err := s.service.TryPair(s.ctx, playerID, connID)
		s.Require().NoError(err)
		if result.Session != nil {
			paired++
		}
	}

	s.Equal(1, paired)
	length, _ := s.storage.QueueLength(s.ctx)
	s.Equal(int64(1), length)
}
