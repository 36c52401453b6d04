package connection

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/testutil"
)

// recordingSender captures messages for assertions
type recordingSender struct {
	messages []model.Message
}

func (r *recordingSender) Send(msg model.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry(testutil.NopLogger())
}

func (s *RegistrySuite) TestRegisterAndLookup() {
	sender := &recordingSender{}
	s.registry.Register("alice", "conn-1", sender)

	connID, ok := s.registry.ConnectionFor("alice")
	s.True(ok)
	s.Equal(model.ConnectionID("conn-1"), connID)
	s.Equal(1, s.registry.ConnectionCount())
}

func (s *RegistrySuite) TestSendToPlayer() {
	sender := &recordingSender{}
	s.registry.Register("alice", "conn-1", sender)

	err := s.registry.SendToPlayer("alice", model.Message{Type: model.MessageQueued})
	s.Require().NoError(err)
	s.Len(sender.messages, 1)
	s.Equal(model.MessageQueued, sender.messages[0].Type)
}

func (s *RegistrySuite) TestSendToUnknownPlayer() {
	err := s.registry.SendToPlayer("nobody", model.Message{Type: model.MessageQueued})
	s.ErrorIs(err, model.ErrConnectionNotFound)
}

func (s *RegistrySuite) TestUnregister() {
	s.registry.Register("alice", "conn-1", &recordingSender{})

	playerID, ok := s.registry.Unregister("conn-1")
	s.True(ok)
	s.Equal(model.PlayerID("alice"), playerID)

	_, ok = s.registry.ConnectionFor("alice")
	s.False(ok)
	s.Equal(0, s.registry.ConnectionCount())
}

func (s *RegistrySuite) TestReconnectDisplacesOldConnection() {
	s.registry.Register("alice", "conn-1", &recordingSender{})
	newSender := &recordingSender{}
	s.registry.Register("alice", "conn-2", newSender)

	connID, ok := s.registry.ConnectionFor("alice")
	s.True(ok)
	s.Equal(model.ConnectionID("conn-2"), connID)

	// Unregistering the stale connection must not unbind the player
	playerID, ok := s.registry.Unregister("conn-1")
	s.False(ok)
	s.Empty(playerID)

	connID, ok = s.registry.ConnectionFor("alice")
	s.True(ok)
	s.Equal(model.ConnectionID("conn-2"), connID)
}

func (s *RegistrySuite) TestSendToPlayerFollowsReconnect() {
	old := &recordingSender{}
	replacement := &recordingSender{}
	s.registry.Register("alice", "conn-1", old)
	s.registry.Register("alice", "conn-2", replacement)

	err := s.registry.SendToPlayer("alice", model.Message{Type: model.MessageMoveApplied})
	s.Require().NoError(err)
	s.Empty(old.messages)
	s.Len(replacement.messages, 1)
}
