package model

import "time"

// SessionID uniquely identifies a session (one paired match)
type SessionID string

// SessionStatus represents the lifecycle state of a session.
// The only transition is active -> over; over is terminal.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionOver   SessionStatus = "over"
)

// Session is the durable state of one pairing: two players, the current
// position, and the status. The Version field is an optimistic-concurrency
// counter bumped by the store on every compare-and-swap write.
type Session struct {
	ID       SessionID     `json:"session_id"`
	PlayerA  Player        `json:"player_a"`
	PlayerB  Player        `json:"player_b"`
	Position string        `json:"fen"`
	Status   SessionStatus `json:"status"`
	Version  int64         `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant returns the player with the given ID, or nil if the
// player is not part of this session.
func (s *Session) Participant(id PlayerID) *Player {
	if s.PlayerA.ID == id {
		return &s.PlayerA
	}
	if s.PlayerB.ID == id {
		return &s.PlayerB
	}
	return nil
}

// Opponent returns the other participant, or nil if id is not a participant.
func (s *Session) Opponent(id PlayerID) *Player {
	if s.PlayerA.ID == id {
		return &s.PlayerB
	}
	if s.PlayerB.ID == id {
		return &s.PlayerA
	}
	return nil
}

// PlayerBySide returns the participant assigned the given side.
func (s *Session) PlayerBySide(side Side) *Player {
	if s.PlayerA.Side == side {
		return &s.PlayerA
	}
	return &s.PlayerB
}

// RecipientsFor centralizes the notification rules: who should receive a
// message of the given type, where actor is the player whose action
// produced it. Broadcast rules live here and nowhere else.
func (s *Session) RecipientsFor(msgType MessageType, actor PlayerID) []PlayerID {
	switch msgType {
	case MessageSessionStarted, MessageSessionOver:
		return []PlayerID{s.PlayerA.ID, s.PlayerB.ID}
	case MessageMoveApplied, MessageOpponentLeft:
		if opp := s.Opponent(actor); opp != nil {
			return []PlayerID{opp.ID}
		}
		return nil
	case MessageMoveRejected, MessageResume:
		return []PlayerID{actor}
	default:
		return nil
	}
}

// Validate checks the structural invariants of a session snapshot. It is
// called at the store boundary so that corrupt persisted data fails
// loading instead of producing a half-populated session.
func (s *Session) Validate() error {
	switch {
	case s.ID == "":
		return ErrMalformedSnapshot
	case s.PlayerA.ID == "" || s.PlayerB.ID == "":
		return ErrMalformedSnapshot
	case s.PlayerA.ID == s.PlayerB.ID:
		return ErrMalformedSnapshot
	case !s.PlayerA.Side.Valid() || !s.PlayerB.Side.Valid():
		return ErrMalformedSnapshot
	case s.PlayerA.Side == s.PlayerB.Side:
		return ErrMalformedSnapshot
	case s.Position == "":
		return ErrMalformedSnapshot
	case s.Status != SessionActive && s.Status != SessionOver:
		return ErrMalformedSnapshot
	}
	return nil
}
