package model

import "encoding/json"

// MessageType identifies the type of a wire message
type MessageType string

const (
	// Client -> server
	MessageRequestMatch MessageType = "request_match"
	MessageSubmitMove   MessageType = "submit_move"

	// Server -> client
	MessageQueued         MessageType = "queued"
	MessageSessionStarted MessageType = "session_started"
	MessageMoveApplied    MessageType = "move_applied"
	MessageMoveRejected   MessageType = "move_rejected"
	MessageSessionOver    MessageType = "session_over"
	MessageResume         MessageType = "resume"
	MessageOpponentLeft   MessageType = "opponent_left"
	MessageError          MessageType = "error"
)

// Result is the outcome of a finished session
type Result string

const (
	ResultWhiteWins Result = "white_wins"
	ResultBlackWins Result = "black_wins"
	ResultDraw      Result = "draw"
)

// WinnerResult maps a winning side to its result.
func WinnerResult(side Side) Result {
	if side == SideWhite {
		return ResultWhiteWins
	}
	return ResultBlackWins
}

// Message is the transport-agnostic envelope exchanged with clients
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a message, marshalling the payload. A payload that
// cannot be marshalled is a programming error, so the error is returned
// rather than swallowed.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: data}, nil
}

// SessionStartedPayload tells a player their new session and assigned side
type SessionStartedPayload struct {
	SessionID SessionID `json:"session_id"`
	Side      Side      `json:"side"`
}

// MoveAppliedPayload relays an accepted move to the opponent
type MoveAppliedPayload struct {
	Move Move `json:"move"`
}

// MoveRejectedPayload reports a rejected move to the submitter only
type MoveRejectedPayload struct {
	Move   Move   `json:"move"`
	Reason string `json:"reason"`
}

// SubmitMovePayload is the client request to apply a move
type SubmitMovePayload struct {
	Move Move `json:"move"`
}

// SessionOverPayload announces the final result to both players
type SessionOverPayload struct {
	Result Result `json:"result"`
}

// ResumePayload restores a reconnecting player's view of the session
type ResumePayload struct {
	Position string `json:"fen"`
	Side     Side   `json:"side"`
}

// ErrorPayload carries a user-visible error message
type ErrorPayload struct {
	Message string `json:"message"`
}
