// Package rules is the boundary to the move-legality engine. The session
// core treats positions as opaque FEN strings and delegates all chess
// knowledge (legality, turn order, terminal conditions) to an Engine.
package rules

import (
	"errors"

	"github.com/castlegate/castlegate/internal/model"
)

// StartingPosition is the FEN of the initial chess position.
const StartingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Engine errors
var (
	ErrIllegalMove     = errors.New("illegal move for this position")
	ErrInvalidPosition = errors.New("invalid position")
)

// Status classifies a position
type Status string

const (
	StatusOngoing   Status = "ongoing"
	StatusCheckmate Status = "checkmate"
	StatusDraw      Status = "draw"
)

// Outcome describes whether a position is terminal. For a checkmate the
// side to move in the position is the side that has been mated.
type Outcome struct {
	Status     Status
	DrawReason string // set when Status is StatusDraw
}

// Terminal reports whether the position ends the session.
func (o Outcome) Terminal() bool {
	return o.Status != StatusOngoing
}

// Engine validates moves and classifies positions. Implementations must
// be stateless: every call reconstructs whatever it needs from the FEN.
type Engine interface {
	// Apply plays move on the given position and returns the resulting
	// position. Returns ErrIllegalMove if the move is not legal, which
	// includes moves by the side not to move.
	Apply(position string, move model.Move) (string, error)

	// Outcome classifies the position as ongoing, checkmate, or draw.
	Outcome(position string) (Outcome, error)

	// SideToMove returns which side moves next in the position.
	SideToMove(position string) (model.Side, error)
}
