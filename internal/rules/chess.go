package rules

import (
	"fmt"

	"github.com/corentings/chess"

	"github.com/castlegate/castlegate/internal/model"
)

// ChessEngine implements Engine on top of the chess library.
type ChessEngine struct{}

// NewChessEngine creates a ChessEngine
func NewChessEngine() *ChessEngine {
	return &ChessEngine{}
}

// Ensure ChessEngine implements the interface
var _ Engine = (*ChessEngine)(nil)

func (e *ChessEngine) game(position string) (*chess.Game, error) {
	fen, err := chess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return chess.NewGame(fen, chess.UseNotation(chess.UCINotation{})), nil
}

// Apply plays the move and returns the resulting FEN
func (e *ChessEngine) Apply(position string, move model.Move) (string, error) {
	g, err := e.game(position)
	if err != nil {
		return "", err
	}

	if err := g.MoveStr(move.UCI()); err != nil {
		return "", fmt.Errorf("%w: %s", ErrIllegalMove, move.UCI())
	}

	return g.Position().String(), nil
}

// Outcome classifies the position
func (e *ChessEngine) Outcome(position string) (Outcome, error) {
	g, err := e.game(position)
	if err != nil {
		return Outcome{}, err
	}

	// Position.Status is computed from the position itself, so it works
	// on freshly-loaded FENs, unlike game-level outcome tracking.
	switch g.Position().Status() {
	case chess.Checkmate:
		return Outcome{Status: StatusCheckmate}, nil
	case chess.Stalemate:
		return Outcome{Status: StatusDraw, DrawReason: "stalemate"}, nil
	}

	if g.Outcome() == chess.Draw {
		return Outcome{Status: StatusDraw, DrawReason: drawReason(g.Method())}, nil
	}

	return Outcome{Status: StatusOngoing}, nil
}

func drawReason(method chess.Method) string {
	switch method {
	case chess.InsufficientMaterial:
		return "insufficient material"
	case chess.SeventyFiveMoveRule:
		return "seventy-five move rule"
	case chess.FivefoldRepetition:
		return "fivefold repetition"
	default:
		return "draw"
	}
}

// SideToMove returns which side moves next
func (e *ChessEngine) SideToMove(position string) (model.Side, error) {
	g, err := e.game(position)
	if err != nil {
		return "", err
	}

	if g.Position().Turn() == chess.White {
		return model.SideWhite, nil
	}
	return model.SideBlack, nil
}
