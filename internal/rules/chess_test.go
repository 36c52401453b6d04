package rules

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/castlegate/castlegate/internal/model"
)

type ChessEngineSuite struct {
	suite.Suite
	engine *ChessEngine
}

func TestChessEngineSuite(t *testing.T) {
	suite.Run(t, new(ChessEngineSuite))
}

func (s *ChessEngineSuite) SetupTest() {
	s.engine = NewChessEngine()
}

func (s *ChessEngineSuite) TestWhiteMovesFirst() {
	side, err := s.engine.SideToMove(StartingPosition)
	s.Require().NoError(err)
	s.Equal(model.SideWhite, side)
}

func (s *ChessEngineSuite) TestApplyLegalMove() {
	next, err := s.engine.Apply(StartingPosition, model.Move{From: "e2", To: "e4"})
	s.Require().NoError(err)
	s.NotEqual(StartingPosition, next)

	side, err := s.engine.SideToMove(next)
	s.Require().NoError(err)
	s.Equal(model.SideBlack, side)
}

func (s *ChessEngineSuite) TestApplyIllegalMove() {
	_, err := s.engine.Apply(StartingPosition, model.Move{From: "e2", To: "e5"})
	s.ErrorIs(err, ErrIllegalMove)
}

func (s *ChessEngineSuite) TestApplyOutOfTurnMove() {
	// Black cannot move from the starting position
	_, err := s.engine.Apply(StartingPosition, model.Move{From: "e7", To: "e5"})
	s.ErrorIs(err, ErrIllegalMove)
}

func (s *ChessEngineSuite) TestIllegalMoveDoesNotMutatePosition() {
	_, err := s.engine.Apply(StartingPosition, model.Move{From: "e2", To: "e5"})
	s.ErrorIs(err, ErrIllegalMove)
	_, err = s.engine.Apply(StartingPosition, model.Move{From: "e2", To: "e5"})
	s.ErrorIs(err, ErrIllegalMove)

	// The caller's position string is untouched and still playable
	_, err = s.engine.Apply(StartingPosition, model.Move{From: "e2", To: "e4"})
	s.NoError(err)
}

func (s *ChessEngineSuite) TestInvalidPosition() {
	_, err := s.engine.Apply("not a fen", model.Move{From: "e2", To: "e4"})
	s.ErrorIs(err, ErrInvalidPosition)
}

func (s *ChessEngineSuite) TestFoolsMateIsCheckmate() {
	moves := []model.Move{
		{From: "f2", To: "f3"},
		{From: "e7", To: "e5"},
		{From: "g2", To: "g4"},
		{From: "d8", To: "h4"},
	}

	position := StartingPosition
	for _, mv := range moves {
		next, err := s.engine.Apply(position, mv)
		s.Require().NoError(err)
		position = next
	}

	outcome, err := s.engine.Outcome(position)
	s.Require().NoError(err)
	s.Equal(StatusCheckmate, outcome.Status)
	s.True(outcome.Terminal())

	// White is mated, so white is the side to move in the final position
	side, err := s.engine.SideToMove(position)
	s.Require().NoError(err)
	s.Equal(model.SideWhite, side)
}

func (s *ChessEngineSuite) TestStalemateIsDraw() {
	// Black to move with no legal moves and no check
	const stalemate = "5k2/5P2/5K2/8/8/8/8/8 b - - 0 1"

	outcome, err := s.engine.Outcome(stalemate)
	s.Require().NoError(err)
	s.Equal(StatusDraw, outcome.Status)
	s.Equal("stalemate", outcome.DrawReason)
	s.True(outcome.Terminal())
}

func (s *ChessEngineSuite) TestOngoingPosition() {
	outcome, err := s.engine.Outcome(StartingPosition)
	s.Require().NoError(err)
	s.Equal(StatusOngoing, outcome.Status)
	s.False(outcome.Terminal())
}

func (s *ChessEngineSuite) TestPromotionMove() {
	// White pawn on a7 promotes
	const prePromotion = "8/P6k/8/8/8/8/8/K7 w - - 0 1"

	next, err := s.engine.Apply(prePromotion, model.Move{From: "a7", To: "a8", Promotion: "q"})
	s.Require().NoError(err)

	side, err := s.engine.SideToMove(next)
	s.Require().NoError(err)
	s.Equal(model.SideBlack, side)
}
