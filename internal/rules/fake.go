package rules

import (
	"github.com/castlegate/castlegate/internal/model"
)

// FakeEngine is a scripted Engine for tests. Positions are opaque labels;
// transitions and classifications are configured per test, so session and
// matchmaking logic can be exercised without real chess rules.
type FakeEngine struct {
	// Transitions maps "position|uci" to the resulting position.
	// Moves without an entry are rejected as illegal.
	Transitions map[string]string

	// Outcomes maps a position to its classification. Positions without
	// an entry are ongoing.
	Outcomes map[string]Outcome

	// Turns maps a position to the side to move. Positions without an
	// entry default to white.
	Turns map[string]model.Side
}

// Ensure FakeEngine implements the interface
var _ Engine = (*FakeEngine)(nil)

// NewFakeEngine creates an empty FakeEngine
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		Transitions: make(map[string]string),
		Outcomes:    make(map[string]Outcome),
		Turns:       make(map[string]model.Side),
	}
}

// Allow scripts a legal move from one position to another.
func (f *FakeEngine) Allow(position string, move model.Move, next string) {
	f.Transitions[position+"|"+move.UCI()] = next
}

// SetOutcome scripts the classification of a position.
func (f *FakeEngine) SetOutcome(position string, outcome Outcome) {
	f.Outcomes[position] = outcome
}

// SetTurn scripts the side to move for a position.
func (f *FakeEngine) SetTurn(position string, side model.Side) {
	f.Turns[position] = side
}

func (f *FakeEngine) Apply(position string, move model.Move) (string, error) {
	next, ok := f.Transitions[position+"|"+move.UCI()]
	if !ok {
		return "", ErrIllegalMove
	}
	return next, nil
}

func (f *FakeEngine) Outcome(position string) (Outcome, error) {
	if o, ok := f.Outcomes[position]; ok {
		return o, nil
	}
	return Outcome{Status: StatusOngoing}, nil
}

func (f *FakeEngine) SideToMove(position string) (model.Side, error) {
	if side, ok := f.Turns[position]; ok {
		return side, nil
	}
	return model.SideWhite, nil
}
