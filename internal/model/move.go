package model

import "strings"

// Move is a candidate move as submitted by a client: origin and target
// squares in algebraic coordinates, plus an optional promotion piece
// letter ("q", "r", "b", "n"). Legality is decided by the rules engine.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI renders the move in UCI coordinate notation, e.g. "e2e4" or "e7e8q".
func (m Move) UCI() string {
	return m.From + m.To + strings.ToLower(m.Promotion)
}
