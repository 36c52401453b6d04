package model

// PlayerID uniquely identifies a player across the system.
// It is assigned by the auth layer and is the only durable player key.
type PlayerID string

// ConnectionID identifies a live connection on this process.
// Connection IDs are ephemeral and never persisted.
type ConnectionID string

// Side is a player's role in a session. White moves first.
type Side string

const (
	SideWhite Side = "white"
	SideBlack Side = "black"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideWhite || s == SideBlack
}

// Player is a session participant.
// ConnectionID is resolved from the ConnectionRegistry at load time and
// is deliberately excluded from persisted snapshots.
type Player struct {
	ID           PlayerID     `json:"id"`
	Side         Side         `json:"side"`
	ConnectionID ConnectionID `json:"-"`
}
