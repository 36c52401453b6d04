package model

import "time"

// Account holds a registered player's credentials. Stored separately from
// session state; guests never have one.
type Account struct {
	PlayerID     PlayerID  `json:"player_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"` // bcrypt hash
	CreatedAt    time.Time `json:"created_at"`
}
