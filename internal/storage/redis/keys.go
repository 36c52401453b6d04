package redis

import (
	"fmt"

	"github.com/castlegate/castlegate/internal/model"
)

// Key prefix for all session-related data
const keyPrefix = "castlegate"

// sessionKey returns the Redis key for a Session snapshot
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// pointerKey returns the Redis key for a player's session pointer
func pointerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:pointer:%s", keyPrefix, playerID)
}

// queueKey returns the Redis key for the matchmaking queue list
func queueKey() string {
	return fmt.Sprintf("%s:queue", keyPrefix)
}

// accountKey returns the Redis key for a registered account
func accountKey(username string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, username)
}
