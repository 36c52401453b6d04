package model

import "time"

// QueueEntry is one waiting player in the shared matchmaking queue.
// A player ID appears at most once in the queue at any time.
type QueueEntry struct {
	PlayerID     PlayerID     `json:"player_id"`
	ConnectionID ConnectionID `json:"connection_id"`
	EnqueuedAt   time.Time    `json:"enqueued_at"`
}
