package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoSessionPointer  = errors.New("player has no session pointer")
	ErrNotParticipant    = errors.New("player is not a participant in this session")
	ErrSessionOver       = errors.New("session is over")
	ErrVersionConflict   = errors.New("session version conflict")
	ErrMalformedSnapshot = errors.New("malformed session snapshot")

	// Queue errors
	ErrQueueEmpty          = errors.New("matchmaking queue is empty")
	ErrMalformedQueueEntry = errors.New("malformed queue entry")

	// Connection errors
	ErrConnectionNotFound = errors.New("connection not found")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
)
