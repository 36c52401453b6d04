package matchmaker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/castlegate/castlegate/internal/connection"
	"github.com/castlegate/castlegate/internal/dependencies/clock"
	"github.com/castlegate/castlegate/internal/dependencies/random"
	"github.com/castlegate/castlegate/internal/model"
	"github.com/castlegate/castlegate/internal/rules"
	"github.com/castlegate/castlegate/internal/storage"
)

// maxPopAttempts bounds how many dead or malformed queue entries one
// pairing attempt will chew through before giving up and enqueueing.
const maxPopAttempts = 8

// Service pairs waiting players using the shared FIFO queue. The queue
// pop is atomic at the store, so two processes can never pair the same
// waiting player twice.
type Service struct {
	store    storage.Store
	registry *connection.Registry
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger
}

// New creates a new matchmaker Service
func New(
	store storage.Store,
	registry *connection.Registry,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		registry: registry,
		clock:    clock,
		random:   random,
		logger:   logger.With(slog.String("component", "matchmaker")),
	}
}

// Result is the outcome of a pairing attempt: either a new session or
// the caller was enqueued to wait.
type Result struct {
	Session  *model.Session
	Enqueued bool
}

// TryPair attempts to pair the caller with the longest-waiting player.
// Entries whose owner has no live connection on this process are
// discarded and the pop retried; after bounded retries the caller is
// enqueued. Store failures leave the caller unpaired and are returned
// for the caller to retry.
func (s *Service) TryPair(ctx context.Context, playerID model.PlayerID, connID model.ConnectionID) (*Result, error) {
	for attempt := 0; attempt < maxPopAttempts; attempt++ {
		entry, err := s.store.PopWaiting(ctx)
		if err != nil {
			if errors.Is(err, model.ErrQueueEmpty) {
				return s.enqueue(ctx, playerID, connID)
			}
			if errors.Is(err, model.ErrMalformedQueueEntry) {
				s.logger.Warn("dropping malformed queue entry")
				continue
			}
			return nil, err
		}

		// A player's own stale entry can surface if they re-request
		// while queued; it must not pair them with themselves.
		if entry.PlayerID == playerID {
			continue
		}

		if _, live := s.registry.ConnectionFor(entry.PlayerID); !live {
			s.logger.Info("discarding queue entry with no live connection",
				slog.String("player_id", string(entry.PlayerID)),
			)
			continue
		}

		session := s.buildSession(*entry, playerID)
		if err := s.store.CreatePairing(ctx, session); err != nil {
			// The pop already happened; put the waiting player back at
			// the front so the failed write does not cost them their
			// place in line.
			if reqErr := s.store.RequeueFront(ctx, *entry); reqErr != nil {
				s.logger.Error("failed to requeue waiting player after pairing failure",
					slog.String("player_id", string(entry.PlayerID)),
					slog.String("error", reqErr.Error()),
				)
			}
			return nil, err
		}

		s.logger.Info("players paired",
			slog.String("session_id", string(session.ID)),
			slog.String("player_a", string(session.PlayerA.ID)),
			slog.String("player_b", string(session.PlayerB.ID)),
			slog.Duration("opponent_waited", s.clock.Since(entry.EnqueuedAt)),
		)

		return &Result{Session: session}, nil
	}

	return s.enqueue(ctx, playerID, connID)
}

func (s *Service) enqueue(ctx context.Context, playerID model.PlayerID, connID model.ConnectionID) (*Result, error) {
	entry := model.QueueEntry{
		PlayerID:     playerID,
		ConnectionID: connID,
		EnqueuedAt:   s.clock.Now(),
	}
	if err := s.store.Enqueue(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("player enqueued", slog.String("player_id", string(playerID)))
	return &Result{Enqueued: true}, nil
}

// buildSession pairs the popped (longest-waiting) player with the caller,
// assigning sides at random: exactly one white, one black.
func (s *Service) buildSession(waiting model.QueueEntry, caller model.PlayerID) *model.Session {
	waitingSide := model.SideWhite
	if s.random.CoinFlip() {
		waitingSide = model.SideBlack
	}

	now := s.clock.Now()
	return &model.Session{
		ID:        model.SessionID(uuid.New().String()),
		PlayerA:   model.Player{ID: waiting.PlayerID, Side: waitingSide},
		PlayerB:   model.Player{ID: caller, Side: waitingSide.Opposite()},
		Position:  rules.StartingPosition,
		Status:    model.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
