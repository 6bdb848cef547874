package matchmaking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bataille/internal/game"
	"bataille/internal/logging"
)

// DefaultRating is assumed when a player joins the queue without one.
const DefaultRating = 1200

// SessionCreator starts a session for a matched pair. Satisfied by
// *game.Manager.
type SessionCreator interface {
	CreateMatched(ctx context.Context, a, b uuid.UUID) (*game.Session, error)
}

// QueueStatus describes the outcome of a queue command.
type QueueStatus string

const (
	StatusQueued        QueueStatus = "queued"
	StatusAlreadyQueued QueueStatus = "already-queued"
	StatusMatched       QueueStatus = "matched"
	StatusRemoved       QueueStatus = "removed"
	StatusNotQueued     QueueStatus = "not-queued"
)

// Result is returned from Enqueue. Session is set only when Status is
// StatusMatched, and Opponent is the paired player's id.
type Result struct {
	Status   QueueStatus
	Session  *game.Session
	Opponent uuid.UUID
}

type waiter struct {
	playerID uuid.UUID
	rating   int
	joinedAt time.Time
}

// Queue is the waiting list of not-yet-paired players. All scanning and
// removal happens inside one critical section, so two concurrent enqueues
// can never claim the same candidate.
type Queue struct {
	mu      sync.Mutex
	waiting []waiter

	creator SessionCreator
	band    int
	log     zerolog.Logger
}

// New creates a queue. band is the rating distance preferred when pairing.
func New(creator SessionCreator, band int) *Queue {
	return &Queue{
		creator: creator,
		band:    band,
		log:     logging.Component("matchmaking"),
	}
}

// Enqueue adds a player to the waiting list, pairing immediately when a
// candidate exists. Candidates within the rating band win over those outside
// it; ties go to the longest-waiting entry. With no candidate in the band the
// longest-waiting entry is taken regardless.
func (q *Queue) Enqueue(ctx context.Context, playerID uuid.UUID, rating int) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, w := range q.waiting {
		if w.playerID == playerID {
			return Result{Status: StatusAlreadyQueued}, nil
		}
	}

	best := q.pick(rating)
	if best < 0 {
		q.waiting = append(q.waiting, waiter{playerID: playerID, rating: rating, joinedAt: time.Now()})
		q.log.Debug().Str("player_id", playerID.String()).Int("waiting", len(q.waiting)).Msg("player queued")
		return Result{Status: StatusQueued}, nil
	}

	opponent := q.waiting[best]
	session, err := q.creator.CreateMatched(ctx, playerID, opponent.playerID)
	if err != nil {
		return Result{}, err
	}
	q.waiting = append(q.waiting[:best], q.waiting[best+1:]...)
	q.log.Info().
		Str("game_id", session.ID.String()).
		Str("player_id", playerID.String()).
		Str("opponent_id", opponent.playerID.String()).
		Msg("players paired")
	return Result{Status: StatusMatched, Session: session, Opponent: opponent.playerID}, nil
}

// pick returns the index of the best candidate for the given rating, or -1
// when the list is empty.
func (q *Queue) pick(rating int) int {
	best := -1
	bestInBand := false
	for i, w := range q.waiting {
		inBand := abs(w.rating-rating) <= q.band
		switch {
		case best < 0:
		case inBand && !bestInBand:
		case inBand == bestInBand && w.joinedAt.Before(q.waiting[best].joinedAt):
		default:
			continue
		}
		best = i
		bestInBand = inBand
	}
	return best
}

// Dequeue removes a waiting player. It has no effect on sessions already
// created.
func (q *Queue) Dequeue(playerID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, w := range q.waiting {
		if w.playerID == playerID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
