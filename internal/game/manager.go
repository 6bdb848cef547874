package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bataille/internal/logging"
)

// Store persists one document per session. Implementations must be safe for
// concurrent use; a nil store keeps everything in memory.
type Store interface {
	SaveSession(ctx context.Context, s *Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListByPlayer(ctx context.Context, playerID uuid.UUID, statuses []Status) ([]*Session, error)
}

// Publisher fans the canonical snapshot out to every room subscriber. It is
// invoked only after the triggering mutation has been persisted.
type Publisher interface {
	PublishSession(s *Session)
}

// OpenStatuses are the non-terminal states returned by session listings.
var OpenStatuses = []Status{StatusWaiting, StatusSetup, StatusActive, StatusPaused}

// Manager owns the live sessions and is the single mutation authority. Every
// command runs validate+apply+persist+publish under that session's lock, so
// two concurrent shots can never both observe the same turn state.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry

	store      Store
	pub        Publisher
	log        zerolog.Logger
	inactivity time.Duration
}

type entry struct {
	mu sync.Mutex
	s  *Session
}

// NewManager creates a manager. store may be nil for memory-only operation;
// inactivity bounds how long an active slot may sit idle before forfeiting.
func NewManager(store Store, inactivity time.Duration) *Manager {
	return &Manager{
		sessions:   make(map[uuid.UUID]*entry),
		store:      store,
		log:        logging.Component("game"),
		inactivity: inactivity,
	}
}

// SetPublisher wires the broadcaster. Called once during startup, before the
// server accepts traffic.
func (m *Manager) SetPublisher(p Publisher) {
	m.pub = p
}

func (m *Manager) publish(s *Session) {
	if m.pub != nil {
		m.pub.PublishSession(s)
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveSession(ctx, s)
}

// entryFor returns the live entry for a session, loading it from the store
// on a miss.
func (m *Manager) entryFor(ctx context.Context, id uuid.UUID) (*entry, error) {
	m.mu.Lock()
	if e, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	if m.store == nil {
		return nil, ErrNotFound
	}
	s, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		return e, nil
	}
	e := &entry{s: s}
	m.sessions[id] = e
	return e, nil
}

func (m *Manager) register(ctx context.Context, s *Session) (*Session, error) {
	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = &entry{s: s}
	m.mu.Unlock()
	snap := s.Clone()
	m.publish(snap)
	return snap, nil
}

// mutate applies fn to a working copy of the session and only swaps it in
// after the store write succeeds, so a failed command never leaves a
// half-applied aggregate behind.
func (m *Manager) mutate(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	e, err := m.entryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.s.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	if err := m.persist(ctx, work); err != nil {
		return nil, err
	}
	e.s = work
	snap := work.Clone()
	m.publish(snap)
	return snap, nil
}

// Create starts a new session in waiting with the caller as its only slot.
func (m *Manager) Create(ctx context.Context, playerID uuid.UUID) (*Session, error) {
	s := NewSession(playerID)
	snap, err := m.register(ctx, s)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("game_id", s.ID.String()).Str("player_id", playerID.String()).Msg("game created")
	return snap, nil
}

// CreateMatched starts a session in setup for a matchmade pair.
func (m *Manager) CreateMatched(ctx context.Context, a, b uuid.UUID) (*Session, error) {
	s := NewMatchedSession(a, b)
	snap, err := m.register(ctx, s)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("game_id", s.ID.String()).Msg("matched game created")
	return snap, nil
}

// Join adds the caller as the second slot.
func (m *Manager) Join(ctx context.Context, id, playerID uuid.UUID) (*Session, error) {
	return m.mutate(ctx, id, func(s *Session) error {
		return s.Join(playerID)
	})
}

// PlaceShips records the caller's layout.
func (m *Manager) PlaceShips(ctx context.Context, id, playerID uuid.UUID, ships []Ship) (*Session, error) {
	return m.mutate(ctx, id, func(s *Session) error {
		return s.PlaceShips(playerID, ships)
	})
}

// Fire resolves one shot for the caller.
func (m *Manager) Fire(ctx context.Context, id, playerID uuid.UUID, x, y int) (*Session, ShotResult, error) {
	var result ShotResult
	snap, err := m.mutate(ctx, id, func(s *Session) error {
		var err error
		result, err = s.Fire(playerID, x, y)
		return err
	})
	if err != nil {
		return nil, ShotResult{}, err
	}
	return snap, result, nil
}

// Quit abandons the session on the caller's behalf.
func (m *Manager) Quit(ctx context.Context, id, playerID uuid.UUID) (*Session, error) {
	return m.mutate(ctx, id, func(s *Session) error {
		return s.Quit(playerID)
	})
}

// Pause suspends an active session.
func (m *Manager) Pause(ctx context.Context, id, playerID uuid.UUID) (*Session, error) {
	return m.mutate(ctx, id, func(s *Session) error {
		return s.Pause(playerID)
	})
}

// Resume reactivates a paused session.
func (m *Manager) Resume(ctx context.Context, id, playerID uuid.UUID) (*Session, error) {
	return m.mutate(ctx, id, func(s *Session) error {
		return s.Resume(playerID)
	})
}

// Get returns a snapshot. Only participants may read a session that is still
// in play; completed games are public history.
func (m *Manager) Get(ctx context.Context, id, playerID uuid.UUID) (*Session, error) {
	e, err := m.entryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.s.IsParticipant(playerID) && e.s.Status != StatusCompleted {
		return nil, ErrNotParticipant
	}
	return e.s.Clone(), nil
}

// ListMine returns the caller's open sessions, newest first.
func (m *Manager) ListMine(ctx context.Context, playerID uuid.UUID) ([]*Session, error) {
	if m.store != nil {
		return m.store.ListByPlayer(ctx, playerID, OpenStatuses)
	}
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var out []*Session
	for _, e := range entries {
		e.mu.Lock()
		if e.s.IsParticipant(playerID) && !e.s.Status.Terminal() {
			out = append(out, e.s.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Connect marks the caller's slot as connected and rebroadcasts the snapshot
// so a rejoining client starts from the canonical state. Terminal sessions
// are returned untouched.
func (m *Manager) Connect(ctx context.Context, id, playerID uuid.UUID) (*Session, error) {
	e, err := m.entryFor(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	slot := e.s.Slot(playerID)
	if slot == nil {
		if e.s.Status == StatusCompleted {
			return e.s.Clone(), nil
		}
		return nil, ErrNotParticipant
	}
	if e.s.Status.Terminal() {
		return e.s.Clone(), nil
	}

	work := e.s.Clone()
	work.Slot(playerID).Connected = true
	work.touch()
	if err := m.persist(ctx, work); err != nil {
		return nil, err
	}
	e.s = work
	snap := work.Clone()
	m.publish(snap)
	return snap, nil
}

// HandleDisconnect records that the player's last real-time channel dropped.
// Sessions still in setup or active forfeit on the player's behalf; anything
// else only loses the connected flag. Returns snapshots of every affected
// session so the transport can notify the rooms.
func (m *Manager) HandleDisconnect(ctx context.Context, playerID uuid.UUID) []*Session {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	var affected []*Session
	for _, e := range entries {
		e.mu.Lock()
		if !e.s.IsParticipant(playerID) || e.s.Status.Terminal() {
			e.mu.Unlock()
			continue
		}
		work := e.s.Clone()
		work.Slot(playerID).Connected = false
		switch work.Status {
		case StatusSetup, StatusActive:
			if err := work.Quit(playerID); err != nil {
				e.mu.Unlock()
				continue
			}
			m.log.Info().
				Str("game_id", work.ID.String()).
				Str("player_id", playerID.String()).
				Msg("player disconnected, game forfeited")
		default:
			work.touch()
		}
		if err := m.persist(ctx, work); err != nil {
			m.log.Error().Err(err).Str("game_id", work.ID.String()).Msg("persist disconnect")
			e.mu.Unlock()
			continue
		}
		e.s = work
		snap := work.Clone()
		m.publish(snap)
		affected = append(affected, snap)
		e.mu.Unlock()
	}
	return affected
}

// Sweep forfeits active sessions whose awaited slot has been idle longer
// than the inactivity timeout. The idle player loses, as if they had quit.
func (m *Manager) Sweep(ctx context.Context) {
	if m.inactivity <= 0 {
		return
	}
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	cutoff := time.Now().Add(-m.inactivity)
	for _, e := range entries {
		e.mu.Lock()
		if e.s.Status != StatusActive {
			e.mu.Unlock()
			continue
		}
		var idle *Slot
		for _, p := range e.s.Players {
			if p.LastActionAt.Before(cutoff) {
				idle = p
				break
			}
		}
		if idle == nil {
			e.mu.Unlock()
			continue
		}
		work := e.s.Clone()
		if err := work.Quit(idle.PlayerID); err != nil {
			e.mu.Unlock()
			continue
		}
		if err := m.persist(ctx, work); err != nil {
			m.log.Error().Err(err).Str("game_id", work.ID.String()).Msg("persist sweep")
			e.mu.Unlock()
			continue
		}
		e.s = work
		snap := work.Clone()
		m.publish(snap)
		e.mu.Unlock()
		m.log.Info().
			Str("game_id", snap.ID.String()).
			Str("player_id", idle.PlayerID.String()).
			Msg("session forfeited for inactivity")
	}
}

// Run drives the inactivity sweep until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	if every <= 0 || m.inactivity <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
