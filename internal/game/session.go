package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// NewSession creates a session in waiting with its creator as the only slot.
func NewSession(creator uuid.UUID) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		Status:    StatusWaiting,
		Players:   []*Slot{newSlot(creator, now)},
		BoardSize: DefaultBoardSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewMatchedSession creates a session for a matchmade pair, already in setup.
func NewMatchedSession(a, b uuid.UUID) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		Status:    StatusSetup,
		Players:   []*Slot{newSlot(a, now), newSlot(b, now)},
		BoardSize: DefaultBoardSize,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// newSlot starts connected: a player is present the moment they create or
// join a session, and only a real-time channel drop clears the flag.
func newSlot(playerID uuid.UUID, now time.Time) *Slot {
	return &Slot{PlayerID: playerID, Connected: true, LastActionAt: now}
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// Join adds a second player and moves the session to setup.
func (s *Session) Join(playerID uuid.UUID) error {
	if s.Status != StatusWaiting {
		return ErrNotJoinable
	}
	if s.IsParticipant(playerID) {
		return ErrAlreadyJoined
	}
	if len(s.Players) >= 2 {
		return ErrGameFull
	}
	s.Players = append(s.Players, newSlot(playerID, time.Now()))
	s.Status = StatusSetup
	s.touch()
	return nil
}

// PlaceShips validates and records a player's layout and marks the slot
// ready. When both slots are ready the session activates with a randomly
// chosen starting turn.
func (s *Session) PlaceShips(playerID uuid.UUID, ships []Ship) error {
	if s.Status != StatusSetup {
		return ErrNotInSetup
	}
	slot := s.Slot(playerID)
	if slot == nil {
		return ErrNotParticipant
	}
	if err := ValidatePlacement(ships, s.BoardSize); err != nil {
		return err
	}
	placed := make([]Ship, len(ships))
	for i, ship := range ships {
		cells := make([]Cell, len(ship.Cells))
		for j, c := range ship.Cells {
			cells[j] = Cell{X: c.X, Y: c.Y}
		}
		placed[i] = Ship{Kind: ship.Kind, Cells: cells}
	}
	now := time.Now()
	slot.Ships = placed
	slot.Ready = true
	slot.LastActionAt = now

	if len(s.Players) == 2 && s.Players[0].Ready && s.Players[1].Ready {
		s.Status = StatusActive
		s.StartedAt = &now
		starter := s.Players[rand.Intn(2)].PlayerID
		s.CurrentTurn = &starter
	}
	s.touch()
	return nil
}

// Fire resolves one shot: hit test, sunk test, turn transfer and game over.
// The turn passes to the opponent only on a miss.
func (s *Session) Fire(playerID uuid.UUID, x, y int) (ShotResult, error) {
	if s.Status != StatusActive {
		return ShotResult{}, ErrNotActive
	}
	shooter := s.Slot(playerID)
	if shooter == nil {
		return ShotResult{}, ErrNotParticipant
	}
	if !s.IsPlayersTurn(playerID) {
		return ShotResult{}, ErrNotYourTurn
	}
	if x < 0 || x >= s.BoardSize || y < 0 || y >= s.BoardSize {
		return ShotResult{}, ErrOutOfBoard
	}
	for _, shot := range shooter.Shots {
		if shot.X == x && shot.Y == y {
			return ShotResult{}, ErrAlreadyFired
		}
	}

	opponent := s.Opponent(playerID)
	var hitShip *Ship
	for i := range opponent.Ships {
		ship := &opponent.Ships[i]
		for j := range ship.Cells {
			if ship.Cells[j].X == x && ship.Cells[j].Y == y {
				ship.Cells[j].Hit = true
				hitShip = ship
				break
			}
		}
		if hitShip != nil {
			break
		}
	}

	now := time.Now()
	shot := Shot{X: x, Y: y, Hit: hitShip != nil, FiredAt: now}
	result := ShotResult{Hit: hitShip != nil}
	if hitShip != nil {
		result.ShipType = hitShip.Kind
		allHit := true
		for _, c := range hitShip.Cells {
			if !c.Hit {
				allHit = false
				break
			}
		}
		if allHit {
			hitShip.Sunk = true
			shot.SunkKind = hitShip.Kind
			result.Sunk = true
		}
	} else {
		s.CurrentTurn = &opponent.PlayerID
	}
	shooter.Shots = append(shooter.Shots, shot)
	shooter.LastActionAt = now

	s.checkGameOver()
	result.GameOver = s.Status == StatusCompleted
	s.touch()
	return result, nil
}

// checkGameOver completes the session when one slot's entire fleet is sunk,
// awarding the win to the other slot.
func (s *Session) checkGameOver() bool {
	for _, p := range s.Players {
		if len(p.Ships) == 0 {
			continue
		}
		allSunk := true
		for _, ship := range p.Ships {
			if !ship.Sunk {
				allSunk = false
				break
			}
		}
		if !allSunk {
			continue
		}
		winner := s.Opponent(p.PlayerID)
		if winner == nil {
			continue
		}
		now := time.Now()
		s.Winner = &winner.PlayerID
		s.CurrentTurn = nil
		s.Status = StatusCompleted
		s.EndedAt = &now
		return true
	}
	return false
}

// Quit abandons the session from setup, active or paused, awarding the win
// to the remaining player when there is one. Disconnect forfeiture funnels
// through here so the transition is defined once.
func (s *Session) Quit(playerID uuid.UUID) error {
	if !s.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	switch s.Status {
	case StatusSetup, StatusActive, StatusPaused:
	case StatusCompleted, StatusAbandoned:
		return ErrTerminal
	default:
		return ErrNotActive
	}
	now := time.Now()
	s.Status = StatusAbandoned
	s.CurrentTurn = nil
	s.EndedAt = &now
	if opponent := s.Opponent(playerID); opponent != nil {
		s.Winner = &opponent.PlayerID
	}
	s.touch()
	return nil
}

// Pause suspends an active session without touching the board.
func (s *Session) Pause(playerID uuid.UUID) error {
	if !s.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	if s.Status != StatusActive {
		return ErrNotActive
	}
	s.Status = StatusPaused
	s.touch()
	return nil
}

// Resume reactivates a paused session.
func (s *Session) Resume(playerID uuid.UUID) error {
	if !s.IsParticipant(playerID) {
		return ErrNotParticipant
	}
	if s.Status != StatusPaused {
		return ErrNotPaused
	}
	s.Status = StatusActive
	s.touch()
	return nil
}
