package game

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusSetup     Status = "setup"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether the status admits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// ShipKind names one of the five fleet ships.
type ShipKind string

const (
	KindCarrier    ShipKind = "carrier"
	KindBattleship ShipKind = "battleship"
	KindCruiser    ShipKind = "cruiser"
	KindSubmarine  ShipKind = "submarine"
	KindDestroyer  ShipKind = "destroyer"
)

// FleetSizes maps every required ship kind to its cell count. A valid layout
// contains exactly one ship of each kind.
var FleetSizes = map[ShipKind]int{
	KindCarrier:    5,
	KindBattleship: 4,
	KindCruiser:    3,
	KindSubmarine:  3,
	KindDestroyer:  2,
}

// DefaultBoardSize is the side length of the square board.
const DefaultBoardSize = 10

// Cell is one board coordinate occupied by a ship.
type Cell struct {
	X   int  `json:"x"`
	Y   int  `json:"y"`
	Hit bool `json:"hit"`
}

// Ship is one placed ship and its damage state.
type Ship struct {
	Kind  ShipKind `json:"kind"`
	Cells []Cell   `json:"cells"`
	Sunk  bool     `json:"sunk"`
}

// Shot is one shot fired by a slot, in firing order.
type Shot struct {
	X        int       `json:"x"`
	Y        int       `json:"y"`
	Hit      bool      `json:"hit"`
	SunkKind ShipKind  `json:"sunkKind,omitempty"`
	FiredAt  time.Time `json:"firedAt"`
}

// Slot is one player's participation in a session.
type Slot struct {
	PlayerID     uuid.UUID `json:"playerId"`
	Ships        []Ship    `json:"ships"`
	Shots        []Shot    `json:"shots"`
	Ready        bool      `json:"ready"`
	Connected    bool      `json:"connected"`
	LastActionAt time.Time `json:"lastActionAt"`
}

// Session is the root aggregate: the unit of consistency and broadcast.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	Status      Status     `json:"status"`
	Players     []*Slot    `json:"players"`
	CurrentTurn *uuid.UUID `json:"currentTurn,omitempty"`
	Winner      *uuid.UUID `json:"winner,omitempty"`
	BoardSize   int        `json:"boardSize"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ShotResult is the per-move outcome returned alongside the session.
type ShotResult struct {
	Hit      bool     `json:"hit"`
	ShipType ShipKind `json:"shipType,omitempty"`
	Sunk     bool     `json:"sunk"`
	GameOver bool     `json:"gameOver"`
}

// Slot returns the slot occupied by the given player, or nil.
func (s *Session) Slot(playerID uuid.UUID) *Slot {
	for _, p := range s.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Opponent returns the slot not occupied by the given player, or nil.
func (s *Session) Opponent(playerID uuid.UUID) *Slot {
	for _, p := range s.Players {
		if p.PlayerID != playerID {
			return p
		}
	}
	return nil
}

// IsParticipant reports whether the player occupies a slot.
func (s *Session) IsParticipant(playerID uuid.UUID) bool {
	return s.Slot(playerID) != nil
}

// IsPlayersTurn reports whether the turn token is held by the given player.
func (s *Session) IsPlayersTurn(playerID uuid.UUID) bool {
	return s.CurrentTurn != nil && *s.CurrentTurn == playerID
}

// Clone returns a deep copy of the session. Broadcasts and store writes work
// on clones so subscribers never observe a half-applied mutation.
func (s *Session) Clone() *Session {
	out := *s
	if s.CurrentTurn != nil {
		id := *s.CurrentTurn
		out.CurrentTurn = &id
	}
	if s.Winner != nil {
		id := *s.Winner
		out.Winner = &id
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	out.Players = make([]*Slot, len(s.Players))
	for i, p := range s.Players {
		slot := *p
		slot.Ships = make([]Ship, len(p.Ships))
		for j, ship := range p.Ships {
			cp := ship
			cp.Cells = append([]Cell(nil), ship.Cells...)
			slot.Ships[j] = cp
		}
		slot.Shots = append([]Shot(nil), p.Shots...)
		out.Players[i] = &slot
	}
	return &out
}
