package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"bataille/internal/game"
	"bataille/internal/logging"
	"bataille/internal/matchmaking"
	"bataille/pkg/utils"
)

// Hub is the connection registry and snapshot broadcaster. It maps players
// to their open channels and sessions to their room members. It never
// mutates game state itself; mutations stay with the manager and the hub
// only fans their results out.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	players map[uuid.UUID]map[*Client]struct{}
	rooms   map[uuid.UUID]map[*Client]struct{}
	roomsOf map[*Client]map[uuid.UUID]struct{}

	manager  *game.Manager
	queue    *matchmaking.Queue
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub creates the hub and wires it to the mutation authority and the
// matchmaking queue.
func NewHub(manager *game.Manager, queue *matchmaking.Queue) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		players: make(map[uuid.UUID]map[*Client]struct{}),
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
		roomsOf: make(map[*Client]map[uuid.UUID]struct{}),
		manager: manager,
		queue:   queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: logging.Component("realtime"),
	}
}

// ServeWS upgrades the connection and starts the client pumps. Identity
// comes from the X-Player-ID header, with a playerId query fallback for
// browser clients that cannot set headers on the handshake.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get("X-Player-ID")
	if raw == "" {
		raw = r.URL.Query().Get("playerId")
	}
	playerID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "missing or invalid player id", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	c := &Client{
		id:       utils.RandomHex(8),
		playerID: playerID,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.players[c.playerID] == nil {
		h.players[c.playerID] = make(map[*Client]struct{})
	}
	h.players[c.playerID][c] = struct{}{}
	h.roomsOf[c] = make(map[uuid.UUID]struct{})
	h.mu.Unlock()
	h.log.Debug().Str("conn_id", c.id).Str("player_id", c.playerID.String()).Msg("client connected")
}

// unregister drops the client from every map. When it was the player's last
// channel, the player's queue entry is removed and their sessions in setup
// or active forfeit; rooms holding the remaining player are told the
// opponent left.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	for gameID := range h.roomsOf[c] {
		h.removeFromRoomLocked(c, gameID)
	}
	delete(h.roomsOf, c)
	if conns := h.players[c.playerID]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.players, c.playerID)
		}
	}
	last := h.players[c.playerID] == nil
	h.mu.Unlock()

	h.log.Debug().Str("conn_id", c.id).Str("player_id", c.playerID.String()).Bool("last", last).Msg("client disconnected")
	if !last {
		return
	}
	h.queue.Dequeue(c.playerID)
	affected := h.manager.HandleDisconnect(context.Background(), c.playerID)
	for _, s := range affected {
		h.notifyRoom(s.ID, Event{
			Type:     EventOpponentGone,
			GameID:   s.ID.String(),
			PlayerID: c.playerID.String(),
		})
	}
}

func (h *Hub) handleEvent(c *Client, env Envelope) {
	ctx := context.Background()
	switch env.Type {
	case EventQueueJoin:
		rating := matchmaking.DefaultRating
		if env.Rating != nil {
			rating = *env.Rating
		}
		res, err := h.queue.Enqueue(ctx, c.playerID, rating)
		if err != nil {
			h.send(c, Event{Type: EventError, Error: err.Error()})
			return
		}
		h.send(c, Event{Type: EventQueueStatus, Status: string(res.Status)})
		if res.Status == matchmaking.StatusMatched {
			matched := Event{Type: EventQueueMatched, GameID: res.Session.ID.String()}
			h.notifyPlayer(c.playerID, matched)
			h.notifyPlayer(res.Opponent, matched)
		}

	case EventQueueCancel:
		status := matchmaking.StatusNotQueued
		if h.queue.Dequeue(c.playerID) {
			status = matchmaking.StatusRemoved
		}
		h.send(c, Event{Type: EventQueueStatus, Status: string(status)})

	case EventRoomJoin:
		gameID, err := uuid.Parse(env.GameID)
		if err != nil {
			h.send(c, Event{Type: EventError, Error: "bad game id"})
			return
		}
		h.joinRoom(c, gameID)
		snap, err := h.manager.Connect(ctx, gameID, c.playerID)
		if err != nil {
			h.leaveRoom(c, gameID)
			h.send(c, Event{Type: EventError, GameID: env.GameID, Error: err.Error()})
			return
		}
		// Rejoining clients resynchronise from the snapshot; there is no
		// incremental replay.
		h.send(c, Event{Type: EventGameState, GameID: env.GameID, Game: snap})

	case EventRoomLeave:
		gameID, err := uuid.Parse(env.GameID)
		if err != nil {
			h.send(c, Event{Type: EventError, Error: "bad game id"})
			return
		}
		h.leaveRoom(c, gameID)

	default:
		h.send(c, Event{Type: EventError, Error: "unknown event type"})
	}
}

// PublishSession delivers the snapshot to every member of the session's
// room. The manager calls this under the session lock, which keeps delivery
// in commit order for any one session.
func (h *Hub) PublishSession(s *game.Session) {
	data, err := json.Marshal(Event{Type: EventGameState, GameID: s.ID.String(), Game: s})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal snapshot")
		return
	}
	h.mu.RLock()
	for c := range h.rooms[s.ID] {
		h.trySend(c, data)
	}
	h.mu.RUnlock()
}

func (h *Hub) joinRoom(c *Client, gameID uuid.UUID) {
	h.mu.Lock()
	if h.rooms[gameID] == nil {
		h.rooms[gameID] = make(map[*Client]struct{})
	}
	h.rooms[gameID][c] = struct{}{}
	if h.roomsOf[c] != nil {
		h.roomsOf[c][gameID] = struct{}{}
	}
	h.mu.Unlock()
}

func (h *Hub) leaveRoom(c *Client, gameID uuid.UUID) {
	h.mu.Lock()
	h.removeFromRoomLocked(c, gameID)
	if h.roomsOf[c] != nil {
		delete(h.roomsOf[c], gameID)
	}
	h.mu.Unlock()
}

func (h *Hub) removeFromRoomLocked(c *Client, gameID uuid.UUID) {
	if members := h.rooms[gameID]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, gameID)
		}
	}
}

func (h *Hub) notifyRoom(gameID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	for c := range h.rooms[gameID] {
		h.trySend(c, data)
	}
	h.mu.RUnlock()
}

func (h *Hub) notifyPlayer(playerID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	for c := range h.players[playerID] {
		h.trySend(c, data)
	}
	h.mu.RUnlock()
}

func (h *Hub) send(c *Client, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	h.trySend(c, data)
	h.mu.RUnlock()
}

// trySend must be called with the hub lock held so the channel cannot be
// closed mid-send.
func (h *Hub) trySend(c *Client, data []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("conn_id", c.id).Msg("slow consumer, dropping message")
	}
}
