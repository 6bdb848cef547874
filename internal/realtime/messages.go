package realtime

import "bataille/internal/game"

// Event names mirror the socket surface the web client speaks.
const (
	// inbound
	EventQueueJoin   = "matchmaking:join"
	EventQueueCancel = "matchmaking:cancel"
	EventRoomJoin    = "game:join"
	EventRoomLeave   = "game:leave"

	// outbound
	EventQueueStatus  = "matchmaking:status"
	EventQueueMatched = "matchmaking:matched"
	EventGameState    = "game:state"
	EventOpponentGone = "game:opponent-disconnected"
	EventError        = "error"
)

// Envelope is an inbound client message. Only room and queue management come
// in over the socket; every state mutation goes through the REST handlers.
// Rating is a pointer so an explicit 0 is distinguishable from an omitted
// field.
type Envelope struct {
	Type   string `json:"type"`
	GameID string `json:"gameId,omitempty"`
	Rating *int   `json:"rating,omitempty"`
}

// Event is an outbound message. Game always carries the full canonical
// snapshot; receivers replace their local view wholesale.
type Event struct {
	Type     string        `json:"type"`
	Status   string        `json:"status,omitempty"`
	GameID   string        `json:"gameId,omitempty"`
	PlayerID string        `json:"playerId,omitempty"`
	Game     *game.Session `json:"game,omitempty"`
	Error    string        `json:"error,omitempty"`
}
