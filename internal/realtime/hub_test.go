package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bataille/internal/game"
	"bataille/internal/matchmaking"
	"bataille/internal/realtime"
)

type testRig struct {
	manager *game.Manager
	queue   *matchmaking.Queue
	hub     *realtime.Hub
	server  *httptest.Server
}

func newRig(t *testing.T) *testRig {
	t.Helper()
	manager := game.NewManager(nil, 3*time.Minute)
	queue := matchmaking.New(manager, 200)
	hub := realtime.NewHub(manager, queue)
	manager.SetPublisher(hub)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)
	return &testRig{manager: manager, queue: queue, hub: hub, server: server}
}

func (r *testRig) dial(t *testing.T, playerID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(r.server.URL, "http") + "?playerId=" + playerID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, env realtime.Envelope) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(env))
}

func rating(n int) *int { return &n }

// waitFor reads events until one of the wanted type arrives.
func waitFor(t *testing.T, conn *websocket.Conn, eventType string) realtime.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev realtime.Event
		err := conn.ReadJSON(&ev)
		require.NoErrorf(t, err, "waiting for %s", eventType)
		if ev.Type == eventType {
			return ev
		}
	}
}

func TestHandshakeRequiresIdentity(t *testing.T) {
	rig := newRig(t)
	url := "ws" + strings.TrimPrefix(rig.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestQueuePairingNotifiesBothPlayers(t *testing.T) {
	rig := newRig(t)
	a, b := uuid.New(), uuid.New()
	connA := rig.dial(t, a)
	connB := rig.dial(t, b)

	send(t, connA, realtime.Envelope{Type: realtime.EventQueueJoin, Rating: rating(1200)})
	status := waitFor(t, connA, realtime.EventQueueStatus)
	assert.Equal(t, string(matchmaking.StatusQueued), status.Status)

	send(t, connB, realtime.Envelope{Type: realtime.EventQueueJoin, Rating: rating(1250)})

	matchedA := waitFor(t, connA, realtime.EventQueueMatched)
	matchedB := waitFor(t, connB, realtime.EventQueueMatched)
	assert.Equal(t, matchedA.GameID, matchedB.GameID, "both players must reference the same session")
	assert.Equal(t, 0, rig.queue.Len())

	gameID, err := uuid.Parse(matchedA.GameID)
	require.NoError(t, err)
	s, err := rig.manager.Get(context.Background(), gameID, a)
	require.NoError(t, err)
	assert.Equal(t, game.StatusSetup, s.Status)
}

func TestDuplicateQueueJoin(t *testing.T) {
	rig := newRig(t)
	a := uuid.New()
	conn := rig.dial(t, a)

	send(t, conn, realtime.Envelope{Type: realtime.EventQueueJoin, Rating: rating(1200)})
	assert.Equal(t, string(matchmaking.StatusQueued), waitFor(t, conn, realtime.EventQueueStatus).Status)

	send(t, conn, realtime.Envelope{Type: realtime.EventQueueJoin, Rating: rating(1200)})
	assert.Equal(t, string(matchmaking.StatusAlreadyQueued), waitFor(t, conn, realtime.EventQueueStatus).Status)

	send(t, conn, realtime.Envelope{Type: realtime.EventQueueCancel})
	assert.Equal(t, string(matchmaking.StatusRemoved), waitFor(t, conn, realtime.EventQueueStatus).Status)
	assert.Equal(t, 0, rig.queue.Len())
}

func TestQueueJoinHonoursZeroRating(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	high, low := uuid.New(), uuid.New()

	// high would be the band match if an explicit 0 collapsed to the default.
	_, err := rig.queue.Enqueue(ctx, high, matchmaking.DefaultRating)
	require.NoError(t, err)
	_, err = rig.queue.Enqueue(ctx, low, 150)
	require.NoError(t, err)

	joiner := uuid.New()
	conn := rig.dial(t, joiner)
	send(t, conn, realtime.Envelope{Type: realtime.EventQueueJoin, Rating: rating(0)})
	matched := waitFor(t, conn, realtime.EventQueueMatched)

	gameID, err := uuid.Parse(matched.GameID)
	require.NoError(t, err)
	s, err := rig.manager.Get(ctx, gameID, joiner)
	require.NoError(t, err)
	assert.True(t, s.IsParticipant(low), "a 0-rated joiner must pair within its own band")
}

func TestQueueJoinDefaultsOmittedRating(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	far, near := uuid.New(), uuid.New()

	// far waited longer, so it would win any fallback pick; only the default
	// rating puts near in band ahead of it.
	_, err := rig.queue.Enqueue(ctx, far, 50)
	require.NoError(t, err)
	_, err = rig.queue.Enqueue(ctx, near, matchmaking.DefaultRating-50)
	require.NoError(t, err)

	joiner := uuid.New()
	conn := rig.dial(t, joiner)
	send(t, conn, realtime.Envelope{Type: realtime.EventQueueJoin})
	matched := waitFor(t, conn, realtime.EventQueueMatched)

	gameID, err := uuid.Parse(matched.GameID)
	require.NoError(t, err)
	s, err := rig.manager.Get(ctx, gameID, joiner)
	require.NoError(t, err)
	assert.True(t, s.IsParticipant(near))
}

func TestRoomJoinDeliversSnapshotAndBroadcasts(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	s, err := rig.manager.CreateMatched(ctx, a, b)
	require.NoError(t, err)

	connA := rig.dial(t, a)
	connB := rig.dial(t, b)
	send(t, connA, realtime.Envelope{Type: realtime.EventRoomJoin, GameID: s.ID.String()})
	stateA := waitFor(t, connA, realtime.EventGameState)
	require.NotNil(t, stateA.Game)
	assert.Equal(t, game.StatusSetup, stateA.Game.Status)

	send(t, connB, realtime.Envelope{Type: realtime.EventRoomJoin, GameID: s.ID.String()})
	waitFor(t, connB, realtime.EventGameState)

	// A REST-path mutation must reach every room subscriber. Joining puts
	// more than one snapshot on the wire, so read until the placement shows.
	_, err = rig.manager.PlaceShips(ctx, s.ID, a, testFleet())
	require.NoError(t, err)
	for {
		update := waitFor(t, connB, realtime.EventGameState)
		require.NotNil(t, update.Game)
		if update.Game.Slot(a).Ready {
			break
		}
	}
}

func TestRoomJoinRejectsOutsiders(t *testing.T) {
	rig := newRig(t)
	a, b := uuid.New(), uuid.New()
	s, err := rig.manager.CreateMatched(context.Background(), a, b)
	require.NoError(t, err)

	conn := rig.dial(t, uuid.New())
	send(t, conn, realtime.Envelope{Type: realtime.EventRoomJoin, GameID: s.ID.String()})
	ev := waitFor(t, conn, realtime.EventError)
	assert.Contains(t, ev.Error, "not in this game")
}

func TestDisconnectForfeitsAndNotifiesRoom(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	s, err := rig.manager.CreateMatched(ctx, a, b)
	require.NoError(t, err)
	_, err = rig.manager.PlaceShips(ctx, s.ID, a, testFleet())
	require.NoError(t, err)
	_, err = rig.manager.PlaceShips(ctx, s.ID, b, testFleet())
	require.NoError(t, err)

	connA := rig.dial(t, a)
	connB := rig.dial(t, b)
	send(t, connA, realtime.Envelope{Type: realtime.EventRoomJoin, GameID: s.ID.String()})
	waitFor(t, connA, realtime.EventGameState)
	send(t, connB, realtime.Envelope{Type: realtime.EventRoomJoin, GameID: s.ID.String()})
	waitFor(t, connB, realtime.EventGameState)

	require.NoError(t, connB.Close())

	// The forfeiture snapshot lands before the departure notice.
	var final realtime.Event
	for {
		final = waitFor(t, connA, realtime.EventGameState)
		if final.Game.Status == game.StatusAbandoned {
			break
		}
	}
	require.NotNil(t, final.Game.Winner)
	assert.Equal(t, a, *final.Game.Winner)

	gone := waitFor(t, connA, realtime.EventOpponentGone)
	assert.Equal(t, b.String(), gone.PlayerID)
}

func TestDisconnectDropsQueueEntry(t *testing.T) {
	rig := newRig(t)
	a := uuid.New()
	conn := rig.dial(t, a)
	send(t, conn, realtime.Envelope{Type: realtime.EventQueueJoin, Rating: rating(1200)})
	waitFor(t, conn, realtime.EventQueueStatus)
	require.Equal(t, 1, rig.queue.Len())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return rig.queue.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestUnknownEventType(t *testing.T) {
	rig := newRig(t)
	conn := rig.dial(t, uuid.New())
	send(t, conn, realtime.Envelope{Type: "nope"})
	ev := waitFor(t, conn, realtime.EventError)
	assert.Equal(t, "unknown event type", ev.Error)
}

func testFleet() []game.Ship {
	rows := []struct {
		kind game.ShipKind
		y    int
	}{
		{game.KindCarrier, 0},
		{game.KindBattleship, 1},
		{game.KindCruiser, 2},
		{game.KindSubmarine, 3},
		{game.KindDestroyer, 4},
	}
	ships := make([]game.Ship, 0, len(rows))
	for _, row := range rows {
		cells := make([]game.Cell, 0, game.FleetSizes[row.kind])
		for x := 0; x < game.FleetSizes[row.kind]; x++ {
			cells = append(cells, game.Cell{X: x, Y: row.y})
		}
		ships = append(ships, game.Ship{Kind: row.kind, Cells: cells})
	}
	return ships
}
