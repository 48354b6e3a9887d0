package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-live/internal/config"
	"github.com/rocketscienceinc/tictactoe-live/internal/entity"
	"github.com/rocketscienceinc/tictactoe-live/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := session.NewRegistry(logger)

	conf := config.Session{
		TTL:               time.Minute,
		SweepInterval:     time.Minute,
		HeartbeatInterval: 5 * time.Second,
		SendBufferSize:    32,
	}

	ts := httptest.NewServer(New(logger, registry, conf).Handler())
	t.Cleanup(ts.Close)

	return ts, registry
}

// testClient wraps one connection and records every snapshot it has seen
// so assertions never lose a broadcast to an earlier helper call.
type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	states []*session.Snapshot
	cursor int
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{t: t, conn: conn}
}

func (that *testClient) send(action string, payload any) {
	that.t.Helper()

	payloadBytes, err := json.Marshal(payload)
	require.NoError(that.t, err)

	require.NoError(that.t, that.conn.WriteJSON(Message{Action: action, Payload: payloadBytes}))
}

// read returns the next message, recording snapshots along the way.
func (that *testClient) read() (string, ResponsePayload) {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(readTimeout)))

	var message Message
	require.NoError(that.t, that.conn.ReadJSON(&message))

	var payload ResponsePayload
	require.NoError(that.t, json.Unmarshal(message.Payload, &payload))

	if message.Action == actionState && payload.Game != nil {
		that.states = append(that.states, payload.Game)
	}

	return message.Action, payload
}

// join performs the handshake and returns the assigned mark.
func (that *testClient) join(sessionID, name string) string {
	that.t.Helper()

	that.send(actionJoin, JoinPayload{ID: sessionID, Name: name})

	for {
		action, payload := that.read()
		if action != actionJoin {
			continue
		}

		require.Empty(that.t, payload.Error)
		require.NotNil(that.t, payload.Player)

		return payload.Player.Mark
	}
}

// waitForState scans forward through the snapshot stream until the
// predicate holds, reading more messages as needed. The cursor parks on
// the match so a later wait with a different predicate can still
// inspect the same snapshot.
func (that *testClient) waitForState(pred func(*session.Snapshot) bool) *session.Snapshot {
	that.t.Helper()

	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		for that.cursor < len(that.states) {
			if snapshot := that.states[that.cursor]; pred(snapshot) {
				return snapshot
			}

			that.cursor++
		}

		that.read()
	}

	that.t.Fatal("no matching snapshot arrived in time")

	return nil
}

func (that *testClient) makeTurn(cell int) {
	that.t.Helper()

	that.send(actionTurn, TurnPayload{Cell: &cell})

	// wait until the move landed so the opponent's next turn is legal
	that.waitForState(func(snap *session.Snapshot) bool {
		return snap.Board[cell] != entity.EmptyCell
	})
}

func TestServer_FullMatch(t *testing.T) {
	ts, _ := newTestServer(t)

	// Given: Alice joins session "abc" and seats as X
	alice := dial(t, ts)
	require.Equal(t, entity.PlayerX, alice.join("abc", "Alice"))

	alice.waitForState(func(snap *session.Snapshot) bool {
		return snap.Status == entity.StatusWaiting
	})

	// When: Bob joins and seats as O
	bob := dial(t, ts)
	require.Equal(t, entity.PlayerO, bob.join("abc", "Bob"))

	// Then: both see the match start with X to move
	for _, client := range []*testClient{alice, bob} {
		client.waitForState(func(snap *session.Snapshot) bool {
			return snap.Status == entity.StatusOngoing && snap.Turn == entity.PlayerX
		})
	}

	// When: the players fill the top row for X
	alice.makeTurn(0)
	bob.makeTurn(3)
	alice.makeTurn(1)
	bob.makeTurn(4)
	alice.makeTurn(2)

	// Then: both sides see X win with the score at 1:0
	for _, client := range []*testClient{alice, bob} {
		snap := client.waitForState(func(snap *session.Snapshot) bool {
			return snap.Status == entity.StatusFinished
		})

		require.Equal(t, entity.PlayerX, snap.Winner)
		require.Equal(t, entity.PlayerX, snap.Board[0])
		require.Equal(t, entity.PlayerX, snap.Board[1])
		require.Equal(t, entity.PlayerX, snap.Board[2])
		require.Equal(t, map[string]int{entity.PlayerX: 1, entity.PlayerO: 0}, snap.Scores)
	}

	// When: Bob asks for a rematch
	bob.send(actionReset, struct{}{})

	// Then: the board clears, X opens, and the scores are preserved
	for _, client := range []*testClient{alice, bob} {
		snap := client.waitForState(func(snap *session.Snapshot) bool {
			return snap.Status == entity.StatusOngoing
		})

		require.Equal(t, entity.PlayerX, snap.Turn)
		require.Equal(t, map[string]int{entity.PlayerX: 1, entity.PlayerO: 0}, snap.Scores)

		for _, cell := range snap.Board {
			require.Equal(t, entity.EmptyCell, cell)
		}
	}
}

func TestServer_Reconnect(t *testing.T) {
	ts, _ := newTestServer(t)

	// Given: an ongoing match with one move played
	alice := dial(t, ts)
	require.Equal(t, entity.PlayerX, alice.join("rejoin", "Alice"))

	bob := dial(t, ts)
	require.Equal(t, entity.PlayerO, bob.join("rejoin", "Bob"))

	alice.makeTurn(4)

	// When: Bob's connection drops
	require.NoError(t, bob.conn.Close())

	// Then: Alice sees Bob flagged as disconnected, not an error
	alice.waitForState(func(snap *session.Snapshot) bool {
		for _, player := range snap.Players {
			if player.Name == "Bob" {
				return !player.Connected
			}
		}
		return false
	})

	// When: Bob dials back in under the same name
	bob = dial(t, ts)

	// Then: he gets his old mark and resumes exactly where the match stood
	require.Equal(t, entity.PlayerO, bob.join("rejoin", "Bob"))

	snap := bob.waitForState(func(snap *session.Snapshot) bool {
		return snap.Board[4] == entity.PlayerX
	})
	require.Equal(t, entity.PlayerO, snap.Turn)
	require.Equal(t, entity.StatusOngoing, snap.Status)
	require.Equal(t, []session.PlayerState{
		{Name: "Alice", Mark: entity.PlayerX, Connected: true},
		{Name: "Bob", Mark: entity.PlayerO, Connected: true},
	}, snap.Players)
}

func TestServer_SessionFull(t *testing.T) {
	ts, _ := newTestServer(t)

	// Given: a session with both seats connected
	alice := dial(t, ts)
	alice.join("full", "Alice")

	bob := dial(t, ts)
	bob.join("full", "Bob")

	// When: a third distinct player tries to join
	carol := dial(t, ts)
	carol.send(actionJoin, JoinPayload{ID: "full", Name: "Carol"})

	// Then: the join is rejected with a structured error
	action, payload := carol.read()
	require.Equal(t, actionJoin, action)
	assert.Contains(t, payload.Error, "full")
}

func TestServer_Rejections(t *testing.T) {
	t.Run("Out of turn", func(t *testing.T) {
		ts, _ := newTestServer(t)

		alice := dial(t, ts)
		alice.join("rej", "Alice")
		bob := dial(t, ts)
		bob.join("rej", "Bob")

		// When: O moves first
		cell := 0
		bob.send(actionTurn, TurnPayload{Cell: &cell})

		// Then: Bob gets a rejection as a response, not a broadcast
		for {
			action, payload := bob.read()
			if action != actionTurn {
				continue
			}

			assert.Contains(t, payload.Error, "not your turn")
			break
		}
	})

	t.Run("Occupied cell", func(t *testing.T) {
		ts, _ := newTestServer(t)

		alice := dial(t, ts)
		alice.join("occ", "Alice")
		bob := dial(t, ts)
		bob.join("occ", "Bob")

		alice.makeTurn(0)

		// When: O targets the cell X already holds
		cell := 0
		bob.send(actionTurn, TurnPayload{Cell: &cell})

		// Then: the move is rejected and the board is unchanged
		for {
			action, payload := bob.read()
			if action != actionTurn {
				continue
			}

			assert.Contains(t, payload.Error, "occupied")
			break
		}

		require.Equal(t, entity.PlayerX, bob.states[len(bob.states)-1].Board[0])
	})

	t.Run("Turn before join", func(t *testing.T) {
		ts, _ := newTestServer(t)

		client := dial(t, ts)

		// When: a client moves without having joined
		cell := 0
		client.send(actionTurn, TurnPayload{Cell: &cell})

		// Then: it gets a structured error back
		action, payload := client.read()
		require.Equal(t, actionTurn, action)
		assert.NotEmpty(t, payload.Error)
	})

	t.Run("Malformed frame does not kill the connection", func(t *testing.T) {
		ts, _ := newTestServer(t)

		client := dial(t, ts)

		// When: the client sends junk first
		require.NoError(t, client.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

		// Then: a regular join afterwards still succeeds
		require.Equal(t, entity.PlayerX, client.join("junk", "Alice"))
	})
}

func TestServer_DisconnectKeepsSeatReserved(t *testing.T) {
	ts, registry := newTestServer(t)

	// Given: a full session
	alice := dial(t, ts)
	alice.join("seats", "Alice")
	bob := dial(t, ts)
	bob.join("seats", "Bob")

	// When: Bob disconnects
	require.NoError(t, bob.conn.Close())

	sess, ok := registry.Get("seats")
	require.True(t, ok)

	require.Eventually(t, func() bool {
		for _, player := range sess.Snapshot().Players {
			if player.Name == "Bob" {
				return !player.Connected
			}
		}
		return false
	}, readTimeout, 10*time.Millisecond)

	// When: Carol tries the empty-looking seat
	carol := dial(t, ts)
	carol.send(actionJoin, JoinPayload{ID: "seats", Name: "Carol"})

	// Then: the seat stays reserved for Bob, so Carol is rejected
	action, payload := carol.read()
	require.Equal(t, actionJoin, action)
	assert.NotEmpty(t, payload.Error)
}
