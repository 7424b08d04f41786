package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/auth"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/session"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"
)

var testSecret = []byte("test_secret")

type wsFixture struct {
	store    *session.Store
	hub      *Hub
	ts       *httptest.Server
	room     *session.Room
	solution sudoku.Grid
}

// newFixture builds a room whose board needs exactly one move to complete.
func newFixture(t *testing.T) *wsFixture {
	t.Helper()
	store := session.NewStore(zerolog.Nop())
	hub := NewHub(store, testSecret, zerolog.Nop())

	solution := sudoku.NewEngine(sudoku.WithSeed(5)).GenerateSolution()
	puzzle := solution
	puzzle[0][0] = 0

	room := store.Create(puzzle, solution, session.Config{Difficulty: sudoku.Easy}, hub)
	ts := httptest.NewServer(hub)
	t.Cleanup(ts.Close)
	return &wsFixture{store: store, hub: hub, ts: ts, room: room, solution: solution}
}

// dial admits nothing; callers must have admitted the player already.
func (f *wsFixture) dial(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	token, err := auth.Sign(testSecret, auth.Claims{RoomID: f.room.ID(), PlayerID: playerID}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// awaitEvent reads frames until one matches the wanted type.
func awaitEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Type == event {
			return env.Data
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribeRequiresValidToken(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/?token=garbage"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("garbage token should fail the handshake")
	}

	// A well-formed token for a player the room never admitted.
	token, _ := auth.Sign(testSecret, auth.Claims{RoomID: f.room.ID(), PlayerID: "ghost"}, time.Hour)
	url = "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/?token=" + token
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("unadmitted player should fail the handshake")
	}
}

func TestCooperativeGameOverWebSocket(t *testing.T) {
	f := newFixture(t)
	host, err := f.room.Admit("alice")
	if err != nil {
		t.Fatal(err)
	}
	guest, err := f.room.Admit("bob")
	if err != nil {
		t.Fatal(err)
	}

	hostConn := f.dial(t, host.ID)
	guestConn := f.dial(t, guest.ID)

	// Initial sync on subscribe.
	awaitEvent(t, hostConn, session.EventCurrentPlayers)
	awaitEvent(t, hostConn, session.EventGameState)

	send(t, hostConn, map[string]any{"type": "start"})
	awaitEvent(t, hostConn, session.EventGameStarted)
	awaitEvent(t, guestConn, session.EventGameStarted)

	// The guest plays the single missing cell; everyone sees the end.
	send(t, guestConn, map[string]any{
		"type": "move", "row": 0, "col": 0, "value": f.solution[0][0],
	})
	data := awaitEvent(t, hostConn, session.EventGameOver)
	var over session.GameOverPayload
	if err := json.Unmarshal(data, &over); err != nil {
		t.Fatal(err)
	}
	if over.Reason != session.ReasonCompletion {
		t.Fatalf("reason = %q, want %q", over.Reason, session.ReasonCompletion)
	}
	if len(over.Leaderboard) != 2 {
		t.Fatalf("leaderboard size = %d, want 2", len(over.Leaderboard))
	}
	awaitEvent(t, guestConn, session.EventGameOver)
}

func TestRejectionsAreRepliedToActor(t *testing.T) {
	f := newFixture(t)
	host, _ := f.room.Admit("alice")
	conn := f.dial(t, host.ID)
	awaitEvent(t, conn, session.EventGameState)

	send(t, conn, map[string]any{"type": "teleport"})
	data := awaitEvent(t, conn, session.EventError)
	var perr session.ErrorPayload
	_ = json.Unmarshal(data, &perr)
	if !strings.Contains(perr.Message, "unknown action") {
		t.Fatalf("error message = %q", perr.Message)
	}

	// Moving before start is rejected with a readable message.
	send(t, conn, map[string]any{"type": "move", "row": 0, "col": 0, "value": 1})
	data = awaitEvent(t, conn, session.EventError)
	_ = json.Unmarshal(data, &perr)
	if perr.Message == "" {
		t.Fatal("rejection should carry a message")
	}
}

func TestReconnectKeepsPlayerInRoom(t *testing.T) {
	f := newFixture(t)
	host, _ := f.room.Admit("alice")

	first := f.dial(t, host.ID)
	awaitEvent(t, first, session.EventGameState)

	// A second connection for the same player supersedes the first.
	second := f.dial(t, host.ID)
	awaitEvent(t, second, session.EventCurrentPlayers)
	awaitEvent(t, second, session.EventGameState)

	// The server closes the superseded socket; its wind-down must not be
	// mistaken for a departure.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}
	time.Sleep(100 * time.Millisecond)

	if !f.room.HasPlayer(host.ID) {
		t.Fatal("reconnect departed the player")
	}
	if _, ok := f.store.Get(f.room.ID()); !ok {
		t.Fatal("reconnect destroyed the room")
	}

	// The replacement connection is live: an explicit leave still departs.
	send(t, second, map[string]any{"type": "leave"})
	deadline := time.Now().Add(2 * time.Second)
	for f.store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("explicit leave should destroy the empty room")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSlowSubscriberIsDisconnected(t *testing.T) {
	f := newFixture(t)

	// A raw server-side connection with no write pump, so nothing drains
	// its send queue.
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })
	sub := newSubscriber(<-conns)
	f.hub.register(f.room.ID(), "p-slow", sub)

	finished := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+2; i++ {
			f.hub.Broadcast(f.room.ID(), session.EventGameState, session.StatePayload{})
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on an undrained subscriber")
	}

	select {
	case <-sub.done:
	default:
		t.Fatal("overflowing the send queue should disconnect the subscriber")
	}
}

func TestDisconnectDeparts(t *testing.T) {
	f := newFixture(t)
	host, _ := f.room.Admit("alice")
	guest, _ := f.room.Admit("bob")

	hostConn := f.dial(t, host.ID)
	guestConn := f.dial(t, guest.ID)
	awaitEvent(t, hostConn, session.EventGameState)
	awaitEvent(t, guestConn, session.EventGameState)

	_ = guestConn.Close()
	awaitEvent(t, hostConn, session.EventPlayerLeft)

	deadline := time.Now().Add(2 * time.Second)
	for f.room.PlayerCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("disconnect should depart the player")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Leaving via the explicit action destroys the now-empty room.
	send(t, hostConn, map[string]any{"type": "leave"})
	deadline = time.Now().Add(2 * time.Second)
	for f.store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("empty room should be destroyed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
