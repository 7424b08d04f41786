// apps/go-server/internal/ws/hub.go
//
// WebSocket transport adapter.
// The Hub owns every live subscriber, keyed by player, grouped by room.
// It implements the session.Broadcaster seam (Broadcast fans out to a
// room, SendTo replies to one connection) and the http.Handler mounted at
// GET /ws.
//
// Identity: the client presents a signed room token on connect; the hub
// verifies it and derives (roomId, playerId) from the claims. Nothing sent
// later on the socket can change who the connection is. The registry is
// consulted on every socket closure: only the connection still registered
// for a player turns its closure into a departure, so a reconnect that
// supersedes an older socket never departs the player.
//
// Write discipline: every subscriber has a buffered send queue drained by
// its own write pump, so emitting an event never blocks the caller. A
// client that stops draining fills the queue and is disconnected; write
// failures close the socket and let the read pump handle departure.

package ws

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/session"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// envelope frames every outbound event.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscriber is one connected client: the socket, its outbound queue, and
// the write pump draining it.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// write marshals one event onto the send queue.
func (s *subscriber) write(event string, payload any) {
	data, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		return
	}
	s.enqueue(data)
}

// enqueue hands a frame to the write pump without ever blocking. A full
// queue means the client stopped draining; it is disconnected rather than
// allowed to stall the sender.
func (s *subscriber) enqueue(data []byte) {
	select {
	case <-s.done:
	case s.send <- data:
	default:
		s.shutdown()
	}
}

// shutdown closes the connection and releases the write pump exactly once.
func (s *subscriber) shutdown() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writePump drains the send queue onto the socket, each write bounded by
// the write deadline. Runs in its own goroutine per connection.
func (s *subscriber) writePump() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.shutdown()
				return
			}
		}
	}
}

// Hub maps connections to admitted players and fans events out per room.
type Hub struct {
	mu     sync.Mutex
	store  *session.Store
	secret []byte
	rooms  map[string]map[string]*subscriber // roomID → playerID → sub
	log    zerolog.Logger

	upgrader websocket.Upgrader
}

// NewHub constructs a hub bound to the room registry.
func NewHub(store *session.Store, secret []byte, logger zerolog.Logger) *Hub {
	return &Hub{
		store:  store,
		secret: secret,
		rooms:  make(map[string]map[string]*subscriber),
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// checkOrigin admits the configured client origin; with no CLIENT_ORIGIN
// set (development) every origin is accepted.
func checkOrigin(r *http.Request) bool {
	allowed := os.Getenv("CLIENT_ORIGIN")
	if allowed == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || origin == allowed
}

// ----------------------------- Broadcaster ---------------------------------

// Broadcast queues an event for every subscriber of a room. Enqueueing
// never blocks, so callers may hold their own locks while emitting.
func (h *Hub) Broadcast(roomID, event string, payload any) {
	data, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Str("event", event).Msg("marshal event")
		return
	}
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.rooms[roomID]))
	for _, sub := range h.rooms[roomID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(data)
	}
}

// SendTo queues a reply for a single player's connection. Unknown players
// are skipped silently; the caller has no session context to reply into.
func (h *Hub) SendTo(playerID, event string, payload any) {
	h.mu.Lock()
	var sub *subscriber
	for _, room := range h.rooms {
		if s, ok := room[playerID]; ok {
			sub = s
			break
		}
	}
	h.mu.Unlock()
	if sub == nil {
		return
	}
	sub.write(event, payload)
}

// ------------------------------ registry ------------------------------------

// register attaches a connection, replacing (and closing) any previous one
// for the same player. The superseded connection is no longer registered,
// so its read pump winds down without departing the player.
func (h *Hub) register(roomID, playerID string, sub *subscriber) {
	h.mu.Lock()
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[string]*subscriber)
		h.rooms[roomID] = room
	}
	prev := room[playerID]
	room[playerID] = sub
	h.mu.Unlock()

	if prev != nil {
		prev.shutdown()
	}
}

// unregister detaches a connection and reports whether it was still the
// registered one for the player. A false return means the connection was
// already superseded and its closure carries no presence meaning.
func (h *Hub) unregister(roomID, playerID string, sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok || room[playerID] != sub {
		return false
	}
	delete(room, playerID)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}
