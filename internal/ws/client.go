// apps/go-server/internal/ws/client.go
//
// Connection lifecycle: token verification, upgrade, initial snapshot,
// and the read pump that decodes client actions into session commands.

package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/auth"
	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/session"
)

// clientMessage is the inbound action frame. Fields beyond Type are
// interpreted per action; the player identity comes from the verified
// token, never from the frame.
type clientMessage struct {
	Type  string  `json:"type"`
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value uint8   `json:"value"`
	Notes []uint8 `json:"notes"`
}

// ServeHTTP upgrades a subscription request. The token (query parameter)
// must name a live room and an admitted player.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
		return
	}
	claims, err := auth.Verify(h.secret, token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	room, ok := h.store.Get(claims.RoomID)
	if !ok || !room.HasPlayer(claims.PlayerID) {
		// Stale token for a destroyed room or departed player.
		http.Error(w, `{"error":"unknown session"}`, http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("player", claims.PlayerID).Msg("upgrade failed")
		return
	}

	sub := newSubscriber(conn)
	h.register(claims.RoomID, claims.PlayerID, sub)
	go sub.writePump()
	h.log.Info().Str("room", claims.RoomID).Str("player", claims.PlayerID).Msg("subscribed")

	// Initial sync: roster to this connection, then the player's snapshot.
	sub.write(session.EventCurrentPlayers, session.PlayersPayload{Players: room.Roster()})
	if state, err := room.StateFor(claims.PlayerID); err == nil {
		sub.write(session.EventGameState, state)
	}

	h.readPump(room, claims.PlayerID, sub)
}

// readPump decodes frames until the connection dies, then departs the
// player if this connection still represented them. A socket superseded
// by a reconnect has no presence meaning, so the registry decides, not
// bare room membership. Rejections are replied to the actor only; unknown
// identities are dropped silently.
func (h *Hub) readPump(room *session.Room, playerID string, sub *subscriber) {
	defer func() {
		active := h.unregister(room.ID(), playerID, sub)
		sub.shutdown()
		if active && room.HasPlayer(playerID) {
			_ = room.Dispatch(session.Depart{PlayerID: playerID})
		}
		h.log.Info().Str("room", room.ID()).Str("player", playerID).Bool("active", active).Msg("unsubscribed")
	}()

	for {
		_, payload, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.log.Debug().Err(err).Str("player", playerID).Msg("discarding malformed frame")
			continue
		}

		cmd, ok := decode(msg, playerID)
		if !ok {
			sub.write(session.EventError, session.ErrorPayload{Message: "unknown action: " + msg.Type})
			continue
		}
		if err := room.Dispatch(cmd); err != nil {
			if errors.Is(err, session.ErrUnknownPlayer) {
				continue
			}
			sub.write(session.EventError, session.ErrorPayload{Message: err.Error()})
		}
		if _, isLeave := cmd.(session.Depart); isLeave {
			return
		}
	}
}

// decode maps an action name onto the closed command set.
func decode(msg clientMessage, playerID string) (session.Command, bool) {
	switch msg.Type {
	case "start":
		return session.Start{PlayerID: playerID}, true
	case "move":
		return session.Move{PlayerID: playerID, Row: msg.Row, Col: msg.Col, Value: msg.Value}, true
	case "select_cell":
		return session.SelectCell{PlayerID: playerID, Row: msg.Row, Col: msg.Col}, true
	case "set_notes":
		return session.SetNotes{PlayerID: playerID, Row: msg.Row, Col: msg.Col, Notes: msg.Notes}, true
	case "undo":
		return session.Undo{PlayerID: playerID}, true
	case "hint":
		return session.Hint{PlayerID: playerID}, true
	case "leave":
		return session.Depart{PlayerID: playerID}, true
	}
	return nil, false
}
