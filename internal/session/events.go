// apps/go-server/internal/session/events.go
//
// Outbound event names and payloads for the room-scoped stream and the
// per-connection reply channel. The Broadcaster interface is the seam
// between the coordinator and the transport: the websocket hub implements
// it, tests substitute a recorder.
//
// Ordering contract: rooms emit events while holding their own mutex, so
// every subscriber observes mutations in the same order they were applied.

package session

import "github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"

// Event names on the room-scoped stream.
const (
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventCurrentPlayers   = "current_players"
	EventGameStarted      = "game_started"
	EventPlayerEliminated = "player_eliminated"
	EventPlayerFinished   = "player_finished"
	EventGameOver         = "game_over"
)

// Event names on the per-connection reply channel.
const (
	EventGameState = "game_state_update"
	EventHintGiven = "hint_given"
	EventError     = "error"
)

// Game-over reasons.
const (
	ReasonCompletion = "completion"
	ReasonTimeout    = "time's up"
)

// Broadcaster delivers outbound events. Broadcast fans out to every
// subscriber of a room; SendTo replies to a single player's connection.
// Implementations must not call back into the session package.
type Broadcaster interface {
	Broadcast(roomID, event string, payload any)
	SendTo(playerID, event string, payload any)
}

// PlayerInfo is the public view of a player, used in rosters and
// leaderboards.
type PlayerInfo struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
	Mistakes   int    `json:"mistakes"`
	Eliminated bool   `json:"eliminated"`
	Finished   bool   `json:"finished"`
}

// PlayersPayload carries the roster, sorted by descending score.
type PlayersPayload struct {
	Players []PlayerInfo `json:"players"`
}

// PresencePayload announces a single player joining or leaving.
type PresencePayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// StartedPayload announces the Lobby → Playing transition.
type StartedPayload struct {
	StartedAt   int64 `json:"started_at"`
	TimeLimitMs int64 `json:"time_limit_ms,omitempty"`
}

// EliminatedPayload announces a player reaching the mistake cap.
type EliminatedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
}

// FinishedPayload announces a player completing their board.
type FinishedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	ElapsedMs  int64  `json:"elapsed_ms"`
}

// GameOverPayload carries the terminal state and final standings.
type GameOverPayload struct {
	Reason      string       `json:"reason"`
	Message     string       `json:"message"`
	Leaderboard []PlayerInfo `json:"leaderboard"`
}

// HintPayload reports a hint-filled cell to the requesting player.
type HintPayload struct {
	Row       int   `json:"row"`
	Col       int   `json:"col"`
	Value     uint8 `json:"value"`
	HintsUsed int   `json:"hints_used"`
}

// ErrorPayload carries a human-readable rejection message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// LockInfo describes one active cell lock in a state snapshot.
type LockInfo struct {
	Row       int    `json:"row"`
	Col       int    `json:"col"`
	PlayerID  string `json:"player_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// LastMove echoes the outcome of the move a snapshot follows.
type LastMove struct {
	Row     int   `json:"row"`
	Col     int   `json:"col"`
	Value   uint8 `json:"value"`
	Correct bool  `json:"is_correct"`
}

// StatePayload is the full board/notes/locks snapshot sent on
// game_state_update.
type StatePayload struct {
	Puzzle    sudoku.Grid `json:"puzzle"`
	Board     sudoku.Grid `json:"current_board"`
	Notes     NotesBoard  `json:"notes"`
	Locks     []LockInfo  `json:"locks"`
	Mistakes  int         `json:"mistakes"`
	HintsUsed int         `json:"hints"`
	Score     int         `json:"score"`
	LastMove  *LastMove   `json:"last_move,omitempty"`
}
