// apps/go-server/internal/session/room.go
//
// Per-room session coordinator.
// Responsibilities:
//   - Lobby → Playing → Over state machine (host start, timer expiry,
//     board completion, all-finished-or-eliminated).
//   - Player admission and departure, with room teardown on last leave.
//   - Move validation: phase, elimination, cell locks; scoring, mistakes,
//     elimination at the mistake cap.
//   - Timed cell-editing locks (TTL evaluated lazily on conflict).
//   - Notes, single-step undo, capped hints.
//
// Concurrency:
//   - Every operation, including the deferred time-limit callback, runs
//     under the room's own mutex, so concurrent commands from different
//     players are linearized.
//   - Outbound events are emitted while the mutex is held, so all
//     subscribers observe the same sequence of states.
//   - Coordinator operations perform no blocking I/O.

package session

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"
)

// Mode selects how boards are owned.
type Mode string

const (
	// ModeCooperative shares one board across the room.
	ModeCooperative Mode = "cooperative"
	// ModeCompetitive gives every player an independent board.
	ModeCompetitive Mode = "competitive"
)

// Phase is the room lifecycle state.
type Phase int

const (
	PhaseLobby Phase = iota
	PhasePlaying
	PhaseOver
)

// String names the phase for rosters and logs.
func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhasePlaying:
		return "playing"
	default:
		return "over"
	}
}

// Gameplay tuning: three mistakes eliminate, three hints per player,
// locks expire after five seconds.
const (
	maxMistakes = 3
	maxHints    = 3

	defaultLockTTL = 5 * time.Second

	scoreCorrect   = 10
	scoreMistake   = 5
	scoreHintBonus = 2

	minCompetitivePlayers = 2
)

// defaultTimeLimit maps difficulty to a game clock. Zero disables the timer.
func defaultTimeLimit(d sudoku.Difficulty) time.Duration {
	switch d {
	case sudoku.Easy:
		return 30 * time.Minute
	case sudoku.Medium:
		return 25 * time.Minute
	case sudoku.Hard:
		return 20 * time.Minute
	default: // expert
		return 12 * time.Minute
	}
}

// Config carries per-room options chosen at creation.
type Config struct {
	Mode       Mode
	Difficulty sudoku.Difficulty
	// TimeLimit overrides the difficulty default when positive. Negative
	// disables the timer entirely.
	TimeLimit time.Duration
	// LockTTL overrides the cell lock TTL when positive (tests).
	LockTTL time.Duration
	// Seed fixes the room's random source when non-zero, making hint
	// cell selection deterministic (tests).
	Seed int64
}

// cellLock binds a cell to an owning player until the TTL elapses or the
// owner selects elsewhere.
type cellLock struct {
	owner      string
	acquiredAt time.Time
}

// Room owns all state for one live game. All exported methods are safe for
// concurrent use.
type Room struct {
	mu sync.Mutex

	id         string
	hostID     string
	mode       Mode
	difficulty sudoku.Difficulty
	timeLimit  time.Duration
	lockTTL    time.Duration

	phase     Phase
	startedAt time.Time

	puzzle   sudoku.Grid
	solution sudoku.Grid
	shared   *GameState // cooperative mode only

	players map[string]*Player
	locks   map[[2]int]cellLock
	timer   *time.Timer
	rng     *rand.Rand

	bus     Broadcaster
	onEmpty func(roomID string)
	log     zerolog.Logger
}

// newRoom wires a room; callers go through Store.Create.
func newRoom(id string, puzzle, solution sudoku.Grid, cfg Config, bus Broadcaster, onEmpty func(string), logger zerolog.Logger) *Room {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeCooperative
	}
	limit := cfg.TimeLimit
	if limit == 0 {
		limit = defaultTimeLimit(cfg.Difficulty)
	} else if limit < 0 {
		limit = 0
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &Room{
		id:         id,
		mode:       mode,
		difficulty: cfg.Difficulty,
		timeLimit:  limit,
		lockTTL:    ttl,
		phase:      PhaseLobby,
		puzzle:     puzzle,
		solution:   solution,
		players:    make(map[string]*Player),
		locks:      make(map[[2]int]cellLock),
		rng:        rand.New(rand.NewSource(seed)),
		bus:        bus,
		onEmpty:    onEmpty,
		log:        logger.With().Str("room", id).Logger(),
	}
	if mode == ModeCooperative {
		r.shared = newGameState(puzzle)
	}
	return r
}

// ---------------------------- accessors ------------------------------------

func (r *Room) ID() string                    { return r.id }
func (r *Room) Mode() Mode                    { return r.mode }
func (r *Room) Difficulty() sudoku.Difficulty { return r.difficulty }
func (r *Room) Puzzle() sudoku.Grid           { return r.puzzle }
func (r *Room) Solution() sudoku.Grid         { return r.solution }

// Phase reports the current lifecycle state.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// HostID reports the current host.
func (r *Room) HostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostID
}

// PlayerCount reports the number of admitted players.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// HasPlayer reports whether id was admitted and is still present.
func (r *Room) HasPlayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[id]
	return ok
}

// Roster returns the player list sorted by descending score.
func (r *Room) Roster() []PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// StateFor builds the full snapshot for one player's connection, used on
// subscribe and resync.
func (r *Room) StateFor(playerID string) (StatePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[playerID]
	if !ok {
		return StatePayload{}, ErrUnknownPlayer
	}
	return r.snapshotLocked(p, nil), nil
}

// ----------------------------- admission -----------------------------------

// Admit creates a player and attaches board state according to the room
// mode. Only allowed while the room is in the lobby. The first admitted
// player becomes host.
func (r *Room) Admit(name string) (*Player, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phase {
	case PhasePlaying:
		return nil, fmt.Errorf("%w: game already started", ErrInvalidTransition)
	case PhaseOver:
		return nil, fmt.Errorf("%w: game is over", ErrInvalidTransition)
	}

	p := &Player{ID: uuid.NewString(), Name: name}
	if r.mode == ModeCompetitive {
		p.game = newGameState(r.puzzle)
	}
	r.players[p.ID] = p
	if r.hostID == "" {
		r.hostID = p.ID
	}

	r.log.Info().Str("player", p.ID).Str("name", name).Msg("player admitted")
	r.bus.Broadcast(r.id, EventPlayerJoined, PresencePayload{PlayerID: p.ID, PlayerName: p.Name})
	r.bus.Broadcast(r.id, EventCurrentPlayers, PlayersPayload{Players: r.rosterLocked()})
	return p, nil
}

// ----------------------------- dispatch ------------------------------------

// Dispatch applies one gameplay command under the room's mutex. The
// returned error, if any, is one of the sentinels in errors.go and is
// meant for the acting player only.
func (r *Room) Dispatch(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch c := cmd.(type) {
	case Start:
		return r.startLocked(c.PlayerID)
	case Move:
		return r.moveLocked(c)
	case SelectCell:
		return r.selectCellLocked(c)
	case SetNotes:
		return r.setNotesLocked(c)
	case Undo:
		return r.undoLocked(c.PlayerID)
	case Hint:
		return r.hintLocked(c.PlayerID)
	case Depart:
		return r.departLocked(c.PlayerID)
	}
	// The Command set is closed; reaching here is a programming error.
	panic(fmt.Sprintf("session: unhandled command %T", cmd))
}

// startLocked handles Lobby → Playing.
func (r *Room) startLocked(playerID string) error {
	if _, ok := r.players[playerID]; !ok {
		return ErrUnknownPlayer
	}
	if r.phase != PhaseLobby {
		return fmt.Errorf("%w: game already started", ErrInvalidTransition)
	}
	if playerID != r.hostID {
		return fmt.Errorf("%w: only the host can start the game", ErrInvalidTransition)
	}
	if r.mode == ModeCompetitive && len(r.players) < minCompetitivePlayers {
		return fmt.Errorf("%w: competitive mode needs at least %d players",
			ErrInvalidTransition, minCompetitivePlayers)
	}

	r.phase = PhasePlaying
	r.startedAt = time.Now()
	if r.timeLimit > 0 {
		r.timer = time.AfterFunc(r.timeLimit, r.expire)
	}

	r.log.Info().Str("mode", string(r.mode)).Dur("limit", r.timeLimit).Msg("game started")
	r.bus.Broadcast(r.id, EventGameStarted, StartedPayload{
		StartedAt:   r.startedAt.UnixMilli(),
		TimeLimitMs: r.timeLimit.Milliseconds(),
	})
	return nil
}

// moveLocked validates and applies one cell write.
func (r *Room) moveLocked(c Move) error {
	p, ok := r.players[c.PlayerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if r.phase != PhasePlaying {
		return fmt.Errorf("%w: game is not in progress", ErrInvalidTransition)
	}
	if p.done() {
		return fmt.Errorf("%w: you are no longer playing", ErrInvalidTransition)
	}
	if !inBounds(c.Row, c.Col) || c.Value > 9 {
		return fmt.Errorf("%w: cell or value out of range", ErrInvalidInput)
	}

	now := time.Now()
	key := [2]int{c.Row, c.Col}
	if lk, held := r.locks[key]; held {
		if r.lockExpiredLocked(lk, now) {
			delete(r.locks, key)
		} else if lk.owner != c.PlayerID {
			return ErrLocked
		}
	}

	gs := r.gameFor(p)
	gs.apply(c.Row, c.Col, c.Value)

	correct := true
	if c.Value != 0 {
		if r.solution[c.Row][c.Col] != c.Value {
			correct = false
			p.Mistakes++
			p.Score -= scoreMistake
			if p.Mistakes >= maxMistakes && !p.Eliminated {
				p.Eliminated = true
				r.log.Info().Str("player", p.ID).Msg("player eliminated")
				r.bus.Broadcast(r.id, EventPlayerEliminated, EliminatedPayload{
					PlayerID:   p.ID,
					PlayerName: p.Name,
					Message:    p.Name + " has been eliminated!",
				})
			}
		} else {
			p.Score += scoreCorrect
		}
	}

	r.emitStateLocked(p, &LastMove{Row: c.Row, Col: c.Col, Value: c.Value, Correct: correct})
	r.checkCompletionLocked(p, now)
	return nil
}

// selectCellLocked moves the player's single editing lock onto a cell.
func (r *Room) selectCellLocked(c SelectCell) error {
	p, ok := r.players[c.PlayerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if !inBounds(c.Row, c.Col) {
		return fmt.Errorf("%w: cell out of range", ErrInvalidInput)
	}

	now := time.Now()
	key := [2]int{c.Row, c.Col}
	if lk, held := r.locks[key]; held {
		if r.lockExpiredLocked(lk, now) || lk.owner == c.PlayerID {
			delete(r.locks, key)
		} else {
			return ErrLocked
		}
	}

	// A player holds at most one lock at a time.
	for k, lk := range r.locks {
		if lk.owner == c.PlayerID {
			delete(r.locks, k)
		}
	}
	r.locks[key] = cellLock{owner: c.PlayerID, acquiredAt: now}

	r.bus.SendTo(p.ID, EventGameState, r.snapshotLocked(p, nil))
	return nil
}

// setNotesLocked replaces a cell's candidate set. Notes never touch score
// or mistakes and are not validated against the solution.
func (r *Room) setNotesLocked(c SetNotes) error {
	p, ok := r.players[c.PlayerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if r.phase != PhasePlaying {
		return fmt.Errorf("%w: game is not in progress", ErrInvalidTransition)
	}
	if !inBounds(c.Row, c.Col) {
		return fmt.Errorf("%w: cell out of range", ErrInvalidInput)
	}

	var seen [10]bool
	notes := make([]uint8, 0, len(c.Notes))
	for _, d := range c.Notes {
		if d < 1 || d > 9 {
			return fmt.Errorf("%w: note digits must be 1-9", ErrInvalidInput)
		}
		if !seen[d] {
			seen[d] = true
			notes = append(notes, d)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i] < notes[j] })

	gs := r.gameFor(p)
	gs.Notes[c.Row][c.Col] = notes

	r.emitStateLocked(p, nil)
	return nil
}

// undoLocked restores the previous board snapshot. Scores and mistake
// counters are deliberately not rolled back.
func (r *Room) undoLocked(playerID string) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if r.phase != PhasePlaying {
		return fmt.Errorf("%w: game is not in progress", ErrInvalidTransition)
	}

	gs := r.gameFor(p)
	if !gs.undo() {
		return fmt.Errorf("%w: nothing to undo", ErrExhausted)
	}

	r.emitStateLocked(p, nil)
	return nil
}

// hintLocked fills a uniformly random empty cell with its solution value.
func (r *Room) hintLocked(playerID string) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	if r.phase != PhasePlaying {
		return fmt.Errorf("%w: game is not in progress", ErrInvalidTransition)
	}
	if p.done() {
		return fmt.Errorf("%w: you are no longer playing", ErrInvalidTransition)
	}
	if p.HintsUsed >= maxHints {
		return fmt.Errorf("%w: no hints left", ErrExhausted)
	}

	gs := r.gameFor(p)
	empty := make([][2]int, 0, sudoku.Size*sudoku.Size)
	for row := 0; row < sudoku.Size; row++ {
		for col := 0; col < sudoku.Size; col++ {
			if gs.Board[row][col] == 0 {
				empty = append(empty, [2]int{row, col})
			}
		}
	}
	if len(empty) == 0 {
		return fmt.Errorf("%w: no empty cells for a hint", ErrExhausted)
	}

	cell := empty[r.rng.Intn(len(empty))]
	row, col := cell[0], cell[1]
	value := r.solution[row][col]
	gs.Board[row][col] = value
	gs.Notes[row][col] = nil
	p.HintsUsed++
	p.Score += scoreHintBonus

	r.bus.SendTo(p.ID, EventHintGiven, HintPayload{Row: row, Col: col, Value: value, HintsUsed: p.HintsUsed})
	r.emitStateLocked(p, nil)
	r.checkCompletionLocked(p, time.Now())
	return nil
}

// departLocked removes the player, releases their locks, and tears the
// room down when it empties. A departure while playing can complete the
// all-finished-or-eliminated condition.
func (r *Room) departLocked(playerID string) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	delete(r.players, playerID)
	for k, lk := range r.locks {
		if lk.owner == playerID {
			delete(r.locks, k)
		}
	}

	r.log.Info().Str("player", playerID).Msg("player departed")

	if len(r.players) == 0 {
		r.stopTimerLocked()
		if r.onEmpty != nil {
			r.onEmpty(r.id)
		}
		return nil
	}

	// Keep the room operable: promote a new host if the host left.
	if r.hostID == playerID {
		for id := range r.players {
			r.hostID = id
			break
		}
	}

	r.bus.Broadcast(r.id, EventPlayerLeft, PresencePayload{PlayerID: p.ID, PlayerName: p.Name})
	r.bus.Broadcast(r.id, EventCurrentPlayers, PlayersPayload{Players: r.rosterLocked()})

	if r.phase == PhasePlaying && r.mode == ModeCompetitive && r.allDoneLocked() {
		r.finishLocked(ReasonCompletion)
	}
	return nil
}

// ----------------------------- termination ---------------------------------

// expire is the deferred time-limit callback. It takes the room mutex like
// any player operation, so it cannot race a move that finishes the puzzle
// at the same instant.
func (r *Room) expire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != PhasePlaying {
		return
	}
	r.finishLocked(ReasonTimeout)
}

// finishLocked performs Playing → Over exactly once and emits game_over.
func (r *Room) finishLocked(reason string) {
	if r.phase == PhaseOver {
		return
	}
	r.phase = PhaseOver
	r.stopTimerLocked()

	msg := "Congratulations! The puzzle is solved!"
	if reason == ReasonTimeout {
		msg = "Time's up!"
	}
	r.log.Info().Str("reason", reason).Msg("game over")
	r.bus.Broadcast(r.id, EventGameOver, GameOverPayload{
		Reason:      reason,
		Message:     msg,
		Leaderboard: r.rosterLocked(),
	})
}

// stopTimerLocked cancels any pending expiry callback. Idempotent; stopping
// an already-fired or never-started timer is a no-op.
func (r *Room) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// checkCompletionLocked re-evaluates the Playing → Over condition after a
// board mutation by player p.
func (r *Room) checkCompletionLocked(p *Player, now time.Time) {
	if r.phase != PhasePlaying {
		return
	}
	gs := r.gameFor(p)

	if r.mode == ModeCooperative {
		if gs.Board == r.solution {
			r.finishLocked(ReasonCompletion)
		}
		return
	}

	if !p.Finished && gs.Board == r.solution {
		p.Finished = true
		p.FinishedIn = now.Sub(r.startedAt)
		r.log.Info().Str("player", p.ID).Dur("elapsed", p.FinishedIn).Msg("player finished")
		r.bus.Broadcast(r.id, EventPlayerFinished, FinishedPayload{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			ElapsedMs:  p.FinishedIn.Milliseconds(),
		})
	}
	if r.allDoneLocked() {
		r.finishLocked(ReasonCompletion)
	}
}

// allDoneLocked reports whether every player is finished or eliminated.
func (r *Room) allDoneLocked() bool {
	for _, p := range r.players {
		if !p.done() {
			return false
		}
	}
	return len(r.players) > 0
}

// ------------------------------ helpers ------------------------------------

// gameFor resolves the board state a player edits: the shared room board
// in cooperative mode, the player's own otherwise.
func (r *Room) gameFor(p *Player) *GameState {
	if r.mode == ModeCooperative {
		return r.shared
	}
	return p.game
}

func (r *Room) lockExpiredLocked(lk cellLock, now time.Time) bool {
	return now.Sub(lk.acquiredAt) >= r.lockTTL
}

// emitStateLocked sends a fresh snapshot. Cooperative rooms broadcast so
// every player converges on the shared board; competitive boards are
// private, so only the actor is informed.
func (r *Room) emitStateLocked(p *Player, last *LastMove) {
	if r.mode == ModeCooperative {
		r.bus.Broadcast(r.id, EventGameState, r.snapshotLocked(p, last))
		return
	}
	r.bus.SendTo(p.ID, EventGameState, r.snapshotLocked(p, last))
}

// snapshotLocked assembles the game_state_update payload for p.
func (r *Room) snapshotLocked(p *Player, last *LastMove) StatePayload {
	gs := r.gameFor(p)
	now := time.Now()
	locks := make([]LockInfo, 0, len(r.locks))
	for k, lk := range r.locks {
		if r.lockExpiredLocked(lk, now) {
			continue
		}
		locks = append(locks, LockInfo{
			Row:       k[0],
			Col:       k[1],
			PlayerID:  lk.owner,
			ExpiresAt: lk.acquiredAt.Add(r.lockTTL).UnixMilli(),
		})
	}
	sort.Slice(locks, func(i, j int) bool {
		if locks[i].Row != locks[j].Row {
			return locks[i].Row < locks[j].Row
		}
		return locks[i].Col < locks[j].Col
	})
	return StatePayload{
		Puzzle:    gs.Puzzle,
		Board:     gs.Board,
		Notes:     gs.Notes,
		Locks:     locks,
		Mistakes:  p.Mistakes,
		HintsUsed: p.HintsUsed,
		Score:     p.Score,
		LastMove:  last,
	}
}

// rosterLocked lists players sorted by descending score, ties by name.
func (r *Room) rosterLocked() []PlayerInfo {
	out := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlayerName < out[j].PlayerName
	})
	return out
}

func inBounds(row, col int) bool {
	return row >= 0 && row < sudoku.Size && col >= 0 && col < sudoku.Size
}
