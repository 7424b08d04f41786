// apps/go-server/internal/session/player.go
//
// Player and per-board game state.
// A GameState owns one mutable board plus its candidate notes and undo
// history. Competitive rooms attach one GameState per player; cooperative
// rooms share a single GameState owned by the room, and Player.game stays
// nil.

package session

import (
	"time"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"
)

// NotesBoard holds per-cell candidate digits, independent of board values.
type NotesBoard [sudoku.Size][sudoku.Size][]uint8

// GameState is one in-progress board with notes and undo history.
type GameState struct {
	Puzzle  sudoku.Grid
	Board   sudoku.Grid
	Notes   NotesBoard
	History []sudoku.Grid
}

func newGameState(puzzle sudoku.Grid) *GameState {
	return &GameState{Puzzle: puzzle, Board: puzzle}
}

// apply records the current board in history, writes the value, and clears
// the cell's notes when the value is non-empty.
func (gs *GameState) apply(row, col int, value uint8) {
	gs.History = append(gs.History, gs.Board)
	gs.Board[row][col] = value
	if value != 0 {
		gs.Notes[row][col] = nil
	}
}

// undo restores the most recent history entry. It reports false when there
// is nothing to undo. Notes are left untouched: only board content is
// rolled back.
func (gs *GameState) undo() bool {
	n := len(gs.History)
	if n == 0 {
		return false
	}
	gs.Board = gs.History[n-1]
	gs.History = gs.History[:n-1]
	return true
}

// Player is one admitted participant of a room.
type Player struct {
	ID         string
	Name       string
	Mistakes   int
	HintsUsed  int
	Score      int
	Eliminated bool
	Finished   bool
	FinishedIn time.Duration

	// game is the player's own board in competitive mode; nil in
	// cooperative mode, where state lives on the room.
	game *GameState
}

// info snapshots the public view of the player.
func (p *Player) info() PlayerInfo {
	return PlayerInfo{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Score:      p.Score,
		Mistakes:   p.Mistakes,
		Eliminated: p.Eliminated,
		Finished:   p.Finished,
	}
}

// done reports whether the player no longer participates in play.
func (p *Player) done() bool { return p.Eliminated || p.Finished }
