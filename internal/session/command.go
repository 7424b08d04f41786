// apps/go-server/internal/session/command.go
//
// Gameplay operations as a closed, tagged set of command variants with a
// single typed entry point (Room.Dispatch). Unknown operation names are a
// transport-layer concern; once decoded into a Command they are a
// compile-time impossibility here.

package session

// Command is one gameplay operation addressed to a room.
type Command interface{ isCommand() }

// Start begins play. Only the host may issue it; competitive rooms need at
// least two admitted players.
type Start struct {
	PlayerID string
}

// Move writes a value (0 clears) into a board cell.
type Move struct {
	PlayerID string
	Row, Col int
	Value    uint8
}

// SelectCell moves the player's editing lock onto a cell.
type SelectCell struct {
	PlayerID string
	Row, Col int
}

// SetNotes replaces the candidate-digit annotations of a cell.
type SetNotes struct {
	PlayerID string
	Row, Col int
	Notes    []uint8
}

// Undo restores the board to its state before the last accepted move.
type Undo struct {
	PlayerID string
}

// Hint fills a random empty cell with its solution value.
type Hint struct {
	PlayerID string
}

// Depart removes the player from the room.
type Depart struct {
	PlayerID string
}

func (Start) isCommand()      {}
func (Move) isCommand()       {}
func (SelectCell) isCommand() {}
func (SetNotes) isCommand()   {}
func (Undo) isCommand()       {}
func (Hint) isCommand()       {}
func (Depart) isCommand()     {}
