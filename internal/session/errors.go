// apps/go-server/internal/session/errors.go
//
// Error taxonomy for room operations. All of these are local and
// recoverable: they reject a single operation, never the room or the
// process. The transport layer maps them onto HTTP statuses or per-player
// error events; ErrUnknownPlayer is dropped silently since no session
// context exists to reply into.

package session

import "errors"

var (
	// ErrInvalidInput marks missing or malformed fields on create/join
	// and out-of-range cell coordinates or values.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an unknown room identifier.
	ErrNotFound = errors.New("room not found")

	// ErrInvalidTransition marks operations illegal in the room's current
	// phase: join after start, move after game over, start by a non-host,
	// start without the minimum player count.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrLocked marks a move against a cell held by another player whose
	// lock has not expired.
	ErrLocked = errors.New("cell is locked by another player")

	// ErrExhausted marks a depleted resource: no hints left, no empty cell
	// for a hint, nothing to undo.
	ErrExhausted = errors.New("exhausted")

	// ErrUnknownPlayer marks gameplay events from identifiers the room has
	// never admitted (stale or unauthorized clients).
	ErrUnknownPlayer = errors.New("unknown player")
)
