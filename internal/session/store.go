// apps/go-server/internal/session/store.go
//
// Process-wide registry of live rooms.
// This is an explicit store object, constructed per process (and per test),
// never ambient state. Its mutex covers creation, lookup, and removal and
// is independent of any individual room's mutex: the store never calls
// into a room while holding its own lock, and rooms only call back through
// the onEmpty hook, which touches the store lock alone.
//
// Characteristics:
//   - Rooms keyed by 8-char identifiers in a map, RWMutex-guarded.
//   - A room is garbage-collected the moment its last player departs.
//   - State is lost when the process restarts; durability is out of scope.

package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robalobadob/sudoku-arena/apps/go-server/internal/sudoku"
)

// Store owns all rooms for the process lifetime.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	log   zerolog.Logger
}

// NewStore constructs an empty registry.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{rooms: make(map[string]*Room), log: logger}
}

// Create registers a new room around a generated (puzzle, solution) pair
// and wires its teardown back into the registry.
func (s *Store) Create(puzzle, solution sudoku.Grid, cfg Config, bus Broadcaster) *Room {
	id := newRoomID()
	room := newRoom(id, puzzle, solution, cfg, bus, s.remove, s.log)

	s.mu.Lock()
	s.rooms[id] = room
	s.mu.Unlock()

	s.log.Info().Str("room", id).Str("difficulty", string(cfg.Difficulty)).Msg("room created")
	return room
}

// Get looks a room up by ID.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	return room, ok
}

// Len reports the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// remove drops a room from the registry; invoked by the room itself once
// its last player departs.
func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.rooms, id)
	s.mu.Unlock()
	s.log.Info().Str("room", id).Msg("room destroyed")
}

// newRoomID is the first 8 chars of a v4 UUID, enough to share verbally.
func newRoomID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}
