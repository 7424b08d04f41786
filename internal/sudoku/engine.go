// apps/go-server/internal/sudoku/engine.go
//
// Puzzle generation engine.
// Responsibilities:
//   - GenerateSolution: fill an empty grid by recursive backtracking with a
//     randomly shuffled digit order per cell (varied solutions, bounded depth).
//   - CountSolutions: exhaustive backtracking capped at two solutions, used
//     only to answer "zero / one / many".
//   - DerivePuzzle: carve cells out of a solution under one of two removal
//     policies (uniqueness-preserving by default, fast/unchecked opt-in).
//
// Notes:
//   - Difficulty maps to a removal target; harder levels clear more cells.
//     The uniqueness-preserving policy additionally floors the result at
//     17 givens, the known minimum for a uniquely solvable 9×9 puzzle.
//   - Puzzles produced by PolicyFast carry no single-solution guarantee.

package sudoku

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Difficulty tags the requested puzzle hardness.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Expert Difficulty = "expert"
)

// ErrUnknownDifficulty is returned by ParseDifficulty for unrecognized tags.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// ParseDifficulty validates a client-supplied difficulty tag.
// An empty tag defaults to Easy, matching the original create flow.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case "":
		return Easy, nil
	case Easy, Medium, Hard, Expert:
		return Difficulty(s), nil
	}
	return "", ErrUnknownDifficulty
}

// removalTarget returns how many cells to clear for a difficulty.
// Monotonic: harder levels never leave more filled cells than easier ones.
func removalTarget(d Difficulty) int {
	switch d {
	case Easy:
		return 30
	case Medium:
		return 40
	case Hard:
		return 48
	default: // Expert
		return 54
	}
}

// minGivens is the known minimum clue count for a unique 9×9 puzzle.
const minGivens = 17

// RemovalPolicy selects how DerivePuzzle clears cells.
type RemovalPolicy int

const (
	// PolicyUnique keeps a cell cleared only if the board still has exactly
	// one solution. Default.
	PolicyUnique RemovalPolicy = iota
	// PolicyFast clears random cells without any solvability check.
	PolicyFast
)

// Engine generates puzzles. Safe for concurrent use: the shared rand
// source is mutex-guarded, and generation holds the lock end to end.
type Engine struct {
	mu     sync.Mutex
	rng    *rand.Rand
	policy RemovalPolicy
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed fixes the random source, for deterministic generation
// (tests, daily puzzles).
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithPolicy selects the removal policy.
func WithPolicy(p RemovalPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// NewEngine constructs an Engine with a time-seeded random source and the
// uniqueness-preserving removal policy.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		policy: PolicyUnique,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateSolution produces a fully solved grid. Cells are visited in
// row-major order; digits are tried in a freshly shuffled order at each
// cell so repeated calls yield varied solutions.
func (e *Engine) GenerateSolution() Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generateSolutionLocked()
}

func (e *Engine) generateSolutionLocked() Grid {
	var g Grid
	digits := [Size]uint8{1, 2, 3, 4, 5, 6, 7, 8, 9}

	var fill func() bool
	fill = func() bool {
		r, c, ok := g.FirstEmpty()
		if !ok {
			return true
		}
		e.rng.Shuffle(Size, func(i, j int) { digits[i], digits[j] = digits[j], digits[i] })
		for _, v := range digits {
			if g.Legal(r, c, v) {
				g[r][c] = v
				if fill() {
					return true
				}
				g[r][c] = 0
			}
		}
		return false
	}

	// A solved 9×9 grid always exists, so this cannot fail from empty.
	fill()
	return g
}

// CountSolutions counts completions of g by exhaustive backtracking,
// stopping as soon as the count reaches limit. Digit order is numeric;
// order is irrelevant for counting. Callers only need 0 / 1 / many,
// so limit is typically 2.
func CountSolutions(g Grid, limit int) int {
	count := 0
	var dfs func() bool // returns true once limit is reached
	dfs = func() bool {
		r, c, ok := g.FirstEmpty()
		if !ok {
			count++
			return count >= limit
		}
		for v := uint8(1); v <= 9; v++ {
			if g.Legal(r, c, v) {
				g[r][c] = v
				if dfs() {
					return true
				}
				g[r][c] = 0
			}
		}
		return false
	}
	dfs()
	return count
}

// HasUniqueSolution reports whether g completes in exactly one way.
func HasUniqueSolution(g Grid) bool {
	return CountSolutions(g, 2) == 1
}

// DerivePuzzle returns a puzzle carved from solution according to the
// engine's removal policy and the difficulty's removal target.
func (e *Engine) DerivePuzzle(solution Grid, d Difficulty) Grid {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.derivePuzzleLocked(solution, d)
}

func (e *Engine) derivePuzzleLocked(solution Grid, d Difficulty) Grid {
	target := removalTarget(d)
	if e.policy == PolicyFast {
		return e.carveFast(solution, target)
	}
	return e.carveUnique(solution, target)
}

// Generate is the room-creation entry point: one solution, one puzzle.
func (e *Engine) Generate(d Difficulty) (puzzle, solution Grid) {
	e.mu.Lock()
	defer e.mu.Unlock()
	solution = e.generateSolutionLocked()
	puzzle = e.derivePuzzleLocked(solution, d)
	return puzzle, solution
}

// carveUnique shuffles all 81 coordinates and clears each in turn, keeping
// a clearance only if the board still has exactly one solution. Stops at
// the removal target, the 17-given floor, or coordinate exhaustion.
func (e *Engine) carveUnique(solution Grid, target int) Grid {
	puzzle := solution
	if target > Size*Size-minGivens {
		target = Size*Size - minGivens
	}

	coords := make([]int, Size*Size)
	for i := range coords {
		coords[i] = i
	}
	e.rng.Shuffle(len(coords), func(i, j int) { coords[i], coords[j] = coords[j], coords[i] })

	removed := 0
	for _, pos := range coords {
		if removed >= target {
			break
		}
		r, c := pos/Size, pos%Size
		backup := puzzle[r][c]
		puzzle[r][c] = 0
		if HasUniqueSolution(puzzle) {
			removed++
		} else {
			puzzle[r][c] = backup
		}
	}
	return puzzle
}

// carveFast clears random still-filled cells until the target is met.
// No uniqueness check: the result may have multiple solutions.
func (e *Engine) carveFast(solution Grid, target int) Grid {
	puzzle := solution
	removed := 0
	for removed < target {
		r, c := e.rng.Intn(Size), e.rng.Intn(Size)
		if puzzle[r][c] == 0 {
			continue
		}
		puzzle[r][c] = 0
		removed++
	}
	return puzzle
}
