// apps/go-server/internal/sudoku/grid.go
//
// Grid primitives for the Sudoku engine.
// Defines:
//   - Grid: a 9×9 matrix of cells, 0 (empty) or 1–9.
//   - Row/column/box lookup helpers and legality checks.
//   - Scan helpers used by the solver and generator.
//
// A Grid is a value type: assignment copies the whole board, which is what
// the session layer relies on for history snapshots.

package sudoku

// Size is the board edge length; BoxSize the edge of a 3×3 box.
const (
	Size    = 9
	BoxSize = 3
)

// Grid is a 9×9 Sudoku board. Zero means the cell is empty.
type Grid [Size][Size]uint8

// Row returns the values of row r.
func (g *Grid) Row(r int) [Size]uint8 { return g[r] }

// Col returns the values of column c.
func (g *Grid) Col(c int) [Size]uint8 {
	var out [Size]uint8
	for r := 0; r < Size; r++ {
		out[r] = g[r][c]
	}
	return out
}

// Box returns the nine values of the 3×3 box containing (r, c), row-major.
func (g *Grid) Box(r, c int) [Size]uint8 {
	var out [Size]uint8
	br, bc := (r/BoxSize)*BoxSize, (c/BoxSize)*BoxSize
	i := 0
	for dr := 0; dr < BoxSize; dr++ {
		for dc := 0; dc < BoxSize; dc++ {
			out[i] = g[br+dr][bc+dc]
			i++
		}
	}
	return out
}

// Legal reports whether placing v at (r, c) keeps the row, column, and box
// free of duplicates. The cell itself is ignored, so re-checking a value
// already placed at (r, c) is legal.
func (g *Grid) Legal(r, c int, v uint8) bool {
	if v < 1 || v > 9 {
		return false
	}
	for i := 0; i < Size; i++ {
		if i != c && g[r][i] == v {
			return false
		}
		if i != r && g[i][c] == v {
			return false
		}
	}
	br, bc := (r/BoxSize)*BoxSize, (c/BoxSize)*BoxSize
	for dr := 0; dr < BoxSize; dr++ {
		for dc := 0; dc < BoxSize; dc++ {
			if br+dr == r && bc+dc == c {
				continue
			}
			if g[br+dr][bc+dc] == v {
				return false
			}
		}
	}
	return true
}

// FirstEmpty returns the first empty cell in row-major scan order.
func (g *Grid) FirstEmpty() (r, c int, ok bool) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g[r][c] == 0 {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

// Filled counts the non-empty cells.
func (g *Grid) Filled() int {
	n := 0
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g[r][c] != 0 {
				n++
			}
		}
	}
	return n
}

// Complete reports whether every cell holds a value.
func (g *Grid) Complete() bool {
	_, _, empty := g.FirstEmpty()
	return !empty
}

// Solved reports whether the grid is complete and every row, column, and
// box is a permutation of 1–9.
func (g *Grid) Solved() bool {
	if !g.Complete() {
		return false
	}
	for i := 0; i < Size; i++ {
		if !isPermutation(g.Row(i)) || !isPermutation(g.Col(i)) {
			return false
		}
	}
	for br := 0; br < Size; br += BoxSize {
		for bc := 0; bc < Size; bc += BoxSize {
			if !isPermutation(g.Box(br, bc)) {
				return false
			}
		}
	}
	return true
}

// isPermutation checks that nine values are exactly 1–9 once each.
func isPermutation(vals [Size]uint8) bool {
	var seen [Size + 1]bool
	for _, v := range vals {
		if v < 1 || v > 9 || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
