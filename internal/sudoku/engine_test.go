package sudoku

import "testing"

func TestGenerateSolutionIsSolved(t *testing.T) {
	e := NewEngine(WithSeed(1))
	for i := 0; i < 5; i++ {
		sol := e.GenerateSolution()
		if !sol.Solved() {
			t.Fatalf("generated solution %d is not a valid solved grid:\n%v", i, sol)
		}
	}
}

func TestGenerateSolutionVaries(t *testing.T) {
	a := NewEngine(WithSeed(1)).GenerateSolution()
	b := NewEngine(WithSeed(2)).GenerateSolution()
	if a == b {
		t.Fatal("different seeds produced identical solutions")
	}
}

func TestCountSolutions(t *testing.T) {
	e := NewEngine(WithSeed(7))
	sol := e.GenerateSolution()

	if got := CountSolutions(sol, 2); got != 1 {
		t.Fatalf("solved grid should count exactly 1 solution, got %d", got)
	}

	// A cleared cell of a full solution still solves uniquely.
	puz := sol
	puz[0][0] = 0
	if got := CountSolutions(puz, 2); got != 1 {
		t.Fatalf("single cleared cell should keep a unique solution, got %d", got)
	}

	// A contradiction has zero solutions: (0,8) needs 9, but column 8
	// already holds one.
	var bad Grid
	bad[0] = [Size]uint8{1, 2, 3, 4, 5, 6, 7, 8, 0}
	bad[1][8] = 9
	if got := CountSolutions(bad, 2); got != 0 {
		t.Fatalf("contradictory grid should have 0 solutions, got %d", got)
	}
}

func TestDerivePuzzleUniquePolicy(t *testing.T) {
	e := NewEngine(WithSeed(42))
	for _, d := range []Difficulty{Easy, Medium, Hard, Expert} {
		t.Run(string(d), func(t *testing.T) {
			sol := e.GenerateSolution()
			puz := e.DerivePuzzle(sol, d)

			if !HasUniqueSolution(puz) {
				t.Fatalf("%s puzzle is not uniquely solvable", d)
			}
			if g := puz.Filled(); g < minGivens {
				t.Fatalf("%s puzzle has %d givens, below the %d floor", d, g, minGivens)
			}
			for r := 0; r < Size; r++ {
				for c := 0; c < Size; c++ {
					if puz[r][c] != 0 && puz[r][c] != sol[r][c] {
						t.Fatalf("given at (%d,%d) = %d does not match solution %d",
							r, c, puz[r][c], sol[r][c])
					}
				}
			}
		})
	}
}

func TestDerivePuzzleMonotonicity(t *testing.T) {
	e := NewEngine(WithSeed(9))
	sol := e.GenerateSolution()

	order := []Difficulty{Easy, Medium, Hard, Expert}
	prev := Size*Size + 1
	for _, d := range order {
		puz := e.DerivePuzzle(sol, d)
		filled := puz.Filled()
		if filled > prev {
			t.Fatalf("%s left %d filled cells, more than the easier level's %d", d, filled, prev)
		}
		prev = filled
	}
}

func TestDerivePuzzleFastPolicy(t *testing.T) {
	e := NewEngine(WithSeed(3), WithPolicy(PolicyFast))
	sol := e.GenerateSolution()
	puz := e.DerivePuzzle(sol, Expert)

	want := Size*Size - removalTarget(Expert)
	if got := puz.Filled(); got != want {
		t.Fatalf("fast policy should leave exactly %d givens, got %d", want, got)
	}
}

func TestGridHelpers(t *testing.T) {
	e := NewEngine(WithSeed(11))
	sol := e.GenerateSolution()

	if !isPermutation(sol.Row(4)) || !isPermutation(sol.Col(4)) || !isPermutation(sol.Box(4, 4)) {
		t.Fatal("row/col/box of a solved grid should each be a permutation of 1-9")
	}

	var empty Grid
	if empty.Filled() != 0 || empty.Complete() {
		t.Fatal("zero grid should be empty")
	}
	r, c, ok := empty.FirstEmpty()
	if !ok || r != 0 || c != 0 {
		t.Fatalf("FirstEmpty on zero grid = (%d,%d,%v), want (0,0,true)", r, c, ok)
	}

	// Self-position is ignored by Legal.
	if !sol.Legal(0, 0, sol[0][0]) {
		t.Fatal("re-checking a placed value at its own cell should be legal")
	}
}
