package model

import "math/rand"

type PuzzleStatus string

const (
	PuzzleIdle   PuzzleStatus = "idle"
	PuzzleActive PuzzleStatus = "active"
	PuzzleSolved PuzzleStatus = "solved"
)

const (
	puzzleSide   = 3
	puzzleTiles  = puzzleSide * puzzleSide
	PuzzleBlank  = puzzleTiles - 1
	shuffleSteps = 80
)

// PuzzleState is the revision-gated sliding puzzle. Tiles is always a
// permutation of 0..8 with value 8 denoting the blank; Revision grows
// by exactly one per accepted mutation.
type PuzzleState struct {
	Tiles          [puzzleTiles]int `json:"tiles"`
	Revision       int              `json:"revision"`
	MoveCount      int              `json:"moveCount"`
	Status         PuzzleStatus     `json:"status"`
	SolvedRevision int              `json:"solvedRevision,omitempty"`
}

func NewPuzzle() *PuzzleState {
	p := &PuzzleState{Status: PuzzleIdle}
	for i := range p.Tiles {
		p.Tiles[i] = i
	}
	return p
}

func (p *PuzzleState) blankIndex() int {
	for i, t := range p.Tiles {
		if t == PuzzleBlank {
			return i
		}
	}
	return -1
}

// adjacent reports 4-adjacency on the 3x3 grid (Manhattan distance 1).
func adjacent(a, b int) bool {
	ar, ac := a/puzzleSide, a%puzzleSide
	br, bc := b/puzzleSide, b%puzzleSide
	dr, dc := ar-br, ac-bc
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr+dc == 1
}

func neighborIndexes(idx int) []int {
	out := make([]int, 0, 4)
	for i := 0; i < puzzleTiles; i++ {
		if adjacent(idx, i) {
			out = append(out, i)
		}
	}
	return out
}

// Shuffle rebuilds the arrangement with a random walk of legal slides
// starting from the solved permutation, so the result is always
// reachable from solved. Each step avoids immediately undoing the
// previous one when another slide is available.
func (p *PuzzleState) Shuffle(rng *rand.Rand) {
	for i := range p.Tiles {
		p.Tiles[i] = i
	}
	blank := PuzzleBlank
	prev := -1
	for step := 0; step < shuffleSteps; step++ {
		candidates := neighborIndexes(blank)
		if prev >= 0 && len(candidates) > 1 {
			filtered := candidates[:0]
			for _, c := range candidates {
				if c != prev {
					filtered = append(filtered, c)
				}
			}
			candidates = filtered
		}
		next := candidates[rng.Intn(len(candidates))]
		p.Tiles[blank], p.Tiles[next] = p.Tiles[next], p.Tiles[blank]
		prev = blank
		blank = next
	}
	p.MoveCount = 0
	p.Revision++
	p.Status = PuzzleActive
	p.SolvedRevision = 0
}

// Move slides the tile at tileIndex into the blank if they are
// adjacent. On acceptance it bumps MoveCount and Revision and flips
// Status to solved when the permutation is back in order.
func (p *PuzzleState) Move(tileIndex int) bool {
	if tileIndex < 0 || tileIndex >= puzzleTiles {
		return false
	}
	blank := p.blankIndex()
	if !adjacent(blank, tileIndex) {
		return false
	}
	p.Tiles[blank], p.Tiles[tileIndex] = p.Tiles[tileIndex], p.Tiles[blank]
	p.MoveCount++
	p.Revision++
	p.Status = PuzzleActive
	if p.solved() {
		p.Status = PuzzleSolved
		p.SolvedRevision = p.Revision
	}
	return true
}

func (p *PuzzleState) solved() bool {
	for i, t := range p.Tiles {
		if t != i {
			return false
		}
	}
	return true
}
