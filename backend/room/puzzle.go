package room

import (
	"encoding/json"

	"github.com/duetroom/duetroom/backend/model"
)

func (a *Actor) ensurePuzzle() *model.PuzzleState {
	if a.puzzle == nil {
		a.puzzle = model.NewPuzzle()
	}
	return a.puzzle
}

func (a *Actor) handlePuzzleOpen(src string) {
	if a.byID(src) == nil {
		return
	}
	p := a.ensurePuzzle()
	a.sendTo(src, model.EventPuzzleState, model.PuzzleStateNotice{State: p})
}

func (a *Actor) handlePuzzleShuffle(src string) {
	who := a.byID(src)
	if who == nil {
		return
	}
	p := a.ensurePuzzle()
	p.Shuffle(a.rng)
	a.broadcast(model.EventPuzzleState, model.PuzzleStateNotice{State: p}, "")
	a.logActivity(model.LogPuzzle, who.Name+" shuffled the puzzle", "🧩")
}

// handlePuzzleMove applies the optimistic-concurrency protocol: a
// request carrying a stale revision or an illegal slide never mutates
// state and only triggers an authoritative resync to the requester.
// Accepted moves are broadcast to the whole room.
func (a *Actor) handlePuzzleMove(src string, data json.RawMessage) {
	who := a.byID(src)
	if who == nil {
		return
	}
	var req model.PuzzleMoveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	p := a.ensurePuzzle()

	if req.ExpectedRevision != p.Revision || p.Status == model.PuzzleSolved || !p.Move(req.TileIndex) {
		a.sendTo(src, model.EventPuzzleState, model.PuzzleStateNotice{State: p})
		return
	}

	a.broadcast(model.EventPuzzleState, model.PuzzleStateNotice{State: p}, "")
	if p.Status == model.PuzzleSolved {
		a.broadcast(model.EventPuzzleSolved, model.PuzzleSolvedNotice{SolvedRevision: p.SolvedRevision}, "")
		a.logActivity(model.LogPuzzle, who.Name+" solved the puzzle", "🎉")
	}
}
