package room

import (
	"encoding/json"

	"github.com/duetroom/duetroom/backend/model"
)

func (a *Actor) handleGameStart(src string, data json.RawMessage) {
	p := a.byID(src)
	if p == nil {
		return
	}
	var req model.GameStart
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	var board model.Board
	switch req.Type {
	case model.GameTicTacToe:
		board = &model.TicTacToeBoard{}
	case model.GameConnectFour:
		board = &model.ConnectFourBoard{}
	default:
		return
	}

	// The starter owns index 0 and the first move.
	participants := []string{src}
	if other := a.other(src); other != nil {
		participants = append(participants, other.ID)
	}
	a.game = &model.GameState{
		Type:           req.Type,
		Participants:   participants,
		ActivePlayerID: src,
		Board:          board,
	}
	a.broadcast(model.EventGameStarted, a.game, "")
	a.broadcastState()
	a.logActivity(model.LogGame, p.Name+" started "+string(req.Type), "🎮")
}

func (a *Actor) handleGameMove(src string, data json.RawMessage) {
	g := a.game
	if g == nil || g.ActivePlayerID != src || g.Finished() {
		return
	}
	var req model.GameMove
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	// Both games take a single index as the move payload: a cell for
	// tic-tac-toe, a column for connect-4.
	var target int
	if err := json.Unmarshal(req.Move, &target); err != nil {
		return
	}
	mark := g.Mark(src)

	var won bool
	switch board := g.Board.(type) {
	case *model.TicTacToeBoard:
		if g.Type != model.GameTicTacToe || !board.Place(target, mark) {
			return
		}
		won = board.Winner() == mark
		if !won && board.Full() {
			g.IsDraw = true
		}
	case *model.ConnectFourBoard:
		if g.Type != model.GameConnectFour {
			return
		}
		row, ok := board.Drop(target, mark)
		if !ok {
			return
		}
		won = board.WinAt(row, target)
		if !won && board.Full() {
			g.IsDraw = true
		}
	default:
		return
	}

	if won {
		g.Winner = src
		a.finishGameWon(g)
		return
	}
	if g.IsDraw {
		a.broadcast(model.EventGameUpdate, g, "")
		a.broadcastState()
		a.logActivity(model.LogGame, "Game ended in a draw", "🤝")
		return
	}
	if other := a.gameOpponent(src); other != "" {
		g.ActivePlayerID = other
	}
	a.broadcast(model.EventGameUpdate, g, "")
}

// finishGameWon broadcasts the final board, crowns the winner with the
// usual auto-clear, announces the win and closes the game. The game is
// not left open for a rematch view.
func (a *Actor) finishGameWon(g *model.GameState) {
	a.broadcast(model.EventGameUpdate, g, "")

	winnerName := g.Winner
	if p := a.byID(g.Winner); p != nil {
		winnerName = p.Name
		a.crown(g.Winner)
	}
	a.broadcast(model.EventGameWon, model.GameWon{
		WinnerID:   g.Winner,
		WinnerName: winnerName,
		Type:       g.Type,
	}, "")
	a.logActivity(model.LogGame, winnerName+" won "+string(g.Type), "🏆")

	a.game = nil
	a.broadcastState()
}

func (a *Actor) gameOpponent(connID string) string {
	for _, id := range a.game.Participants {
		if id != connID {
			return id
		}
	}
	return ""
}

func (a *Actor) handleGameReset(src string) {
	g := a.game
	if g == nil || g.Mark(src) == 0 {
		return
	}
	switch g.Board.(type) {
	case *model.TicTacToeBoard:
		g.Board = &model.TicTacToeBoard{}
	case *model.ConnectFourBoard:
		g.Board = &model.ConnectFourBoard{}
	}
	g.Winner = ""
	g.IsDraw = false
	g.ActivePlayerID = g.Participants[0]
	a.broadcast(model.EventGameUpdate, g, "")
	a.broadcastState()
}

func (a *Actor) handleGameClose(src string) {
	if a.byID(src) == nil || a.game == nil {
		return
	}
	a.game = nil
	a.broadcast(model.EventGameClosed, struct{}{}, "")
	a.broadcastState()
}
