package model

type GameType string

const (
	GameTicTacToe   GameType = "ttt"
	GameConnectFour GameType = "c4"
)

// GameState is the shared shape of both turn-based games. Participants
// are connection ids; index 0 is the starter and owns mark 1.
type GameState struct {
	Type           GameType `json:"type"`
	Participants   []string `json:"participants"`
	ActivePlayerID string   `json:"activePlayerId"`
	Winner         string   `json:"winner,omitempty"`
	IsDraw         bool     `json:"isDraw"`
	Board          Board    `json:"board"`
}

// Finished reports whether the game accepts no further moves.
func (g *GameState) Finished() bool {
	return g.Winner != "" || g.IsDraw
}

// Mark returns the board mark (1 or 2) for a participant, or 0 if the
// connection id is not part of the game.
func (g *GameState) Mark(connID string) int {
	for i, p := range g.Participants {
		if p == connID {
			return i + 1
		}
	}
	return 0
}

// Board is the tagged union of game-specific grids. Cells hold 0 for
// empty or the mark of the participant that owns them.
type Board interface {
	isBoard()
}

type TicTacToeBoard [9]int

func (*TicTacToeBoard) isBoard() {}

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Place puts mark into cell, rejecting out-of-range and occupied cells.
func (b *TicTacToeBoard) Place(cell, mark int) bool {
	if cell < 0 || cell >= len(b) || b[cell] != 0 {
		return false
	}
	b[cell] = mark
	return true
}

// Winner returns the winning mark, or 0.
func (b *TicTacToeBoard) Winner() int {
	for _, l := range tttLines {
		if b[l[0]] != 0 && b[l[0]] == b[l[1]] && b[l[1]] == b[l[2]] {
			return b[l[0]]
		}
	}
	return 0
}

func (b *TicTacToeBoard) Full() bool {
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}

const (
	ConnectFourRows = 6
	ConnectFourCols = 7
)

// ConnectFourBoard is row-major with row 0 at the top; tokens fall to
// the highest row index.
type ConnectFourBoard [ConnectFourRows][ConnectFourCols]int

func (*ConnectFourBoard) isBoard() {}

// Drop places mark in the lowest empty row of col and returns the row.
// Returns ok=false if col is out of range or full.
func (b *ConnectFourBoard) Drop(col, mark int) (int, bool) {
	if col < 0 || col >= ConnectFourCols {
		return 0, false
	}
	for row := ConnectFourRows - 1; row >= 0; row-- {
		if b[row][col] == 0 {
			b[row][col] = mark
			return row, true
		}
	}
	return 0, false
}

var c4Axes = [4][2]int{
	{0, 1},  // horizontal
	{1, 0},  // vertical
	{1, 1},  // diagonal \
	{1, -1}, // diagonal /
}

// WinAt reports whether the cell just placed at (row, col) completes a
// run of four, scanning outward in both directions along each axis.
func (b *ConnectFourBoard) WinAt(row, col int) bool {
	mark := b[row][col]
	if mark == 0 {
		return false
	}
	for _, axis := range c4Axes {
		run := 1
		for _, sign := range [2]int{1, -1} {
			r, c := row+axis[0]*sign, col+axis[1]*sign
			for r >= 0 && r < ConnectFourRows && c >= 0 && c < ConnectFourCols && b[r][c] == mark {
				run++
				r += axis[0] * sign
				c += axis[1] * sign
			}
		}
		if run >= 4 {
			return true
		}
	}
	return false
}

func (b *ConnectFourBoard) Full() bool {
	for col := 0; col < ConnectFourCols; col++ {
		if b[0][col] == 0 {
			return false
		}
	}
	return true
}
