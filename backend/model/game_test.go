package model

import "testing"

func TestTicTacToePlace(t *testing.T) {
	b := &TicTacToeBoard{}
	if !b.Place(4, 1) {
		t.Fatal("expected placement into empty cell to succeed")
	}
	if b.Place(4, 2) {
		t.Error("expected placement into occupied cell to fail")
	}
	if b.Place(9, 1) || b.Place(-1, 1) {
		t.Error("expected out-of-range placement to fail")
	}
}

func TestTicTacToeWinner(t *testing.T) {
	t.Run("top row completes", func(t *testing.T) {
		b := &TicTacToeBoard{1, 1, 0, 2, 2, 0, 0, 0, 0}
		if w := b.Winner(); w != 0 {
			t.Fatalf("unexpected winner before move: %d", w)
		}
		if !b.Place(2, 1) {
			t.Fatal("placement failed")
		}
		if w := b.Winner(); w != 1 {
			t.Errorf("expected mark 1 to win, got %d", w)
		}
	})

	t.Run("column", func(t *testing.T) {
		b := &TicTacToeBoard{2, 0, 0, 2, 0, 0, 2, 0, 0}
		if w := b.Winner(); w != 2 {
			t.Errorf("expected mark 2 to win, got %d", w)
		}
	})

	t.Run("diagonal", func(t *testing.T) {
		b := &TicTacToeBoard{1, 0, 0, 0, 1, 0, 0, 0, 1}
		if w := b.Winner(); w != 1 {
			t.Errorf("expected mark 1 to win, got %d", w)
		}
	})

	t.Run("draw board", func(t *testing.T) {
		b := &TicTacToeBoard{1, 2, 1, 1, 2, 2, 2, 1, 1}
		if w := b.Winner(); w != 0 {
			t.Errorf("expected no winner, got %d", w)
		}
		if !b.Full() {
			t.Error("expected board to be full")
		}
	})
}

func TestConnectFourDrop(t *testing.T) {
	b := &ConnectFourBoard{}
	for i := 0; i < ConnectFourRows; i++ {
		row, ok := b.Drop(3, 1)
		if !ok {
			t.Fatalf("drop %d unexpectedly rejected", i)
		}
		if want := ConnectFourRows - 1 - i; row != want {
			t.Fatalf("drop %d landed in row %d, want %d", i, row, want)
		}
	}
	// Column holds six rows; the seventh drop must be a no-op.
	if _, ok := b.Drop(3, 1); ok {
		t.Error("expected drop into full column to fail")
	}
	if _, ok := b.Drop(7, 1); ok {
		t.Error("expected drop into out-of-range column to fail")
	}
}

func TestConnectFourWinAt(t *testing.T) {
	t.Run("vertical", func(t *testing.T) {
		b := &ConnectFourBoard{}
		var row int
		for i := 0; i < 4; i++ {
			row, _ = b.Drop(0, 1)
		}
		if !b.WinAt(row, 0) {
			t.Error("expected vertical win")
		}
	})

	t.Run("horizontal through middle", func(t *testing.T) {
		b := &ConnectFourBoard{}
		for _, col := range []int{1, 2, 4} {
			b.Drop(col, 2)
		}
		row, _ := b.Drop(3, 2)
		if !b.WinAt(row, 3) {
			t.Error("expected horizontal win when the gap is filled")
		}
	})

	t.Run("diagonal", func(t *testing.T) {
		b := &ConnectFourBoard{}
		// Stairs: column i gets i filler tokens, then the mark on top.
		for col := 0; col < 4; col++ {
			for i := 0; i < col; i++ {
				b.Drop(col, 2)
			}
		}
		var row int
		for col := 0; col < 4; col++ {
			row, _ = b.Drop(col, 1)
		}
		if !b.WinAt(row, 3) {
			t.Error("expected diagonal win")
		}
	})

	t.Run("three is not enough", func(t *testing.T) {
		b := &ConnectFourBoard{}
		for _, col := range []int{0, 1} {
			b.Drop(col, 1)
		}
		row, _ := b.Drop(2, 1)
		if b.WinAt(row, 2) {
			t.Error("unexpected win with a run of three")
		}
	})
}

func TestGameStateMark(t *testing.T) {
	g := &GameState{Participants: []string{"a", "b"}}
	if m := g.Mark("a"); m != 1 {
		t.Errorf("starter mark = %d, want 1", m)
	}
	if m := g.Mark("b"); m != 2 {
		t.Errorf("second mark = %d, want 2", m)
	}
	if m := g.Mark("c"); m != 0 {
		t.Errorf("outsider mark = %d, want 0", m)
	}
}
