package game

import (
	"errors"
	"testing"
)

func TestValidateMoveRejectsWrongTurn(t *testing.T) {
	var b Board
	if err := ValidateMove(b, X, O, 0); !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("expected invalid_turn, got %v", err)
	}
}

func TestValidateMoveRejectsNonParticipant(t *testing.T) {
	var b Board
	if err := ValidateMove(b, X, Empty, 0); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected not_a_participant, got %v", err)
	}
}

func TestValidateMovePositions(t *testing.T) {
	var b Board
	cases := []struct {
		name string
		b    Board
		pos  Position
	}{
		{"negative", b, -1},
		{"out_of_range", b, 9},
		{"center_first", b, Center},
		{"occupied", ApplyMove(ApplyMove(b, X, 0), O, 1), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := X
			if tc.b.Count()%2 == 1 {
				cur = O
			}
			if err := ValidateMove(tc.b, cur, cur, tc.pos); !errors.Is(err, ErrInvalidPosition) {
				t.Fatalf("expected invalid_position, got %v", err)
			}
		})
	}
}

func TestCenterAllowedAfterFirstMove(t *testing.T) {
	b := ApplyMove(Board{}, X, 0)
	if err := ValidateMove(b, O, O, Center); err != nil {
		t.Fatalf("center after first move: %v", err)
	}
}

func TestMovesAreWriteOnceAndAlternate(t *testing.T) {
	seq := []Position{0, 1, 2, 4, 3, 5, 7, 6, 8}
	var b Board
	cur := X
	for i, p := range seq {
		prev := b
		out, err := Play(b, cur, cur, p)
		if err != nil {
			t.Fatalf("move %d at %d: %v", i, p, err)
		}
		for j := 0; j < BoardSize; j++ {
			if prev[j] != Empty && out.Board[j] != prev[j] {
				t.Fatalf("cell %d changed from %v to %v", j, prev[j], out.Board[j])
			}
		}
		b = out.Board
		if out.Finished {
			break
		}
		if out.Next != cur.Opponent() {
			t.Fatalf("move %d: next = %v, want %v", i, out.Next, cur.Opponent())
		}
		cur = out.Next
	}
}

func TestPlayDetectsWin(t *testing.T) {
	var b Board
	b = ApplyMove(b, X, 0)
	b = ApplyMove(b, O, 3)
	b = ApplyMove(b, X, 1)
	b = ApplyMove(b, O, 4)
	out, err := Play(b, X, X, 2)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !out.Finished || out.Result != ResultWin || out.Winner != X {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(out.Line) != 3 || out.Line[0] != 0 || out.Line[2] != 2 {
		t.Fatalf("unexpected line: %v", out.Line)
	}
}

func TestPlayDetectsDraw(t *testing.T) {
	// X O X
	// X O O
	// O X X
	seq := []Position{0, 1, 2, 4, 3, 5, 7, 6, 8}
	var b Board
	cur := X
	var out Outcome
	var err error
	for _, p := range seq {
		out, err = Play(b, cur, cur, p)
		if err != nil {
			t.Fatalf("play %d: %v", p, err)
		}
		b = out.Board
		cur = out.Next
	}
	if !out.Finished || out.Result != ResultDraw || out.Winner != Empty {
		t.Fatalf("expected draw, got %+v", out)
	}
	if _, err := Play(b, X, X, 0); err == nil {
		t.Fatal("expected move on full board to fail")
	}
	if len(LegalMoves(b)) != 0 {
		t.Fatalf("expected no legal moves, got %v", LegalMoves(b))
	}
}

func TestFirstLegalSkipsCenterOnEmptyBoard(t *testing.T) {
	var b Board
	for i := 0; i < 4; i++ {
		b[i] = X
	}
	// 0..3 taken, 4 is center but board is not empty
	p, ok := FirstLegal(b)
	if !ok || p != Center {
		t.Fatalf("FirstLegal = %d,%v want 4,true", p, ok)
	}
	p, ok = FirstLegal(Board{})
	if !ok || p != 0 {
		t.Fatalf("FirstLegal(empty) = %d,%v", p, ok)
	}
}

func TestBoardStringRoundTrip(t *testing.T) {
	b := ApplyMove(ApplyMove(Board{}, X, 0), O, 8)
	if b.String() != "X.......O" {
		t.Fatalf("String() = %q", b.String())
	}
	got, err := ParseBoard(b.String())
	if err != nil || got != b {
		t.Fatalf("ParseBoard = %v, %v", got, err)
	}
	if _, err := ParseBoard("XX"); !errors.Is(err, ErrInvalidBoard) {
		t.Fatalf("expected invalid board, got %v", err)
	}
}
