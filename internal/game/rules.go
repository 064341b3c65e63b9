package game

import "errors"

var (
	ErrInvalidTurn     = errors.New("invalid_turn")
	ErrInvalidPosition = errors.New("invalid_position")
	ErrNotAParticipant = errors.New("not_a_participant")
	ErrGameNotActive   = errors.New("game_not_active")
)

var winningLines = [8][3]Position{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// ValidateMove checks that mover may place at pos. mover is Empty when the
// caller holds neither seat.
func ValidateMove(b Board, current, mover Symbol, pos Position) error {
	if mover != X && mover != O {
		return ErrNotAParticipant
	}
	if mover != current {
		return ErrInvalidTurn
	}
	if !pos.Valid() {
		return ErrInvalidPosition
	}
	if b[pos] != Empty {
		return ErrInvalidPosition
	}
	if pos == Center && b.IsEmpty() {
		return ErrInvalidPosition
	}
	return nil
}

// ApplyMove returns the board after sym takes pos. It does not validate.
func ApplyMove(b Board, sym Symbol, pos Position) Board {
	b[pos] = sym
	return b
}

// Winner reports the symbol holding a full line and that line.
func Winner(b Board) (Symbol, []Position) {
	for _, line := range winningLines {
		s := b[line[0]]
		if s != Empty && b[line[1]] == s && b[line[2]] == s {
			return s, []Position{line[0], line[1], line[2]}
		}
	}
	return Empty, nil
}

func LegalMoves(b Board) []Position {
	out := make([]Position, 0, BoardSize)
	first := b.IsEmpty()
	for i := 0; i < BoardSize; i++ {
		p := Position(i)
		if b[p] != Empty || (first && p == Center) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FirstLegal is the auto-play policy: the lowest free position that passes
// validation.
func FirstLegal(b Board) (Position, bool) {
	moves := LegalMoves(b)
	if len(moves) == 0 {
		return 0, false
	}
	return moves[0], true
}

func WinningLines() [][]Position {
	out := make([][]Position, 0, len(winningLines))
	for _, l := range winningLines {
		out = append(out, []Position{l[0], l[1], l[2]})
	}
	return out
}
