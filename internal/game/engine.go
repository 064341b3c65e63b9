package game

// Outcome describes the board after one move.
type Outcome struct {
	Board    Board
	Next     Symbol
	Finished bool
	Result   Result
	Winner   Symbol
	Line     []Position
}

// Play validates and applies a move, then evaluates win and draw.
func Play(b Board, current, mover Symbol, pos Position) (Outcome, error) {
	if err := ValidateMove(b, current, mover, pos); err != nil {
		return Outcome{}, err
	}
	next := ApplyMove(b, mover, pos)
	out := Outcome{Board: next, Next: mover.Opponent()}
	if w, line := Winner(next); w != Empty {
		out.Finished = true
		out.Result = ResultWin
		out.Winner = w
		out.Line = line
		out.Next = Empty
		return out, nil
	}
	if next.Full() {
		out.Finished = true
		out.Result = ResultDraw
		out.Next = Empty
	}
	return out, nil
}
