package game

import (
	"encoding/json"
	"errors"
	"strings"
)

type Symbol byte

const (
	Empty Symbol = 0
	X     Symbol = 'X'
	O     Symbol = 'O'
)

func (s Symbol) String() string {
	if s == Empty {
		return ""
	}
	return string(rune(s))
}

// Opponent returns the symbol that moves after s.
func (s Symbol) Opponent() Symbol {
	switch s {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

func ParseSymbol(v string) (Symbol, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "X":
		return X, nil
	case "O":
		return O, nil
	case "":
		return Empty, nil
	default:
		return Empty, ErrInvalidSymbol
	}
}

type Position int

const (
	BoardSize          = 9
	Center    Position = 4
)

func (p Position) Valid() bool {
	return p >= 0 && p < BoardSize
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusExpired  Status = "expired"
)

type Result string

const (
	ResultNone        Result = ""
	ResultWin         Result = "win"
	ResultDraw        Result = "draw"
	ResultAbandonment Result = "abandonment"
	ResultExpired     Result = "expired"
)

// Board is indexed by Position, row-major from the top-left cell.
type Board [BoardSize]Symbol

var ErrInvalidSymbol = errors.New("invalid_symbol")
var ErrInvalidBoard = errors.New("invalid_board")

const emptyCell = '.'

// String encodes the board as nine characters, '.' marking empty cells.
func (b Board) String() string {
	var sb strings.Builder
	sb.Grow(BoardSize)
	for _, s := range b {
		if s == Empty {
			sb.WriteByte(emptyCell)
			continue
		}
		sb.WriteByte(byte(s))
	}
	return sb.String()
}

func ParseBoard(v string) (Board, error) {
	var b Board
	if len(v) != BoardSize {
		return b, ErrInvalidBoard
	}
	for i := 0; i < BoardSize; i++ {
		switch v[i] {
		case emptyCell:
		case 'X':
			b[i] = X
		case 'O':
			b[i] = O
		default:
			return Board{}, ErrInvalidBoard
		}
	}
	return b, nil
}

func (b Board) Count() int {
	n := 0
	for _, s := range b {
		if s != Empty {
			n++
		}
	}
	return n
}

func (b Board) Full() bool {
	return b.Count() == BoardSize
}

func (b Board) IsEmpty() bool {
	return b.Count() == 0
}

// Cells renders the board for clients, "" for empty cells.
func (b Board) Cells() []string {
	out := make([]string, BoardSize)
	for i, s := range b {
		out[i] = s.String()
	}
	return out
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Cells())
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var cells []string
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	if len(cells) != BoardSize {
		return ErrInvalidBoard
	}
	var out Board
	for i, c := range cells {
		s, err := ParseSymbol(c)
		if err != nil {
			return err
		}
		out[i] = s
	}
	*b = out
	return nil
}
