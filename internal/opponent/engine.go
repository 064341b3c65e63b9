package opponent

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"board-arena/internal/game"
)

const (
	Easy   = "easy"
	Medium = "medium"
	Hard   = "hard"
)

var ErrNoMoves = errors.New("no_legal_moves")

// Engine picks moves for synthetic opponents.
//
//	easy:   random legal move
//	medium: win, else block, else random
//	hard:   full minimax
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New() *Engine {
	return NewWithSeed(time.Now().UnixNano())
}

func NewWithSeed(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

func NormalizeDifficulty(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	default:
		return Medium
	}
}

func (e *Engine) ChooseMove(b game.Board, me game.Symbol, difficulty string) (game.Position, error) {
	moves := game.LegalMoves(b)
	if len(moves) == 0 {
		return 0, ErrNoMoves
	}
	switch NormalizeDifficulty(difficulty) {
	case Easy:
		return e.pick(moves), nil
	case Hard:
		return bestMove(b, me, moves), nil
	default:
		if p, ok := completing(b, me, moves); ok {
			return p, nil
		}
		if p, ok := completing(b, me.Opponent(), moves); ok {
			return p, nil
		}
		return e.pick(moves), nil
	}
}

func (e *Engine) pick(moves []game.Position) game.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return moves[e.rng.Intn(len(moves))]
}

// completing returns a move that gives s a full line.
func completing(b game.Board, s game.Symbol, moves []game.Position) (game.Position, bool) {
	for _, p := range moves {
		if w, _ := game.Winner(game.ApplyMove(b, s, p)); w == s {
			return p, true
		}
	}
	return 0, false
}

func bestMove(b game.Board, me game.Symbol, moves []game.Position) game.Position {
	best := moves[0]
	bestScore := -2
	for _, p := range moves {
		score := -negamax(game.ApplyMove(b, me, p), me.Opponent())
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best
}

// negamax scores the board from toMove's point of view: 1 win, 0 draw, -1 loss.
func negamax(b game.Board, toMove game.Symbol) int {
	if w, _ := game.Winner(b); w != game.Empty {
		if w == toMove {
			return 1
		}
		return -1
	}
	moves := game.LegalMoves(b)
	if len(moves) == 0 {
		return 0
	}
	best := -2
	for _, p := range moves {
		if s := -negamax(game.ApplyMove(b, toMove, p), toMove.Opponent()); s > best {
			best = s
			if best == 1 {
				break
			}
		}
	}
	return best
}
