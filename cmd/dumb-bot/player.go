package main

import (
	"encoding/json"
	"strconv"

	"board-arena/internal/coordinator"
	"board-arena/internal/game"

	"github.com/rs/zerolog/log"
)

// player turns server frames into replies. It queues, acks every start and
// always takes the first legal cell.
type player struct {
	betCC    int64
	requeue  bool
	maxGames int

	userID string
	symbol string
	gameID string
	played int
	seq    int
	done   bool
}

type frame struct {
	Type      string                `json:"type"`
	RequestID string                `json:"request_id"`
	OK        bool                  `json:"ok"`
	Error     string                `json:"error"`
	Data      json.RawMessage       `json:"data"`
	MessageID string                `json:"message_id"`
	RoomID    string                `json:"room_id"`
	GameID    string                `json:"game_id"`
	PlayerX   coordinator.PlayerRef `json:"player_x"`
	PlayerO   coordinator.PlayerRef `json:"player_o"`
	Current   string                `json:"current_symbol"`
	Board     game.Board            `json:"board"`
	Result    string                `json:"result"`
	WinnerID  string                `json:"winner_id"`
}

func (p *player) request(in coordinator.Inbound) []byte {
	p.seq++
	in.RequestID = "bot-" + strconv.Itoa(p.seq)
	b, _ := json.Marshal(in)
	return b
}

func (p *player) hello(token string) []byte {
	return p.request(coordinator.Inbound{Type: coordinator.MsgAuth, Token: token})
}

func (p *player) handle(raw []byte) [][]byte {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Warn().Err(err).Msg("bot_bad_frame")
		return nil
	}
	switch f.Type {
	case coordinator.MsgAuth + "_result":
		if !f.OK {
			log.Error().Str("error", f.Error).Msg("bot_auth_failed")
			p.done = true
			return nil
		}
		var data struct {
			UserID string `json:"user_id"`
		}
		_ = json.Unmarshal(f.Data, &data)
		p.userID = data.UserID
		log.Info().Str("user_id", p.userID).Msg("bot_authenticated")
		return [][]byte{p.queue()}
	case coordinator.MsgQueueJoin + "_result":
		if !f.OK {
			log.Warn().Str("error", f.Error).Msg("bot_queue_rejected")
		}
	case coordinator.EvtManualStartRequired:
		return [][]byte{p.request(coordinator.Inbound{Type: coordinator.MsgStartGameRequest, RoomID: f.RoomID})}
	case coordinator.EvtGameStarted:
		var out [][]byte
		if f.MessageID != "" {
			out = append(out, p.request(coordinator.Inbound{Type: coordinator.MsgGameStartedAck, MessageID: f.MessageID}))
		}
		p.gameID = f.GameID
		p.symbol = ""
		switch p.userID {
		case f.PlayerX.UserID:
			p.symbol = game.X.String()
		case f.PlayerO.UserID:
			p.symbol = game.O.String()
		}
		if mv := p.maybeMove(f); mv != nil {
			out = append(out, mv)
		}
		return out
	case coordinator.EvtMove:
		if mv := p.maybeMove(f); mv != nil {
			return [][]byte{mv}
		}
	case coordinator.EvtGameOver:
		if f.GameID != p.gameID {
			return nil
		}
		p.played++
		p.gameID = ""
		log.Info().Str("game_id", f.GameID).Str("result", f.Result).Bool("won", f.WinnerID == p.userID).Int("played", p.played).Msg("bot_game_over")
		if !p.requeue || (p.maxGames > 0 && p.played >= p.maxGames) {
			p.done = true
			return nil
		}
		return [][]byte{p.queue()}
	}
	return nil
}

func (p *player) queue() []byte {
	return p.request(coordinator.Inbound{Type: coordinator.MsgQueueJoin, BetCC: p.betCC})
}

func (p *player) maybeMove(f frame) []byte {
	if f.GameID != p.gameID || p.symbol == "" || f.Current != p.symbol {
		return nil
	}
	pos, ok := game.FirstLegal(f.Board)
	if !ok {
		return nil
	}
	cell := int(pos)
	return p.request(coordinator.Inbound{Type: coordinator.MsgMove, GameID: f.GameID, Position: &cell})
}
