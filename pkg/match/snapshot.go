package match

import (
	"github.com/cardtable/leastcount/pkg/game"

	fp "github.com/repeale/fp-go"
)

// State is the full snapshot broadcast after every mutation. Clients
// render purely from this plus their own private hand; they hold no
// authoritative state. Hand contents never appear here, only counts.
type State struct {
	DiscardTop  *game.Card `json:"discard_top"`
	Turn        PlayerID   `json:"turn"`
	TurnPhase   Phase      `json:"turn_phase"`
	ShowEnabled bool       `json:"show_enabled"`
	OpenDiscard *game.Card `json:"open_discard"`
	DeckCount   int        `json:"deck_count"`

	Players    []PlayerID          `json:"players"`
	HandCounts map[PlayerID]int    `json:"hand_counts"`
	Names      map[PlayerID]string `json:"names"`

	ScoresTotal map[PlayerID]int `json:"scores_total"`
	Eliminated  []PlayerID       `json:"eliminated"`
	History     []RoundRecord    `json:"history"`

	RoundNo   int        `json:"round_no"`
	JokerCard *game.Card `json:"joker_card"`
	JokerRank string     `json:"joker_rank"`
	RoundOver bool       `json:"round_over"`

	MatchOver bool      `json:"match_over"`
	Winner    PlayerID  `json:"winner,omitempty"`
	EndReason EndReason `json:"end_reason,omitempty"`

	MaxPointsOut int `json:"max_points_out"`
}

const historyWindow = 10

// Snapshot assembles the state message broadcast to every client.
func (m *Match) Snapshot() State {
	s := State{
		TurnPhase:    PhaseDiscard,
		Names:        map[PlayerID]string{},
		ScoresTotal:  copyScores(m.Scores),
		Eliminated:   m.eliminatedList(),
		RoundNo:      m.RoundNo,
		MatchOver:    m.Over,
		Winner:       m.Winner,
		EndReason:    m.EndReason,
		MaxPointsOut: m.Rules.MaxPointsOut,
	}

	for pid, p := range m.Players {
		s.Names[pid] = p.Name
	}

	if n := len(m.History); n > 0 {
		start := 0
		if n > historyWindow {
			start = n - historyWindow
		}
		s.History = m.History[start:]
	}

	r := m.Round
	if r == nil {
		s.Players = append([]PlayerID(nil), m.Seating...)
		return s
	}

	s.Players = append([]PlayerID(nil), r.Order...)
	s.DeckCount = len(r.Shoe)
	s.RoundOver = r.Over
	s.JokerRank = r.JokerRank
	if r.JokerCard != "" {
		joker := r.JokerCard
		s.JokerCard = &joker
	}
	if top, ok := r.top(); ok {
		s.DiscardTop = &top
	}

	counts := fp.Map(func(pid PlayerID) int { return len(r.Hands[pid]) })(r.Order)
	s.HandCounts = map[PlayerID]int{}
	for i, pid := range r.Order {
		s.HandCounts[pid] = counts[i]
	}

	if holder := r.CurrentTurn(); holder != 0 {
		s.Turn = holder
		s.TurnPhase = r.Phase(holder)
		s.ShowEnabled = r.ShowAvailable(holder)
		if card, ok := r.OpenDiscard(holder); ok {
			open := card
			s.OpenDiscard = &open
		}
	}

	return s
}
