package match

import (
	"math/rand"
	"sort"
	"time"

	"github.com/cardtable/leastcount/pkg/game"

	fp "github.com/repeale/fp-go"
)

// Match aggregates rounds for one table: roster, seating, dealer,
// cumulative scores, eliminations and history. A single Match instance
// is owned by the dispatcher; nothing else mutates it.
type Match struct {
	Rules Rules

	Players map[PlayerID]*Player

	// Seating is the configured deal order, editable before Start.
	Seating []PlayerID
	Dealer  PlayerID

	Started bool
	RoundNo int
	Round   *Round

	Scores     map[PlayerID]int
	Eliminated map[PlayerID]bool
	History    []RoundRecord

	Over      bool
	Winner    PlayerID
	EndReason EndReason

	rng *rand.Rand
}

func New(rules Rules) *Match {
	return &Match{
		Rules:      rules,
		Players:    map[PlayerID]*Player{},
		Scores:     map[PlayerID]int{},
		Eliminated: map[PlayerID]bool{},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const maxNameLength = 18

// AddPlayer seats a newly connected player at the end of the order.
func (m *Match) AddPlayer(pid PlayerID, name string) {
	if _, ok := m.Players[pid]; ok {
		return
	}
	m.Players[pid] = &Player{ID: pid, Name: truncateName(name)}
	m.Seating = append(m.Seating, pid)
	if m.Dealer == 0 {
		m.Dealer = pid
	}
}

func (m *Match) Rename(pid PlayerID, name string) error {
	p, ok := m.Players[pid]
	if !ok {
		return ErrNoSuchPlayer
	}
	if name != "" {
		p.Name = truncateName(name)
	}
	return nil
}

func truncateName(name string) string {
	if len(name) > maxNameLength {
		return name[:maxNameLength]
	}
	return name
}

// Reorder replaces the seating order pre-match. The new order must be a
// permutation of the current roster.
func (m *Match) Reorder(order []PlayerID) error {
	if m.Started {
		return ErrRoundRunning
	}
	if len(order) != len(m.Seating) {
		return ErrBadSeating
	}
	seen := map[PlayerID]bool{}
	for _, pid := range order {
		if _, ok := m.Players[pid]; !ok || seen[pid] {
			return ErrBadSeating
		}
		seen[pid] = true
	}
	m.Seating = append([]PlayerID(nil), order...)
	return nil
}

// SetDealer picks the round-one dealer pre-match.
func (m *Match) SetDealer(pid PlayerID) error {
	if m.Started {
		return ErrRoundRunning
	}
	if _, ok := m.Players[pid]; !ok {
		return ErrNoSuchPlayer
	}
	m.Dealer = pid
	return nil
}

// Active returns the seated, non-eliminated players in seating order.
func (m *Match) Active() []PlayerID {
	return fp.Filter(func(pid PlayerID) bool { return !m.Eliminated[pid] })(m.Seating)
}

// Start resets cumulative state and deals the first round.
func (m *Match) Start() error {
	if m.Started && !m.Over {
		return ErrRoundRunning
	}
	m.Started = true
	m.Over = false
	m.Winner = 0
	m.EndReason = ""
	m.RoundNo = 0
	m.History = nil
	m.Eliminated = map[PlayerID]bool{}
	m.Scores = map[PlayerID]int{}
	for pid := range m.Players {
		m.Scores[pid] = 0
	}
	return m.StartRound()
}

// StartRound rotates the dealer, builds a shoe sized by head count,
// deals, sets aside the designated joker and seeds the discard pile.
func (m *Match) StartRound() error {
	if m.Over {
		return ErrMatchOver
	}
	if !m.Started {
		return ErrNotStarted
	}
	if m.Round != nil && !m.Round.Over {
		return ErrRoundRunning
	}

	active := m.Active()
	if len(active) == 0 {
		return ErrNoSuchPlayer
	}

	if m.RoundNo == 0 {
		m.Dealer = m.nextActiveFrom(m.Dealer, true)
	} else {
		m.Dealer = m.nextActiveFrom(m.Dealer, false)
	}
	m.RoundNo++

	order := m.orderAfter(m.Dealer, active)

	shoe := game.BuildShoe(m.rng, game.DecksFor(len(active)))

	r := &Round{
		Number:        m.RoundNo,
		Shoe:          shoe,
		Hands:         map[PlayerID][]game.Card{},
		Order:         order,
		phase:         map[PlayerID]Phase{},
		showAvailable: map[PlayerID]bool{},
		memo:          map[PlayerID]openDiscard{},
		reserved:      map[PlayerID]bool{},
	}

	// One face-down card designates the round's free rank.
	r.JokerCard = r.Shoe[len(r.Shoe)-1]
	r.Shoe = r.Shoe[:len(r.Shoe)-1]
	r.JokerRank = r.JokerCard.Face()

	for _, pid := range order {
		hand := make([]game.Card, 0, m.Rules.HandSize)
		for i := 0; i < m.Rules.HandSize; i++ {
			hand = append(hand, r.Shoe[len(r.Shoe)-1])
			r.Shoe = r.Shoe[:len(r.Shoe)-1]
		}
		game.SortHand(hand, r.JokerRank)
		r.Hands[pid] = hand
	}

	r.Discards = append(r.Discards, r.Shoe[len(r.Shoe)-1])
	r.Shoe = r.Shoe[:len(r.Shoe)-1]

	r.beginTurn()

	m.Round = r
	return nil
}

// nextActiveFrom walks the seating order from the given player until it
// finds someone still active; inclusive keeps the starting player when
// they qualify (round one's configured dealer).
func (m *Match) nextActiveFrom(from PlayerID, inclusive bool) PlayerID {
	active := m.Active()
	if len(active) == 0 {
		return 0
	}
	start := 0
	for i, pid := range m.Seating {
		if pid == from {
			start = i
			break
		}
	}
	if !inclusive {
		start++
	}
	for i := 0; i < len(m.Seating); i++ {
		pid := m.Seating[(start+i)%len(m.Seating)]
		if !m.Eliminated[pid] {
			return pid
		}
	}
	return active[0]
}

// orderAfter rotates the active list so play starts with the player
// immediately after the dealer.
func (m *Match) orderAfter(dealer PlayerID, active []PlayerID) []PlayerID {
	idx := 0
	for i, pid := range active {
		if pid == dealer {
			idx = i
			break
		}
	}
	order := make([]PlayerID, 0, len(active))
	for i := 1; i <= len(active); i++ {
		order = append(order, active[(idx+i)%len(active)])
	}
	return order
}

// ResolveShow scores the round when the turn holder declares. Legal
// only as the very first action of a turn, and only at or under the
// show limit; everything else leaves the state untouched.
func (m *Match) ResolveShow(pid PlayerID) (*RoundSummary, error) {
	if m.Over {
		return nil, ErrMatchOver
	}
	r := m.Round
	if r == nil {
		return nil, ErrNotStarted
	}
	if err := r.checkTurn(pid, PhaseDiscard); err != nil {
		return nil, err
	}
	if !r.ShowAvailable(pid) {
		return nil, ErrNotEligible
	}

	totals := map[PlayerID]int{}
	for _, p := range r.Order {
		totals[p] = game.HandTotal(r.Hands[p], r.JokerRank)
	}
	showTotal := totals[pid]
	if showTotal > m.Rules.ShowLimit {
		return nil, ErrShowTooHigh
	}

	others := map[PlayerID]int{}
	for p, tot := range totals {
		if p != pid {
			others[p] = tot
		}
	}

	var tiedOrUnder []PlayerID
	for p, tot := range others {
		if tot <= showTotal {
			tiedOrUnder = append(tiedOrUnder, p)
		}
	}
	sortPlayers(tiedOrUnder)

	points := map[PlayerID]int{}
	var outcome Outcome
	if len(tiedOrUnder) == 0 {
		// Clean show: the declarer rides free, everyone else pays.
		outcome = OutcomeWin
		points[pid] = 0
		for p, tot := range others {
			points[p] = tot
		}
	} else {
		// Someone tied or beat the declarer. Every player at the
		// minimum scores zero, not just one of them.
		outcome = OutcomePenalty
		points[pid] = m.Rules.ShowPenalty
		min := 0
		first := true
		for _, tot := range others {
			if first || tot < min {
				min = tot
				first = false
			}
		}
		for p, tot := range others {
			if tot == min {
				points[p] = 0
			} else {
				points[p] = tot
			}
		}
	}

	for p, pts := range points {
		m.Scores[p] += pts
	}

	var newlyOut []PlayerID
	for p, total := range m.Scores {
		if m.Eliminated[p] {
			continue
		}
		if total > m.Rules.MaxPointsOut {
			m.Eliminated[p] = true
			newlyOut = append(newlyOut, p)
		}
	}
	sortPlayers(newlyOut)

	m.History = append(m.History, RoundRecord{
		Number:     r.Number,
		Points:     points,
		ShowPlayer: pid,
		Outcome:    outcome,
	})

	r.Over = true

	summary := &RoundSummary{
		Number:      r.Number,
		JokerCard:   r.JokerCard,
		JokerRank:   r.JokerRank,
		ShowPlayer:  pid,
		ShowTotal:   showTotal,
		Totals:      totals,
		Points:      points,
		ScoresTotal: copyScores(m.Scores),
		Eliminated:  m.eliminatedList(),
		Outcome:     outcome,
		TiedOrUnder: tiedOrUnder,
		NewlyOut:    newlyOut,
	}

	if active := m.Active(); len(active) == 1 {
		m.Over = true
		m.Winner = active[0]
		m.EndReason = EndPoints
	}

	return summary, nil
}

// HandleExit processes a player leaving, whether by explicit exit or a
// dead socket. In the lobby it is a roster edit; mid-match the player
// is eliminated and spliced out of the turn order.
func (m *Match) HandleExit(pid PlayerID) {
	if _, ok := m.Players[pid]; !ok {
		return
	}

	if !m.Started || m.Over {
		m.removeSeat(pid)
		delete(m.Players, pid)
		return
	}

	m.Eliminated[pid] = true
	if m.Round != nil {
		m.Round.removeFromOrder(pid)
	}
	m.removeSeat(pid)
	delete(m.Players, pid)

	if active := m.Active(); len(active) == 1 && !m.Over {
		m.Over = true
		m.Winner = active[0]
		m.EndReason = EndPlayerExit
		if m.Round != nil {
			m.Round.Over = true
		}
	}
}

// Close force-ends the match on the host's order and returns the table
// to the lobby.
func (m *Match) Close() {
	if m.Started && !m.Over {
		m.Over = true
		m.EndReason = EndHostClosed
		if m.Round != nil {
			m.Round.Over = true
		}
	}
	m.Started = false
	m.Round = nil
}

func (m *Match) removeSeat(pid PlayerID) {
	m.Seating = fp.Filter(func(p PlayerID) bool { return p != pid })(m.Seating)
}

func (m *Match) eliminatedList() []PlayerID {
	var out []PlayerID
	for pid, gone := range m.Eliminated {
		if gone {
			out = append(out, pid)
		}
	}
	sortPlayers(out)
	return out
}

// ScoresSnapshot returns a copy of the cumulative score table.
func (m *Match) ScoresSnapshot() map[PlayerID]int {
	return copyScores(m.Scores)
}

func copyScores(scores map[PlayerID]int) map[PlayerID]int {
	out := make(map[PlayerID]int, len(scores))
	for pid, s := range scores {
		out[pid] = s
	}
	return out
}

func sortPlayers(pids []PlayerID) {
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
}
