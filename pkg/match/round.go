package match

import (
	"github.com/cardtable/leastcount/pkg/game"
)

// openDiscard remembers the discard-pile card that was on top when a
// player's turn began. The index is where the card sat at capture time;
// it can go stale once the player discards on top of it, so consumers
// fall back to a top-down token scan.
type openDiscard struct {
	idx  int
	card game.Card
}

// Round owns one deal: the shoe, the pile, the hands and the turn
// machine. It is mutated only by the dispatcher goroutine.
type Round struct {
	Number    int
	JokerCard game.Card
	JokerRank string

	Shoe     []game.Card
	Discards []game.Card
	Hands    map[PlayerID][]game.Card

	// Order is fixed for the round's duration; exits splice it.
	Order   []PlayerID
	turnIdx int
	phase   map[PlayerID]Phase

	// showAvailable is true only between the start of a player's turn
	// and their first action.
	showAvailable map[PlayerID]bool
	memo          map[PlayerID]openDiscard
	reserved      map[PlayerID]bool

	Over bool
}

// CurrentTurn returns the turn holder, or 0 when the order is empty.
func (r *Round) CurrentTurn() PlayerID {
	if len(r.Order) == 0 {
		return 0
	}
	return r.Order[r.turnIdx]
}

// Phase returns the given player's turn phase.
func (r *Round) Phase(pid PlayerID) Phase {
	if p, ok := r.phase[pid]; ok {
		return p
	}
	return PhaseDiscard
}

func (r *Round) ShowAvailable(pid PlayerID) bool {
	return r.showAvailable[pid]
}

// OpenDiscard returns the card the player may still pick up this turn:
// the pile top as it stood when their turn began.
func (r *Round) OpenDiscard(pid PlayerID) (game.Card, bool) {
	m, ok := r.memo[pid]
	return m.card, ok
}

func (r *Round) top() (game.Card, bool) {
	if len(r.Discards) == 0 {
		return "", false
	}
	return r.Discards[len(r.Discards)-1], true
}

func (r *Round) holds(pid PlayerID, card game.Card) bool {
	for _, c := range r.Hands[pid] {
		if c == card {
			return true
		}
	}
	return false
}

func (r *Round) checkTurn(pid PlayerID, phase Phase) error {
	if r.Over {
		return ErrRoundOver
	}
	if r.CurrentTurn() != pid {
		return ErrNotYourTurn
	}
	if r.Phase(pid) != phase {
		return ErrWrongPhase
	}
	return nil
}

// Reserve marks the open discard for automatic pickup once the player
// has discarded, so their own discard landing on top does not bury it.
func (r *Round) Reserve(pid PlayerID) error {
	if err := r.checkTurn(pid, PhaseDiscard); err != nil {
		return err
	}
	if _, ok := r.memo[pid]; !ok {
		return ErrEmptyPile
	}
	r.reserved[pid] = true
	return nil
}

// ApplyDiscard removes every hand card sharing the named card's face
// (grouped-discard rule) and appends them to the pile in hand order.
// Three exits, checked in order:
//
//  1. discard-chain exception: the discarded face matches the pile top
//     as it stood before this discard, so the turn ends with no draw;
//  2. the player reserved the open discard, which is delivered now and
//     the turn ends;
//  3. the turn moves to the draw phase.
func (r *Round) ApplyDiscard(pid PlayerID, card game.Card) error {
	if err := r.checkTurn(pid, PhaseDiscard); err != nil {
		return err
	}
	if !r.holds(pid, card) {
		return ErrCardNotHeld
	}

	prevTop, hadTop := r.top()
	face := card.Face()

	hand := r.Hands[pid]
	kept := hand[:0:0]
	var removed []game.Card
	for _, c := range hand {
		if c.Face() == face {
			removed = append(removed, c)
		} else {
			kept = append(kept, c)
		}
	}
	r.Hands[pid] = kept
	game.SortHand(r.Hands[pid], r.JokerRank)
	r.Discards = append(r.Discards, removed...)
	r.showAvailable[pid] = false

	if hadTop && prevTop.Face() == face {
		r.nextTurn()
		return nil
	}

	if r.reserved[pid] {
		if m, ok := r.memo[pid]; ok {
			r.takeFromPile(pid, m)
			r.nextTurn()
			return nil
		}
	}

	r.phase[pid] = PhaseDraw
	return nil
}

// ApplyDrawDeck draws from the shoe and ends the turn.
func (r *Round) ApplyDrawDeck(pid PlayerID) error {
	if err := r.checkTurn(pid, PhaseDraw); err != nil {
		return err
	}
	if len(r.Shoe) == 0 {
		return ErrEmptyShoe
	}
	card := r.Shoe[len(r.Shoe)-1]
	r.Shoe = r.Shoe[:len(r.Shoe)-1]
	r.Hands[pid] = append(r.Hands[pid], card)
	game.SortHand(r.Hands[pid], r.JokerRank)
	r.phase[pid] = PhaseDiscard
	r.nextTurn()
	return nil
}

// ApplyDrawDiscard takes the card that was open when the player's turn
// began, not necessarily the current pile top; the player's own discard
// may be sitting above it by now.
func (r *Round) ApplyDrawDiscard(pid PlayerID) error {
	if err := r.checkTurn(pid, PhaseDraw); err != nil {
		return err
	}
	if m, ok := r.memo[pid]; ok {
		r.takeFromPile(pid, m)
	} else {
		top, ok := r.top()
		if !ok {
			return ErrEmptyPile
		}
		r.Discards = r.Discards[:len(r.Discards)-1]
		r.Hands[pid] = append(r.Hands[pid], top)
		game.SortHand(r.Hands[pid], r.JokerRank)
	}
	r.phase[pid] = PhaseDiscard
	r.nextTurn()
	return nil
}

// takeFromPile moves the remembered card into pid's hand. The recorded
// index wins when it still points at the right token; otherwise the
// topmost matching token goes, and as a last resort the current top.
func (r *Round) takeFromPile(pid PlayerID, m openDiscard) {
	removed := false
	if m.idx >= 0 && m.idx < len(r.Discards) && r.Discards[m.idx] == m.card {
		r.Discards = append(r.Discards[:m.idx], r.Discards[m.idx+1:]...)
		removed = true
	} else {
		for j := len(r.Discards) - 1; j >= 0; j-- {
			if r.Discards[j] == m.card {
				r.Discards = append(r.Discards[:j], r.Discards[j+1:]...)
				removed = true
				break
			}
		}
	}
	card := m.card
	if !removed {
		top, ok := r.top()
		if !ok {
			return
		}
		r.Discards = r.Discards[:len(r.Discards)-1]
		card = top
	}
	r.Hands[pid] = append(r.Hands[pid], card)
	game.SortHand(r.Hands[pid], r.JokerRank)
}

// nextTurn advances to the next player in order, grants them their
// turn-start show window and captures their open-discard memo.
func (r *Round) nextTurn() {
	if len(r.Order) == 0 {
		return
	}
	prev := r.Order[r.turnIdx]
	delete(r.memo, prev)
	delete(r.reserved, prev)
	r.turnIdx = (r.turnIdx + 1) % len(r.Order)
	r.beginTurn()
}

// beginTurn sets up the holder at r.turnIdx.
func (r *Round) beginTurn() {
	pid := r.Order[r.turnIdx]
	r.phase[pid] = PhaseDiscard
	r.showAvailable[pid] = true
	if top, ok := r.top(); ok {
		r.memo[pid] = openDiscard{idx: len(r.Discards) - 1, card: top}
	} else {
		delete(r.memo, pid)
	}
}

// removeFromOrder splices an exiting player out of the turn order,
// keeping the turn index pointed at the same player when possible. When
// the exiting player held the turn, the turn passes to whoever was next.
func (r *Round) removeFromOrder(pid PlayerID) {
	idx := -1
	for i, p := range r.Order {
		if p == pid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	hadTurn := idx == r.turnIdx
	r.Order = append(r.Order[:idx], r.Order[idx+1:]...)
	delete(r.memo, pid)
	delete(r.reserved, pid)
	delete(r.showAvailable, pid)
	if len(r.Order) == 0 {
		r.turnIdx = 0
		return
	}
	if idx < r.turnIdx {
		r.turnIdx--
	} else if hadTurn {
		r.turnIdx = r.turnIdx % len(r.Order)
		if !r.Over {
			r.beginTurn()
		}
	}
}
