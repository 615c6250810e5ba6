package match

import (
	"testing"

	"github.com/cardtable/leastcount/pkg/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRound(t *testing.T, order []PlayerID, hands map[PlayerID][]game.Card, shoe, discards []game.Card) *Round {
	t.Helper()
	r := &Round{
		Number:        1,
		JokerCard:     "ZB",
		JokerRank:     "ZB",
		Shoe:          shoe,
		Discards:      discards,
		Hands:         hands,
		Order:         order,
		phase:         map[PlayerID]Phase{},
		showAvailable: map[PlayerID]bool{},
		memo:          map[PlayerID]openDiscard{},
		reserved:      map[PlayerID]bool{},
	}
	require.NotEmpty(t, order)
	r.beginTurn()
	return r
}

func TestGroupedDiscard(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"7H", "7S", "3C"},
			2: {"4D"},
		},
		[]game.Card{"KD"},
		[]game.Card{"9H"},
	)

	require.NoError(t, r.ApplyDiscard(1, "7H"))

	// Both sevens leave the hand together.
	assert.Equal(t, []game.Card{"3C"}, r.Hands[1])
	assert.Equal(t, []game.Card{"9H", "7H", "7S"}, r.Discards)
	assert.Equal(t, PhaseDraw, r.Phase(1))
	assert.Equal(t, PlayerID(1), r.CurrentTurn())
	assert.False(t, r.ShowAvailable(1))
}

func TestDiscardChainException(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"7H", "4C"},
			2: {"4D"},
		},
		[]game.Card{"KD"},
		[]game.Card{"7D"},
	)

	require.NoError(t, r.ApplyDiscard(1, "7H"))

	// Matching the open face ends the turn with no draw at all.
	assert.Equal(t, PlayerID(2), r.CurrentTurn())
	assert.Equal(t, PhaseDiscard, r.Phase(1))
	assert.Equal(t, PhaseDiscard, r.Phase(2))
	assert.True(t, r.ShowAvailable(2))
	assert.Equal(t, []game.Card{"4C"}, r.Hands[1])
}

func TestOpenDiscardMemo(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"3C", "5D"},
			2: {"4D"},
		},
		[]game.Card{"KD"},
		[]game.Card{"9H"},
	)

	open, ok := r.OpenDiscard(1)
	require.True(t, ok)
	assert.Equal(t, game.Card("9H"), open)

	require.NoError(t, r.ApplyDiscard(1, "3C"))
	require.Equal(t, PhaseDraw, r.Phase(1))

	// The physical top is now the player's own 3C, but drawing from
	// the pile must yield the card that was open at turn start.
	assert.Equal(t, game.Card("3C"), r.Discards[len(r.Discards)-1])
	require.NoError(t, r.ApplyDrawDiscard(1))

	assert.Contains(t, r.Hands[1], game.Card("9H"))
	assert.NotContains(t, r.Hands[1], game.Card("3C"))
	assert.Equal(t, []game.Card{"3C"}, r.Discards)
	assert.Equal(t, PlayerID(2), r.CurrentTurn())
}

func TestReserveDeliversAfterDiscard(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"3C", "5D"},
			2: {"4D"},
		},
		[]game.Card{"KD"},
		[]game.Card{"9H"},
	)

	require.NoError(t, r.Reserve(1))
	require.NoError(t, r.ApplyDiscard(1, "5D"))

	// Reserved pickup happens inside the discard; no draw phase.
	assert.Contains(t, r.Hands[1], game.Card("9H"))
	assert.Equal(t, []game.Card{"5D"}, r.Discards)
	assert.Equal(t, PlayerID(2), r.CurrentTurn())
}

func TestDrawDeck(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"3C", "5D"},
			2: {"4D"},
		},
		[]game.Card{"KD", "2H"},
		[]game.Card{"9H"},
	)

	require.NoError(t, r.ApplyDiscard(1, "3C"))
	require.NoError(t, r.ApplyDrawDeck(1))

	assert.Contains(t, r.Hands[1], game.Card("2H"))
	assert.Equal(t, []game.Card{"KD"}, r.Shoe)
	assert.Equal(t, PlayerID(2), r.CurrentTurn())
	assert.True(t, r.ShowAvailable(2))
	assert.False(t, r.ShowAvailable(1))
}

func TestTurnPreconditions(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"3C"},
			2: {"4D"},
		},
		[]game.Card{"KD"},
		[]game.Card{"9H"},
	)

	// Not the holder.
	assert.ErrorIs(t, r.ApplyDiscard(2, "4D"), ErrNotYourTurn)
	assert.ErrorIs(t, r.ApplyDrawDeck(2), ErrNotYourTurn)

	// Wrong phase.
	assert.ErrorIs(t, r.ApplyDrawDeck(1), ErrWrongPhase)
	assert.ErrorIs(t, r.ApplyDrawDiscard(1), ErrWrongPhase)

	// Card not held.
	assert.ErrorIs(t, r.ApplyDiscard(1, "KH"), ErrCardNotHeld)

	// Nothing above may have mutated anything.
	assert.Equal(t, []game.Card{"3C"}, r.Hands[1])
	assert.Equal(t, []game.Card{"4D"}, r.Hands[2])
	assert.Equal(t, []game.Card{"9H"}, r.Discards)
	assert.Equal(t, PlayerID(1), r.CurrentTurn())

	r.Over = true
	assert.ErrorIs(t, r.ApplyDiscard(1, "3C"), ErrRoundOver)
}

func TestEmptyShoeDraw(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"3C", "5D"},
			2: {"4D"},
		},
		nil,
		[]game.Card{"9H"},
	)

	require.NoError(t, r.ApplyDiscard(1, "3C"))
	assert.ErrorIs(t, r.ApplyDrawDeck(1), ErrEmptyShoe)
	// Still this player's draw; the discard route remains open.
	require.NoError(t, r.ApplyDrawDiscard(1))
	assert.Equal(t, PlayerID(2), r.CurrentTurn())
}

func TestReserveRequiresOpenCard(t *testing.T) {
	r := testRound(t,
		[]PlayerID{1, 2},
		map[PlayerID][]game.Card{
			1: {"3C"},
			2: {"4D"},
		},
		[]game.Card{"KD"},
		nil,
	)

	assert.ErrorIs(t, r.Reserve(1), ErrEmptyPile)
	assert.ErrorIs(t, r.Reserve(2), ErrNotYourTurn)
}

func TestRemoveFromOrder(t *testing.T) {
	t.Run("before current", func(t *testing.T) {
		r := testRound(t,
			[]PlayerID{1, 2, 3},
			map[PlayerID][]game.Card{1: {"3C"}, 2: {"4D"}, 3: {"5H"}},
			[]game.Card{"KD"}, []game.Card{"9H"},
		)
		require.NoError(t, r.ApplyDiscard(1, "3C"))
		require.NoError(t, r.ApplyDrawDeck(1))
		require.Equal(t, PlayerID(2), r.CurrentTurn())

		r.removeFromOrder(1)
		assert.Equal(t, []PlayerID{2, 3}, r.Order)
		assert.Equal(t, PlayerID(2), r.CurrentTurn())
	})

	t.Run("current holder leaves", func(t *testing.T) {
		r := testRound(t,
			[]PlayerID{1, 2, 3},
			map[PlayerID][]game.Card{1: {"3C"}, 2: {"4D"}, 3: {"5H"}},
			[]game.Card{"KD"}, []game.Card{"9H"},
		)
		r.removeFromOrder(1)
		assert.Equal(t, []PlayerID{2, 3}, r.Order)
		assert.Equal(t, PlayerID(2), r.CurrentTurn())
		assert.True(t, r.ShowAvailable(2))
	})

	t.Run("last in order leaves on their turn", func(t *testing.T) {
		r := testRound(t,
			[]PlayerID{1, 2},
			map[PlayerID][]game.Card{1: {"3C"}, 2: {"4D"}},
			[]game.Card{"KD", "2H"}, []game.Card{"9H"},
		)
		require.NoError(t, r.ApplyDiscard(1, "3C"))
		require.NoError(t, r.ApplyDrawDeck(1))
		require.Equal(t, PlayerID(2), r.CurrentTurn())

		r.removeFromOrder(2)
		assert.Equal(t, []PlayerID{1}, r.Order)
		assert.Equal(t, PlayerID(1), r.CurrentTurn())
	})
}
