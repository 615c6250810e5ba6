package game

import (
	"math/rand"
	"sort"
)

// DeckSize counts the cards in one physical deck, printed jokers included.
const DeckSize = 54

// DecksFor sizes the shoe by head count so a table never runs dry
// mid-round.
func DecksFor(players int) int {
	switch {
	case players < 5:
		return 2
	case players <= 6:
		return 3
	default:
		return 4
	}
}

// BuildShoe returns numDecks shuffled copies of a 52-card deck plus two
// printed jokers per copy. Cards are drawn from the end.
func BuildShoe(rng *rand.Rand, numDecks int) []Card {
	shoe := make([]Card, 0, numDecks*DeckSize)
	for i := 0; i < numDecks; i++ {
		for _, face := range faces {
			for _, suit := range suits {
				shoe = append(shoe, Card(face+suit))
			}
		}
		shoe = append(shoe, JokerBlack, JokerRed)
	}
	rng.Shuffle(len(shoe), func(i, j int) {
		shoe[i], shoe[j] = shoe[j], shoe[i]
	})
	return shoe
}

// HandTotal sums card points for the round's designated joker rank.
func HandTotal(hand []Card, jokerRank string) int {
	total := 0
	for _, c := range hand {
		total += c.Points(jokerRank)
	}
	return total
}

// SortHand orders a hand in place for display.
func SortHand(hand []Card, jokerRank string) {
	sort.SliceStable(hand, func(i, j int) bool {
		ri, si := hand[i].SortKey(jokerRank)
		rj, sj := hand[j].SortKey(jokerRank)
		if ri != rj {
			return ri < rj
		}
		return si < sj
	})
}
