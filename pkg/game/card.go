package game

import (
	"github.com/rs/zerolog/log"
)

// A Card is an opaque token of the form <face><suit> ("7H", "10S", "QD")
// or one of the two printed jokers.
type Card string

const (
	JokerBlack Card = "ZB"
	JokerRed   Card = "ZR"
)

var faces = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

var suits = []string{"S", "C", "D", "H"}

// Face returns the rank portion of a card's token. Printed jokers are
// their own face, so a designated joker that happens to be ZB or ZR
// matches only the same color.
func (c Card) Face() string {
	if c.IsJoker() || len(c) < 2 {
		return string(c)
	}
	return string(c[:len(c)-1])
}

// Suit returns the trailing suit letter, or "" for jokers.
func (c Card) Suit() string {
	if c.IsJoker() || len(c) < 2 {
		return ""
	}
	return string(c[len(c)-1])
}

func (c Card) IsJoker() bool {
	return c == JokerBlack || c == JokerRed
}

// Valid reports whether the token names a card that can exist in the shoe.
func (c Card) Valid() bool {
	if c.IsJoker() {
		return true
	}
	face, suit := c.Face(), c.Suit()
	if !contains(suits, suit) {
		return false
	}
	return contains(faces, face)
}

// Points computes a card's value for the round whose designated joker
// rank is jokerRank: jokers and joker-rank cards are free, aces are 1,
// court cards are 10, everything else is its face value.
func (c Card) Points(jokerRank string) int {
	if c.IsJoker() || (jokerRank != "" && c.Face() == jokerRank) {
		return 0
	}
	switch face := c.Face(); face {
	case "A":
		return 1
	case "J", "Q", "K":
		return 10
	default:
		if v, ok := faceValues[face]; ok {
			return v
		}
	}
	log.Warn().Str("card", string(c)).Msg("scoring unknown card token as zero")
	return 0
}

var faceValues = map[string]int{
	"2": 2, "3": 3, "4": 4, "5": 5, "6": 6,
	"7": 7, "8": 8, "9": 9, "10": 10,
}

var faceRanks = map[string]int{
	"A": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
	"8": 8, "9": 9, "10": 10, "J": 11, "Q": 12, "K": 13,
}

var suitOrder = map[string]int{"S": 0, "C": 1, "D": 2, "H": 3}

// SortKey orders a hand for display: free cards first, then ascending
// face rank, suits S < C < D < H. Display only; game logic never depends
// on hand order.
func (c Card) SortKey(jokerRank string) (int, int) {
	if c.IsJoker() || (jokerRank != "" && c.Face() == jokerRank) {
		return 0, 0
	}
	rank, ok := faceRanks[c.Face()]
	if !ok {
		rank = 99
	}
	suit, ok := suitOrder[c.Suit()]
	if !ok {
		suit = 9
	}
	return rank, suit
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
