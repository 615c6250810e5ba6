package match

import (
	"errors"

	"github.com/cardtable/leastcount/pkg/game"
)

// A PlayerID is stable for the lifetime of a player's connection.
// The local host player is always 1; remote players count up from 2.
type PlayerID int

const HostID PlayerID = 1

// Phase of the current turn. A turn is discard-then-draw.
type Phase string

const (
	PhaseDiscard Phase = "discard"
	PhaseDraw    Phase = "draw"
)

type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomePenalty Outcome = "penalty"
)

// EndReason records why a match ended.
type EndReason string

const (
	EndPoints     EndReason = "points"
	EndPlayerExit EndReason = "player_exit"
	EndHostClosed EndReason = "host_closed"
)

// Rules are fixed at lobby setup and held only in memory.
type Rules struct {
	HandSize     int `json:"hand_size" yaml:"hand_size"`
	ShowLimit    int `json:"show_limit" yaml:"show_limit"`
	ShowPenalty  int `json:"show_penalty" yaml:"show_penalty"`
	MaxPointsOut int `json:"max_points_out" yaml:"max_points_out"`
}

func DefaultRules() Rules {
	return Rules{
		HandSize:     7,
		ShowLimit:    8,
		ShowPenalty:  40,
		MaxPointsOut: 200,
	}
}

type Player struct {
	ID   PlayerID `json:"id"`
	Name string   `json:"name"`
}

// Illegal actions are silent no-ops on the wire; these sentinels exist
// so the dispatcher can log them and tests can tell them apart.
var (
	ErrMatchOver    = errors.New("match is over")
	ErrNotStarted   = errors.New("match has not started")
	ErrRoundOver    = errors.New("round is over")
	ErrRoundRunning = errors.New("round still in progress")
	ErrNotYourTurn  = errors.New("not this player's turn")
	ErrWrongPhase   = errors.New("action not legal in this phase")
	ErrCardNotHeld  = errors.New("card is not in hand")
	ErrEmptyShoe    = errors.New("shoe is empty")
	ErrEmptyPile    = errors.New("discard pile is empty")
	ErrNotEligible  = errors.New("show is no longer available this turn")
	ErrShowTooHigh  = errors.New("hand total exceeds the show limit")
	ErrNoSuchPlayer = errors.New("unknown player")
	ErrBadSeating   = errors.New("seating order must be a permutation of the roster")
)

// RoundRecord is the per-round history entry kept on the match.
type RoundRecord struct {
	Number     int              `json:"round_no"`
	Points     map[PlayerID]int `json:"round_points"`
	ShowPlayer PlayerID         `json:"show_pid"`
	Outcome    Outcome          `json:"outcome"`
}

// RoundSummary is the payload of the round_end broadcast.
type RoundSummary struct {
	Number      int              `json:"round_no"`
	JokerCard   game.Card        `json:"joker_card"`
	JokerRank   string           `json:"joker_rank"`
	ShowPlayer  PlayerID         `json:"show_pid"`
	ShowTotal   int              `json:"show_total"`
	Totals      map[PlayerID]int `json:"totals"`
	Points      map[PlayerID]int `json:"round_points"`
	ScoresTotal map[PlayerID]int `json:"scores_total"`
	Eliminated  []PlayerID       `json:"eliminated"`
	Outcome     Outcome          `json:"outcome"`
	TiedOrUnder []PlayerID       `json:"same_or_less_players"`
	NewlyOut    []PlayerID       `json:"newly_out"`
}
