// Package protocol defines the newline-delimited JSON records exchanged
// with clients. Every record is an object carrying an "action" field;
// the rest of the shape depends on the action.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/cardtable/leastcount/pkg/game"
	"github.com/cardtable/leastcount/pkg/match"
)

var ErrNoAction = errors.New("record has no action")

// Client -> server actions.
const (
	ActionHello          = "hello"
	ActionDiscard        = "discard"
	ActionDrawDeck       = "draw_deck"
	ActionDrawDiscard    = "draw_discard"
	ActionReserveDiscard = "reserve_discard"
	ActionShow           = "show"
	ActionExit           = "exit"

	// ActionDisconnect is synthesized locally when a read loop dies; a
	// peer never sends it over the wire.
	ActionDisconnect = "disconnect"
)

// Server -> client actions.
const (
	ActionWelcome  = "welcome"
	ActionLobby    = "lobby"
	ActionStart    = "start"
	ActionHand     = "hand"
	ActionUpdate   = "update"
	ActionRoundEnd = "round_end"
	ActionMatchEnd = "match_end"
)

type Hello struct {
	Name string `json:"name"`
}

type Discard struct {
	Card game.Card `json:"card"`
}

type Welcome struct {
	Action   string         `json:"action"`
	PlayerID match.PlayerID `json:"player_id"`
}

type Lobby struct {
	Action      string           `json:"action"`
	Players     []match.Player   `json:"players"`
	Config      match.Rules      `json:"config"`
	DealerPID   match.PlayerID   `json:"dealer_pid"`
	PlayerOrder []match.PlayerID `json:"player_order"`
}

// StartRules is the rules snapshot sent once at round start.
type StartRules struct {
	match.Rules
	DiscardFirst bool `json:"discard_first"`
}

type Start struct {
	Action string     `json:"action"`
	Rules  StartRules `json:"rules"`
}

// Hand is private: it only ever goes to the player whose hand it is.
type Hand struct {
	Action string      `json:"action"`
	Hand   []game.Card `json:"hand"`
}

type Update struct {
	Action string      `json:"action"`
	State  match.State `json:"state"`
}

type RoundEnd struct {
	Action  string             `json:"action"`
	Summary match.RoundSummary `json:"summary"`
}

type MatchEnd struct {
	Action      string                 `json:"action"`
	Winner      match.PlayerID         `json:"winner"`
	Reason      match.EndReason        `json:"reason"`
	ScoresTotal map[match.PlayerID]int `json:"scores_total"`
}

// Message is a decoded inbound record: the action name plus the raw
// bytes for action-specific decoding.
type Message struct {
	Action string
	Raw    json.RawMessage
}

type envelope struct {
	Action string `json:"action"`
}

// Decode splits an inbound line into its action and payload. Records
// without a string action are malformed.
func Decode(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, err
	}
	if env.Action == "" {
		return Message{}, ErrNoAction
	}
	return Message{Action: env.Action, Raw: json.RawMessage(line)}, nil
}

// Encode renders an outbound record as one newline-terminated line.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
