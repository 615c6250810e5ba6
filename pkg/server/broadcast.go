package server

import (
	"encoding/json"

	"github.com/cardtable/leastcount/pkg/game"
	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/server/ingress"

	fp "github.com/repeale/fp-go"
)

func decode(msg protocol.Message, v any) error {
	return json.Unmarshal(msg.Raw, v)
}

// sendTo delivers one message to a single player, whichever side of the
// socket boundary they live on.
func (s *Server) sendTo(pid match.PlayerID, msg any) {
	line, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode message")
		return
	}
	if pid == match.HostID {
		select {
		case s.hostOut <- line:
		default:
		}
		return
	}
	if conn, ok := s.clients.Get(pid); ok {
		conn.Send(line)
	}
}

// broadcast fans a message out to every connection plus the host. Sends
// are best-effort per peer; one dead socket never blocks the rest.
func (s *Server) broadcast(msg any) {
	line, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode broadcast")
		return
	}
	s.clients.ForEach(func(conn ingress.Connection) {
		conn.Send(line)
	})
	select {
	case s.hostOut <- line:
	default:
	}
}

func (s *Server) broadcastState() {
	s.broadcast(protocol.Update{
		Action: protocol.ActionUpdate,
		State:  s.match.Snapshot(),
	})
}

func (s *Server) broadcastLobby() {
	m := s.match
	players := fp.Map(func(pid match.PlayerID) match.Player {
		return *m.Players[pid]
	})(m.Seating)

	s.broadcast(protocol.Lobby{
		Action:      protocol.ActionLobby,
		Players:     players,
		Config:      m.Rules,
		DealerPID:   m.Dealer,
		PlayerOrder: append([]match.PlayerID(nil), m.Seating...),
	})
}

// broadcastRoundStart announces a fresh deal: the rules notice first,
// then each player's private hand, then the opening snapshot.
func (s *Server) broadcastRoundStart() {
	s.broadcast(protocol.Start{
		Action: protocol.ActionStart,
		Rules: protocol.StartRules{
			Rules:        s.match.Rules,
			DiscardFirst: true,
		},
	})
	if r := s.match.Round; r != nil {
		for _, pid := range r.Order {
			s.sendHand(pid)
		}
	}
	s.broadcastState()
}

// sendHand pushes a player their authoritative hand. Hands go only to
// their owner; other players learn card counts from the snapshot.
func (s *Server) sendHand(pid match.PlayerID) {
	r := s.match.Round
	if r == nil {
		return
	}
	hand, ok := r.Hands[pid]
	if !ok {
		return
	}
	s.sendTo(pid, protocol.Hand{
		Action: protocol.ActionHand,
		Hand:   append([]game.Card(nil), hand...),
	})
}

func (s *Server) broadcastMatchEnd() {
	m := s.match
	s.broadcast(protocol.MatchEnd{
		Action:      protocol.ActionMatchEnd,
		Winner:      m.Winner,
		Reason:      m.EndReason,
		ScoresTotal: m.ScoresSnapshot(),
	})
}
