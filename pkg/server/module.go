// Package server owns the authoritative table: a single goroutine
// drains all inbound actions and host commands, mutates the match
// aggregate and fans state back out. Nothing else touches game state.
package server

import (
	"context"
	"fmt"

	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/server/ingress"
	"github.com/cardtable/leastcount/pkg/utils"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the game-facing half of the server's configuration.
type Config struct {
	HostName   string      `json:"host_name" yaml:"host_name"`
	HostSeated bool        `json:"host_seated" yaml:"host_seated"`
	Rules      match.Rules `json:"rules" yaml:"rules"`
}

type Server struct {
	utils.Session

	config Config

	match   *match.Match
	clients *Clients

	events   chan ingress.Event
	joins    chan ingress.Connection
	commands chan command

	// hostOut carries host-directed lines (private hand, lobby) to
	// whatever stands in for the host's UI.
	hostOut chan []byte

	logger zerolog.Logger
}

func New(ctx context.Context, conf Config) *Server {
	m := match.New(conf.Rules)
	if conf.HostSeated {
		name := conf.HostName
		if name == "" {
			name = "Host"
		}
		m.AddPlayer(match.HostID, name)
	}

	return &Server{
		Session:  utils.NewSession(ctx),
		config:   conf,
		match:    m,
		clients:  NewClients(),
		events:   make(chan ingress.Event, 64),
		joins:    make(chan ingress.Connection, 8),
		commands: make(chan command),
		hostOut:  make(chan []byte, 64),
		logger:   log.With().Str("component", "table").Logger(),
	}
}

// Events is the shared inbound queue the ingresses feed.
func (s *Server) Events() chan<- ingress.Event { return s.events }

// Joins receives freshly accepted connections before they have an id.
func (s *Server) Joins() chan<- ingress.Connection { return s.joins }

// HostMessages delivers the host player's private lines.
func (s *Server) HostMessages() <-chan []byte { return s.hostOut }

// HostAction injects a local action for the host player onto the same
// queue remote actions use.
func (s *Server) HostAction(msg protocol.Message) {
	select {
	case s.events <- ingress.Event{Player: match.HostID, Message: msg}:
	case <-s.Ctx().Done():
	}
}

// Poll is the single serialization point: every state mutation in the
// process happens on this goroutine, so two players racing for the
// same card resolve in arrival order and the loser becomes a no-op.
func (s *Server) Poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Ctx().Done():
			return
		case conn := <-s.joins:
			s.handleJoin(conn)
		case event := <-s.events:
			s.handleEvent(event.Player, event.Message)
		case cmd := <-s.commands:
			cmd.response <- s.handleCommand(cmd)
		}
	}
}

func (s *Server) handleJoin(conn ingress.Connection) {
	pid := s.clients.Add(conn)
	conn.Start()

	s.logger.Info().Int("player", int(pid)).Str("addr", conn.Addr()).Msg("player connected")

	if line, err := protocol.Encode(protocol.Welcome{
		Action:   protocol.ActionWelcome,
		PlayerID: pid,
	}); err == nil {
		conn.Send(line)
	}

	s.match.AddPlayer(pid, fmt.Sprintf("Player %d", pid))

	if s.match.Started && !s.match.Over {
		// Joined mid-match: they sit out until the next deal.
		s.sendTo(pid, protocol.Update{Action: protocol.ActionUpdate, State: s.match.Snapshot()})
	}
	s.broadcastLobby()
}

func (s *Server) handleEvent(pid match.PlayerID, msg protocol.Message) {
	switch msg.Action {
	case protocol.ActionHello:
		var hello protocol.Hello
		if err := decode(msg, &hello); err != nil {
			return
		}
		if err := s.match.Rename(pid, hello.Name); err == nil {
			s.broadcastLobby()
		}

	case protocol.ActionDiscard:
		var discard protocol.Discard
		if err := decode(msg, &discard); err != nil {
			return
		}
		s.play(pid, func(r *match.Round) error {
			return r.ApplyDiscard(pid, discard.Card)
		})

	case protocol.ActionDrawDeck:
		s.play(pid, func(r *match.Round) error {
			return r.ApplyDrawDeck(pid)
		})

	case protocol.ActionDrawDiscard:
		s.play(pid, func(r *match.Round) error {
			return r.ApplyDrawDiscard(pid)
		})

	case protocol.ActionReserveDiscard:
		if r := s.round(); r != nil {
			if err := r.Reserve(pid); err != nil {
				s.ignore(pid, msg.Action, err)
				return
			}
			s.broadcastState()
		}

	case protocol.ActionShow:
		s.handleShow(pid)

	case protocol.ActionExit, protocol.ActionDisconnect:
		s.handleExit(pid)

	default:
		s.logger.Debug().Int("player", int(pid)).Str("action", msg.Action).Msg("ignoring unknown action")
	}
}

func (s *Server) round() *match.Round {
	if !s.match.Started || s.match.Over {
		return nil
	}
	return s.match.Round
}

// play runs one turn action; on success the actor gets their
// authoritative hand and everyone gets the new snapshot.
func (s *Server) play(pid match.PlayerID, action func(*match.Round) error) {
	r := s.round()
	if r == nil {
		return
	}
	if err := action(r); err != nil {
		s.ignore(pid, "play", err)
		return
	}
	s.sendHand(pid)
	s.broadcastState()
}

func (s *Server) handleShow(pid match.PlayerID) {
	if s.round() == nil {
		return
	}
	summary, err := s.match.ResolveShow(pid)
	if err != nil {
		s.ignore(pid, protocol.ActionShow, err)
		return
	}

	s.logger.Info().
		Int("player", int(pid)).
		Int("total", summary.ShowTotal).
		Str("outcome", string(summary.Outcome)).
		Msg("show resolved")

	s.broadcast(protocol.RoundEnd{Action: protocol.ActionRoundEnd, Summary: *summary})
	if s.match.Over {
		s.broadcastMatchEnd()
	}
	s.broadcastState()
}

func (s *Server) handleExit(pid match.PlayerID) {
	if conn := s.clients.Remove(pid); conn != nil {
		conn.Disconnect()
	}

	inMatch := s.match.Started && !s.match.Over
	s.match.HandleExit(pid)
	s.logger.Info().Int("player", int(pid)).Msg("player left")

	if inMatch {
		if s.match.Over && s.match.EndReason == match.EndPlayerExit {
			s.broadcastMatchEnd()
		}
		s.broadcastState()
		return
	}
	s.broadcastLobby()
}

// ignore logs a precondition failure at debug level. The offending
// client gets nothing; it is expected to follow the next snapshot.
func (s *Server) ignore(pid match.PlayerID, action string, err error) {
	s.logger.Debug().
		Int("player", int(pid)).
		Str("action", action).
		Err(err).
		Msg("ignoring illegal action")
}
