package server

import (
	"github.com/cardtable/leastcount/pkg/match"
)

type commandKind int

const (
	cmdStartMatch commandKind = iota
	cmdNextRound
	cmdCloseMatch
	cmdReorder
	cmdSetDealer
)

// command is a host-side control operation. Like player actions it is
// applied on the dispatcher goroutine; the response channel lets the
// caller block for the outcome.
type command struct {
	kind     commandKind
	order    []match.PlayerID
	dealer   match.PlayerID
	response chan error
}

func (s *Server) run(cmd command) error {
	cmd.response = make(chan error, 1)
	select {
	case s.commands <- cmd:
	case <-s.Ctx().Done():
		return s.Ctx().Err()
	}
	select {
	case err := <-cmd.response:
		return err
	case <-s.Ctx().Done():
		return s.Ctx().Err()
	}
}

// StartMatch deals the first round of a fresh match.
func (s *Server) StartMatch() error {
	return s.run(command{kind: cmdStartMatch})
}

// NextRound deals again once the current round has been resolved.
func (s *Server) NextRound() error {
	return s.run(command{kind: cmdNextRound})
}

// CloseMatch force-ends the match, drops every socket and returns the
// table to the lobby.
func (s *Server) CloseMatch() error {
	return s.run(command{kind: cmdCloseMatch})
}

// Reorder rearranges the pre-match seating (and with it, deal order).
func (s *Server) Reorder(order []match.PlayerID) error {
	return s.run(command{kind: cmdReorder, order: order})
}

// SetDealer picks who deals round one.
func (s *Server) SetDealer(pid match.PlayerID) error {
	return s.run(command{kind: cmdSetDealer, dealer: pid})
}

func (s *Server) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdStartMatch:
		if err := s.match.Start(); err != nil {
			return err
		}
		s.logger.Info().Int("players", len(s.match.Seating)).Msg("match started")
		s.broadcastRoundStart()
		return nil

	case cmdNextRound:
		if err := s.match.StartRound(); err != nil {
			return err
		}
		s.logger.Info().Int("round", s.match.RoundNo).Msg("round started")
		s.broadcastRoundStart()
		return nil

	case cmdCloseMatch:
		s.match.Close()
		s.broadcastMatchEnd()
		s.clients.DisconnectAll()
		s.logger.Info().Msg("match closed by host")
		return nil

	case cmdReorder:
		if err := s.match.Reorder(cmd.order); err != nil {
			return err
		}
		s.broadcastLobby()
		return nil

	case cmdSetDealer:
		if err := s.match.SetDealer(cmd.dealer); err != nil {
			return err
		}
		s.broadcastLobby()
		return nil
	}
	return nil
}
