package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cardtable/leastcount/pkg/game"
	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/server"

	"github.com/rs/zerolog/log"
)

// console is the host's stand-in for a real table UI: it issues the
// host's control operations and, when the host is seated, their play
// actions. It renders nothing but the host's private messages.
type console struct {
	table  *server.Server
	seated bool
}

func newConsole(table *server.Server, seated bool) *console {
	return &console{table: table, seated: seated}
}

func (c *console) run(ctx context.Context) {
	go c.printHostMessages(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		c.handle(strings.Fields(strings.TrimSpace(scanner.Text())))
	}
}

func (c *console) printHostMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-c.table.HostMessages():
			c.render(line)
		}
	}
}

// render gives the host a terse view of their private traffic; the
// full snapshot stream is too chatty to echo verbatim.
func (c *console) render(line []byte) {
	msg, err := protocol.Decode(line)
	if err != nil {
		return
	}
	switch msg.Action {
	case protocol.ActionHand:
		var hand protocol.Hand
		if json.Unmarshal(msg.Raw, &hand) == nil {
			fmt.Printf("hand: %v\n", hand.Hand)
		}
	case protocol.ActionRoundEnd:
		var end protocol.RoundEnd
		if json.Unmarshal(msg.Raw, &end) == nil {
			fmt.Printf("round %d over: player %d showed %d (%s)\n",
				end.Summary.Number, end.Summary.ShowPlayer,
				end.Summary.ShowTotal, end.Summary.Outcome)
		}
	case protocol.ActionMatchEnd:
		var end protocol.MatchEnd
		if json.Unmarshal(msg.Raw, &end) == nil {
			fmt.Printf("match over: winner %d (%s)\n", end.Winner, end.Reason)
		}
	}
}

func (c *console) handle(fields []string) {
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "start":
		c.report(c.table.StartMatch())
	case "next":
		c.report(c.table.NextRound())
	case "close":
		c.report(c.table.CloseMatch())
	case "dealer":
		if len(fields) == 2 {
			if pid, err := strconv.Atoi(fields[1]); err == nil {
				c.report(c.table.SetDealer(match.PlayerID(pid)))
			}
		}
	case "order":
		order := make([]match.PlayerID, 0, len(fields)-1)
		for _, f := range fields[1:] {
			pid, err := strconv.Atoi(f)
			if err != nil {
				return
			}
			order = append(order, match.PlayerID(pid))
		}
		c.report(c.table.Reorder(order))
	case "discard":
		if c.seated && len(fields) == 2 {
			c.act(protocol.ActionDiscard, protocol.Discard{
				Card: game.Card(strings.ToUpper(fields[1])),
			})
		}
	case "draw":
		c.act(protocol.ActionDrawDeck, nil)
	case "pick":
		c.act(protocol.ActionDrawDiscard, nil)
	case "reserve":
		c.act(protocol.ActionReserveDiscard, nil)
	case "show":
		c.act(protocol.ActionShow, nil)
	case "help":
		fmt.Println("commands: start next close dealer <pid> order <pids...> discard <card> draw pick reserve show")
	default:
		fmt.Printf("unknown command %q (try help)\n", fields[0])
	}
}

func (c *console) act(action string, payload any) {
	if !c.seated {
		return
	}
	raw := json.RawMessage(`{}`)
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		raw = data
	}
	c.table.HostAction(protocol.Message{Action: action, Raw: raw})
}

func (c *console) report(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("command refused")
	}
}
