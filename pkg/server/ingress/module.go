// Package ingress accepts client connections over TCP and WebSocket and
// turns both into the same thing: a Connection whose inbound records
// land on a shared event channel.
package ingress

import (
	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/utils"
)

// Inbound line rate per connection; lines over the budget are dropped.
const (
	messageRate  = 50
	messageBurst = 100
)

// Outbound buffer per connection. A peer that falls this far behind
// starts losing snapshots; the next one it does receive supersedes
// anything missed.
const sendBuffer = 64

// Event is one decoded record from a client, or the synthetic
// disconnect pushed when its read loop dies.
type Event struct {
	Player  match.PlayerID
	Message protocol.Message
}

// Connection is a live client regardless of transport.
type Connection interface {
	Session() *utils.Session

	ID() match.PlayerID
	// SetID is called exactly once, by the registry, before the read
	// loop starts.
	SetID(pid match.PlayerID)
	Addr() string

	// Send queues one encoded line, best-effort: it never blocks, and
	// drops the line when the peer cannot keep up.
	Send(line []byte)

	// Start begins the connection's read and write pumps; the registry
	// calls it after assigning the player id.
	Start()

	// Disconnect tears the connection down; the read loop will push
	// the synthetic disconnect event on its way out.
	Disconnect()
}

func disconnectEvent(pid match.PlayerID) Event {
	return Event{
		Player:  pid,
		Message: protocol.Message{Action: protocol.ActionDisconnect},
	}
}
