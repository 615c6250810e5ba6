package server

import (
	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/server/ingress"

	"github.com/sasha-s/go-deadlock"
)

// Clients is the connection registry. The host player never appears
// here; id 1 has no socket.
type Clients struct {
	mutex deadlock.Mutex
	next  match.PlayerID
	conns map[match.PlayerID]ingress.Connection
}

func NewClients() *Clients {
	return &Clients{
		next:  match.HostID + 1,
		conns: map[match.PlayerID]ingress.Connection{},
	}
}

// Add assigns the next unused player id and registers the connection.
func (c *Clients) Add(conn ingress.Connection) match.PlayerID {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	pid := c.next
	c.next++
	conn.SetID(pid)
	c.conns[pid] = conn
	return pid
}

func (c *Clients) Remove(pid match.PlayerID) ingress.Connection {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	conn := c.conns[pid]
	delete(c.conns, pid)
	return conn
}

func (c *Clients) Get(pid match.PlayerID) (ingress.Connection, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	conn, ok := c.conns[pid]
	return conn, ok
}

func (c *Clients) ForEach(fn func(ingress.Connection)) {
	c.mutex.Lock()
	conns := make([]ingress.Connection, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mutex.Unlock()

	for _, conn := range conns {
		fn(conn)
	}
}

func (c *Clients) Count() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.conns)
}

func (c *Clients) DisconnectAll() {
	c.ForEach(func(conn ingress.Connection) {
		conn.Disconnect()
	})
}
