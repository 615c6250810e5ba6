package ingress

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/utils"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// TCPConn frames a raw socket into newline-delimited JSON records. TCP
// has no message boundaries, so a record only exists once a full line
// has been buffered.
type TCPConn struct {
	session utils.Session

	id   match.PlayerID
	conn net.Conn

	send    chan []byte
	events  chan<- Event
	limiter *rate.Limiter

	closeOnce sync.Once
}

var _ Connection = (*TCPConn)(nil)

func newTCPConn(ctx context.Context, conn net.Conn, events chan<- Event) *TCPConn {
	return &TCPConn{
		session: utils.NewSession(ctx),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		events:  events,
		limiter: rate.NewLimiter(rate.Limit(messageRate), messageBurst),
	}
}

func (c *TCPConn) Session() *utils.Session { return &c.session }

func (c *TCPConn) ID() match.PlayerID { return c.id }

func (c *TCPConn) SetID(pid match.PlayerID) { c.id = pid }

func (c *TCPConn) Addr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

func (c *TCPConn) Send(line []byte) {
	select {
	case c.send <- line:
	default:
		// Slow peer; its read side will surface the disconnect later.
	}
}

func (c *TCPConn) Disconnect() {
	c.closeOnce.Do(func() {
		c.session.Cancel()
		c.conn.Close()
	})
}

// writePump owns all writes to the socket. A write failure only kills
// this connection; the broadcast that queued the line is unaffected.
func (c *TCPConn) writePump() {
	for {
		select {
		case <-c.session.Ctx().Done():
			return
		case line := <-c.send:
			if _, err := c.conn.Write(line); err != nil {
				log.Debug().Err(err).Int("player", int(c.id)).Msg("write failed")
				c.Disconnect()
				return
			}
		}
	}
}

// readPump splits the byte stream on newlines and decodes each line.
// Malformed lines are dropped without disconnecting; EOF or a socket
// error turns into the synthetic disconnect event.
func (c *TCPConn) readPump() {
	defer func() {
		c.Disconnect()
		c.events <- disconnectEvent(c.id)
	}()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<16)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.limiter.Allow() {
			log.Warn().Int("player", int(c.id)).Msg("dropping message over rate limit")
			continue
		}
		msg, err := protocol.Decode([]byte(line))
		if err != nil {
			log.Debug().Err(err).Int("player", int(c.id)).Msg("dropping malformed line")
			continue
		}
		select {
		case c.events <- Event{Player: c.id, Message: msg}:
		case <-c.session.Ctx().Done():
			return
		}
	}
}

// TCPIngress listens on the table's TCP port and hands accepted
// connections to the registry.
type TCPIngress struct {
	listener net.Listener
	events   chan<- Event
	joins    chan<- Connection
}

func NewTCPIngress(events chan<- Event, joins chan<- Connection) *TCPIngress {
	return &TCPIngress{
		events: events,
		joins:  joins,
	}
}

// Serve binds the port. A bind failure is the one unrecoverable startup
// error and propagates to the caller.
func (t *TCPIngress) Serve(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	t.listener = listener
	log.Info().Int("port", port).Msg("tcp ingress listening")
	return nil
}

func (t *TCPIngress) Poll(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.listener.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}

		client := newTCPConn(ctx, conn, t.events)
		select {
		case t.joins <- client:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}
}

// Start begins the connection's pumps once the registry has assigned
// its player id.
func (c *TCPConn) Start() {
	go c.writePump()
	go c.readPump()
}
