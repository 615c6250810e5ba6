package ingress

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cardtable/leastcount/pkg/match"
	"github.com/cardtable/leastcount/pkg/protocol"
	"github.com/cardtable/leastcount/pkg/utils"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

// WSConn adapts a WebSocket to the table protocol: one JSON record per
// text frame, no newline framing needed.
type WSConn struct {
	session utils.Session

	id   match.PlayerID
	conn *websocket.Conn
	addr string

	send    chan []byte
	events  chan<- Event
	limiter *rate.Limiter

	closeOnce sync.Once
}

var _ Connection = (*WSConn)(nil)

func newWSConn(ctx context.Context, conn *websocket.Conn, addr string, events chan<- Event) *WSConn {
	return &WSConn{
		session: utils.NewSession(ctx),
		conn:    conn,
		addr:    addr,
		send:    make(chan []byte, sendBuffer),
		events:  events,
		limiter: rate.NewLimiter(rate.Limit(messageRate), messageBurst),
	}
}

func (c *WSConn) Session() *utils.Session { return &c.session }

func (c *WSConn) ID() match.PlayerID { return c.id }

func (c *WSConn) SetID(pid match.PlayerID) { c.id = pid }

func (c *WSConn) Addr() string { return c.addr }

func (c *WSConn) Send(line []byte) {
	select {
	case c.send <- line:
	default:
	}
}

func (c *WSConn) Disconnect() {
	c.closeOnce.Do(func() {
		c.session.Cancel()
		c.conn.Close(websocket.StatusNormalClosure, "")
	})
}

func (c *WSConn) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *WSConn) writePump() {
	ctx := c.session.Ctx()
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-c.send:
			// Lines arrive newline-terminated for the TCP framing;
			// frames carry the record bare.
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, bytes.TrimRight(line, "\n"))
			cancel()
			if err != nil {
				log.Debug().Err(err).Int("player", int(c.id)).Msg("ws write failed")
				c.Disconnect()
				return
			}
		}
	}
}

func (c *WSConn) readPump() {
	defer func() {
		c.Disconnect()
		c.events <- disconnectEvent(c.id)
	}()

	ctx := c.session.Ctx()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			log.Warn().Int("player", int(c.id)).Msg("dropping ws message over rate limit")
			continue
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Debug().Err(err).Int("player", int(c.id)).Msg("dropping malformed ws message")
			continue
		}
		select {
		case c.events <- Event{Player: c.id, Message: msg}:
		case <-ctx.Done():
			return
		}
	}
}

// WSIngress serves the same protocol to browser clients.
type WSIngress struct {
	events chan<- Event
	joins  chan<- Connection

	httpServer *http.Server
}

func NewWSIngress(events chan<- Event, joins chan<- Connection) *WSIngress {
	return &WSIngress{
		events: events,
		joins:  joins,
	}
}

func (w *WSIngress) handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		conn, err := websocket.Accept(resp, req, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to accept ws client")
			return
		}

		client := newWSConn(ctx, conn, req.RemoteAddr, w.events)
		select {
		case w.joins <- client:
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// Hold the handler open until the connection dies.
		<-client.session.Ctx().Done()
	})
}

// Serve starts the HTTP listener for WebSocket upgrades.
func (w *WSIngress) Serve(ctx context.Context, port int) error {
	w.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: w.handler(ctx),
	}

	errs := make(chan error, 1)
	go func() {
		errs <- w.httpServer.ListenAndServe()
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.httpServer.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errs:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Info().Int("port", port).Msg("web ingress listening")
		return nil
	}
}
