package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pancake/game"
	"pancake/protocol"
	"pancake/session"
)

// Conn is the part of a websocket the client pumps use.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type client struct {
	player  string
	conn    Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	log     *zap.Logger
}

func newClient(player string, conn Conn, opts Options, log *zap.Logger) *client {
	return &client{
		player:  player,
		conn:    conn,
		send:    make(chan []byte, sendQueue),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.DropRate), opts.DropBurst),
		log:     log.With(zap.String("player", player)),
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue never blocks; it runs on the scheduler goroutine.
func (c *client) enqueue(b []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

// publish is the session.Subscriber for this connection.
func (c *client) publish(snap game.Snapshot, shouldPublish bool) error {
	if !shouldPublish {
		return nil
	}
	b, err := protocol.Encode(protocol.MsgState, protocol.NewState(snap))
	if err != nil {
		return err
	}
	return c.enqueue(b)
}

func (c *client) sendMessage(t string, payload any) {
	b, err := protocol.Encode(t, payload)
	if err != nil {
		c.log.Error("encode message", zap.String("type", t), zap.Error(err))
		return
	}
	if err := c.enqueue(b); err != nil {
		c.log.Warn("message not queued", zap.String("type", t), zap.Error(err))
	}
}

func (c *client) sendError(code, msg string) {
	c.sendMessage(protocol.MsgError, protocol.Error{Code: code, Message: msg})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readLoop(reg *session.Registry) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		env, err := protocol.DecodeEnvelope(msg)
		if err != nil {
			c.sendError(protocol.ErrCodeBadMessage, err.Error())
			continue
		}
		c.handle(reg, env)
	}
}

func (c *client) handle(reg *session.Registry, env protocol.Envelope) {
	switch env.T {
	case protocol.MsgStart:
		if len(env.P) > 0 {
			start, err := protocol.DecodePayload[protocol.Start](env)
			if err != nil {
				c.sendError(protocol.ErrCodeBadMessage, err.Error())
				return
			}
			if start.V != 0 && start.V != protocol.Version {
				c.sendError(protocol.ErrCodeBadVersion, fmt.Sprintf("protocol version %d, server speaks %d", start.V, protocol.Version))
				return
			}
		}
		snap, err := reg.StartRound(c.player)
		if errors.Is(err, session.ErrClosed) {
			c.sendError(protocol.ErrCodeUnavailable, "server shutting down")
			return
		}
		if err != nil {
			c.sendError(protocol.ErrCodeBadMessage, err.Error())
			return
		}
		c.sendMessage(protocol.MsgState, protocol.NewState(snap))

	case protocol.MsgDrop:
		if !c.limiter.Allow() {
			c.sendError(protocol.ErrCodeRateLimited, "too many drops")
			return
		}
		res, err := reg.Drop(c.player)
		if errors.Is(err, session.ErrNoSession) {
			c.sendError(protocol.ErrCodeNoRound, "send start first")
			return
		}
		if errors.Is(err, session.ErrClosed) {
			c.sendError(protocol.ErrCodeUnavailable, "server shutting down")
			return
		}
		if err != nil {
			c.sendError(protocol.ErrCodeBadMessage, err.Error())
			return
		}
		st := protocol.NewState(res.Snapshot)
		st.Outcome = res.Outcome.String()
		c.sendMessage(protocol.MsgState, st)

	default:
		c.sendError(protocol.ErrCodeBadMessage, "unknown message type "+env.T)
	}
}
