package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/permissions"
	"github.com/anonto42/linkup/backend/internal/services"
	apperrors "github.com/anonto42/linkup/backend/pkg/errors"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type sub struct {
	gen   uint64
	unsub livequery.Unsubscribe
}

// conn is one client socket. Frames are read on the Handle goroutine and
// written by writePump; snapshots reach writePump through send.
type conn struct {
	g       *Gateway
	ws      *websocket.Conn
	resolve ActorResolver
	log     *zap.Logger

	send chan []byte
	quit chan struct{}
	once sync.Once

	mu     sync.Mutex
	actor  services.Actor
	subs   map[string]*sub
	gen    uint64
	closed bool
}

func newConn(g *Gateway, ws *websocket.Conn, actor services.Actor, resolve ActorResolver) *conn {
	return &conn{
		g:       g,
		ws:      ws,
		resolve: resolve,
		log:     g.log.With(zap.String("uid", actor.ID)),
		send:    make(chan []byte, sendBuffer),
		quit:    make(chan struct{}),
		actor:   actor,
		subs:    make(map[string]*sub),
	}
}

// readPump pumps frames from the socket until it fails, then releases
// every subscription the client held.
func (c *conn) readPump() {
	defer c.shutdown()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.fail("", apperrors.NewInvalidInputError("malformed frame"))
			continue
		}
		switch in.Type {
		case TypeSubscribe:
			c.subscribe(in)
		case TypeUnsubscribe:
			c.unsubscribe(in.ID)
		case TypePing:
			c.write(Outbound{Type: TypePong, ID: in.ID})
		default:
			c.fail(in.ID, apperrors.NewInvalidInputError("unknown frame type "+in.Type))
		}
	}
}

// writePump pumps queued frames to the socket and keeps it alive with
// pings. It is the only writer on ws.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.quit:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is already queued, so a final error frame reaches
// the client before the close.
func (c *conn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) subscribe(in Inbound) {
	if in.ID == "" {
		c.fail("", apperrors.NewInvalidInputError("subscribe needs an id"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	actor, err := c.resolve(ctx)
	cancel()
	if err != nil {
		c.fail(in.ID, err)
		if apperrors.HasCode(err, apperrors.ErrCodeUnauthenticated) || apperrors.HasCode(err, apperrors.ErrCodeForbidden) {
			c.shutdown()
		}
		return
	}
	if !actor.Can(permissions.ViewContent) {
		c.fail(in.ID, apperrors.NewForbiddenError("missing permission: "+string(permissions.ViewContent)))
		return
	}

	openStream, ok := streams[in.Stream]
	if !ok {
		c.fail(in.ID, apperrors.NewInvalidInputError("unknown stream "+in.Stream))
		return
	}
	var p Params
	if len(in.Params) > 0 {
		if err := json.Unmarshal(in.Params, &p); err != nil {
			c.fail(in.ID, apperrors.NewInvalidInputError("malformed params"))
			return
		}
	}
	start, err := openStream(c.g.svc, actor, p)
	if err != nil {
		c.fail(in.ID, err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.actor = actor
	prev := c.subs[in.ID]
	c.gen++
	s := &sub{gen: c.gen}
	c.subs[in.ID] = s
	c.mu.Unlock()

	// a repeated id replaces the earlier subscription
	if prev != nil && prev.unsub != nil {
		prev.unsub()
	}

	id, gen := in.ID, s.gen
	unsub := start(c.g.broker, func(seq uint64, data interface{}, err error) {
		c.emit(id, gen, seq, data, err)
	})

	c.mu.Lock()
	if c.closed || c.subs[in.ID] != s {
		c.mu.Unlock()
		unsub()
		return
	}
	s.unsub = unsub
	c.mu.Unlock()
}

func (c *conn) unsubscribe(id string) {
	c.mu.Lock()
	s := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if s != nil && s.unsub != nil {
		s.unsub()
	}
}

// emit forwards a snapshot unless its subscription was replaced or
// released after the delivery started.
func (c *conn) emit(id string, gen, seq uint64, data interface{}, err error) {
	c.mu.Lock()
	s, ok := c.subs[id]
	live := ok && s.gen == gen && !c.closed
	c.mu.Unlock()
	if !live {
		return
	}
	if err != nil {
		out := Outbound{Type: TypeError, ID: id, Seq: seq, Error: "snapshot failed", Code: string(apperrors.ErrCodeInternal)}
		if ae := apperrors.GetAppError(err); ae != nil {
			out.Error, out.Code = ae.Message, string(ae.Code)
		}
		c.write(out)
		return
	}
	c.write(Outbound{Type: TypeSnapshot, ID: id, Seq: seq, Data: data})
}

func (c *conn) fail(id string, err error) {
	out := Outbound{Type: TypeError, ID: id, Error: err.Error(), Code: string(apperrors.ErrCodeInternal)}
	if ae := apperrors.GetAppError(err); ae != nil {
		out.Error, out.Code = ae.Message, string(ae.Code)
	}
	c.write(out)
}

// write queues a frame. A client that cannot keep up with its send buffer
// is disconnected.
func (c *conn) write(out Outbound) {
	msg, err := json.Marshal(out)
	if err != nil {
		c.log.Error("encode frame", zap.String("type", out.Type), zap.Error(err))
		return
	}
	select {
	case <-c.quit:
	case c.send <- msg:
	default:
		c.log.Warn("slow consumer, closing connection")
		c.shutdown()
	}
}

// shutdown releases all subscriptions and stops writePump. Safe to call
// from any goroutine, any number of times.
func (c *conn) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		subs := c.subs
		c.subs = make(map[string]*sub)
		c.mu.Unlock()

		for _, s := range subs {
			if s.unsub != nil {
				s.unsub()
			}
		}
		close(c.quit)
		_ = c.ws.SetReadDeadline(time.Now())
		c.g.forget(c)
		c.log.Debug("client disconnected", zap.Int("subscriptions", len(subs)))
	})
}
