// Package realtime carries live query snapshots to browsers over WebSocket.
// A client opens one socket, then subscribes to named streams; each stream
// delivers full result sets until the client unsubscribes or disconnects.
package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/livequery"
	"github.com/anonto42/linkup/backend/internal/metrics"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	sendBuffer = 256
)

// ActorResolver authenticates the socket's owner. It runs on connect and
// again on every subscribe, so a revoked session or changed role takes
// effect without reconnecting.
type ActorResolver func(ctx context.Context) (services.Actor, error)

type Gateway struct {
	svc      *services.Services
	broker   *livequery.Broker
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
	done  bool
}

func NewGateway(svc *services.Services, broker *livequery.Broker, allowedOrigins []string, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		svc:    svc,
		broker: broker,
		log:    log.Named("realtime"),
		conns:  make(map[*conn]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return g
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" {
			return true
		}
		if origin != "" && strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	return false
}

// Handle authenticates the request, upgrades it and runs the connection
// until either side closes. Authentication failures are answered with a
// plain HTTP error before upgrading.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request, resolve ActorResolver) error {
	actor, err := resolve(r.Context())
	if err != nil {
		return err
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}

	c := newConn(g, ws, actor, resolve)
	if !g.track(c) {
		_ = ws.Close()
		return nil
	}
	metrics.RealtimeConnections.Inc()
	g.log.Debug("client connected", zap.String("uid", actor.ID), zap.String("remote", r.RemoteAddr))

	go c.writePump()
	c.readPump()
	return nil
}

// Connections reports how many sockets are open.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Serve blocks until ctx is done, then closes every open socket. It lets
// the supervisor own the gateway's lifetime.
func (g *Gateway) Serve(ctx context.Context) error {
	<-ctx.Done()
	g.mu.Lock()
	g.done = true
	conns := make([]*conn, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.shutdown()
	}
	g.log.Info("realtime gateway stopped", zap.Int("closed", len(conns)))
	return ctx.Err()
}

func (g *Gateway) String() string { return "realtime-gateway" }

func (g *Gateway) track(c *conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.conns[c] = struct{}{}
	return true
}

func (g *Gateway) forget(c *conn) {
	g.mu.Lock()
	_, ok := g.conns[c]
	delete(g.conns, c)
	g.mu.Unlock()
	if ok {
		metrics.RealtimeConnections.Dec()
	}
}
