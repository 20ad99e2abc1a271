package serve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/msalah0e/trustmap/internal/explorer"
	"github.com/msalah0e/trustmap/internal/graph"
	"github.com/msalah0e/trustmap/internal/layout"
	"github.com/msalah0e/trustmap/internal/render"
	"github.com/msalah0e/trustmap/internal/view"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBuffer     = 256
	animationFrame = time.Second / 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts requests without an Origin header and pages served
// from this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// inbound is a message from the page.
type inbound struct {
	Type      string    `json:"type"`
	Kind      string    `json:"kind"`
	Handle    string    `json:"handle"`
	Ring      int       `json:"ring"`
	On        bool      `json:"on"`
	Sentiment string    `json:"sentiment"`
	Key       string    `json:"key"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Factor    float64   `json:"factor"`
	Container view.Size `json:"container"`
	Window    view.Size `json:"window"`
}

func (m inbound) point() layout.Point {
	return layout.Point{X: m.X, Y: m.Y}
}

// outbound is a message to the page.
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// session is one connected page and its explorer.
type session struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	explorer  *explorer.Explorer
	logger    *zap.Logger
	animating atomic.Bool
	wg        sync.WaitGroup
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	closed := s.sessionOpened()
	defer closed()

	ctx, cancel := context.WithCancel(r.Context())
	sess := &session{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	sess.logger = s.logger.With(zap.String("session", sess.id))
	sess.explorer = explorer.New(ctx, s.source, s.explorer,
		explorer.WithResolver(s.resolver),
		explorer.WithLogger(sess.logger),
		explorer.WithMetrics(s.metrics),
		explorer.WithHooks(explorer.Hooks{
			OnScene:     func(sc render.Scene) { sess.push("scene", sc) },
			OnStatus:    func(st explorer.Status) { sess.push("status", st) },
			OnFrame:     func(f layout.Frame) { sess.offer("frame", f) },
			OnTransform: func(t view.Transform) { sess.offer("transform", t) },
		}),
	)

	sess.logger.Info("session opened", zap.String("remote", r.RemoteAddr))
	sess.run()
	sess.logger.Info("session closed")
}

func (c *session) run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.push("session", map[string]string{"id": c.id})
	c.push("status", c.explorer.Status())
	c.readPump()

	c.cancel()
	c.explorer.Close()
	c.wg.Wait()
	close(c.send)
	<-writerDone
}

// readPump dispatches page messages until the connection fails.
func (c *session) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.push("status", explorer.Status{Phase: explorer.PhaseError, Message: "malformed message"})
			continue
		}
		c.dispatch(msg)
	}
}

// writePump serialises writes and keeps the connection alive.
func (c *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.cancel()
				c.drain()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				c.drain()
				return
			}
		}
	}
}

// drain discards queued messages until the send channel is closed.
func (c *session) drain() {
	c.conn.Close()
	for range c.send {
	}
}

func (c *session) dispatch(m inbound) {
	e := c.explorer
	switch m.Type {
	case "load":
		kind, err := graph.ParseKind(m.Kind)
		if err != nil {
			c.push("status", explorer.Status{Phase: explorer.PhaseError, Message: err.Error()})
			return
		}
		handle := strings.TrimSpace(m.Handle)
		if handle == "" {
			return
		}
		if _, err := e.LoadHandle(kind, handle); err != nil {
			c.push("status", explorer.Status{Phase: explorer.PhaseError, Message: err.Error()})
		}
	case "toggleRing":
		e.ToggleRing(m.Ring, m.On)
	case "toggleSentiment":
		s, err := graph.ParseSentiment(m.Sentiment)
		if err != nil {
			return
		}
		e.ToggleSentiment(s)
	case "dragStart":
		e.DragStart(m.Key, m.point())
	case "dragMove":
		e.DragMove(m.point())
	case "dragEnd":
		e.DragEnd()
	case "panStart":
		e.PanStart(m.point())
	case "pan":
		e.Pan(m.point())
	case "panEnd":
		e.PanEnd()
	case "zoom":
		if m.Factor > 0 {
			e.Zoom(m.Factor, m.point())
		}
	case "reset":
		e.Reset()
		c.animate()
	case "fullscreen":
		e.View().Resize(m.Container, m.Window)
		e.SetFullscreen(m.On)
	case "resize":
		e.Resize(m.Container, m.Window)
	default:
		c.logger.Debug("unknown message", zap.String("type", m.Type))
	}
}

// animate streams the controller transform until its animation ends.
func (c *session) animate() {
	if !c.animating.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.animating.Store(false)
		ticker := time.NewTicker(animationFrame)
		defer ticker.Stop()
		v := c.explorer.View()
		for {
			c.offer("transform", v.Transform())
			if !v.Animating() {
				return
			}
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func encode(typ string, data any) ([]byte, bool) {
	b, err := json.Marshal(outbound{Type: typ, Data: data})
	return b, err == nil
}

// push queues a message, waiting for room unless the session is closing.
func (c *session) push(typ string, data any) {
	b, ok := encode(typ, data)
	if !ok {
		c.logger.Warn("encode failed", zap.String("type", typ))
		return
	}
	select {
	case c.send <- b:
	case <-c.ctx.Done():
	}
}

// offer queues a message if there is room. Frames and transforms are
// superseded by the next one, so dropping is fine.
func (c *session) offer(typ string, data any) {
	if c.ctx.Err() != nil {
		return
	}
	b, ok := encode(typ, data)
	if !ok {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}
