// Package stream pushes engine snapshots to websocket clients as JSON frames.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/gravity-simulator/core"
	"github.com/signalsfoundry/gravity-simulator/internal/logging"
)

const (
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// BodyFrame is the wire form of one body.
type BodyFrame struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Parent     string  `json:"parent,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	Radius     float64 `json:"radius"`
	Color      string  `json:"color"`
	Reference  bool    `json:"reference,omitempty"`
	DistanceKm float64 `json:"distance_km"`
}

// Frame is one broadcast message.
type Frame struct {
	RunID       string      `json:"run_id,omitempty"`
	Tick        int         `json:"tick"`
	ElapsedDays float64     `json:"elapsed_days"`
	Bodies      []BodyFrame `json:"bodies"`
}

// NewFrame converts a snapshot into its wire form. Trails are not sent.
func NewFrame(snap core.Snapshot) Frame {
	f := Frame{
		Tick:        snap.Tick,
		ElapsedDays: snap.Elapsed / 86400,
		Bodies:      make([]BodyFrame, 0, len(snap.Bodies)),
	}
	for _, b := range snap.Bodies {
		c := colorful.Color{R: float64(b.Color.R) / 255, G: float64(b.Color.G) / 255, B: float64(b.Color.B) / 255}
		f.Bodies = append(f.Bodies, BodyFrame{
			ID:         b.ID,
			Name:       b.Name,
			Parent:     b.ParentID,
			X:          b.Position.X,
			Y:          b.Position.Y,
			VX:         b.Velocity.X,
			VY:         b.Velocity.Y,
			Radius:     b.Radius,
			Color:      c.Hex(),
			Reference:  b.IsReference,
			DistanceKm: b.DistanceToReference / 1000,
		})
	}
	return f
}

// SnapshotSource is satisfied by *core.SimulationEngine.
type SnapshotSource interface {
	Snapshot() core.Snapshot
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans frames out to every connected client. A client that falls behind
// loses frames rather than stalling the simulation.
type Hub struct {
	// RunID is stamped on every frame so clients can tell runs apart.
	RunID string

	log      logging.Logger
	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub returns a hub sending at most maxFPS frames per second. A maxFPS of
// zero sends a frame for every Publish.
func NewHub(maxFPS float64, log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	h := &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if maxFPS > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(maxFPS), 1)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish snapshots src and queues the frame for every client. It reports
// whether a frame was sent; nothing is sent without clients or when the rate
// limit is exhausted.
func (h *Hub) Publish(src SnapshotSource) bool {
	if h.Clients() == 0 {
		return false
	}
	if h.limiter != nil && !h.limiter.Allow() {
		return false
	}
	frame := NewFrame(src.Snapshot())
	frame.RunID = h.RunID
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Warn(context.Background(), "encode frame", logging.String("error", err.Error()))
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
	return true
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.String("error", err.Error()))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.Debug(r.Context(), "stream client connected", logging.String("remote", r.RemoteAddr))
	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages; it exists to notice disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
