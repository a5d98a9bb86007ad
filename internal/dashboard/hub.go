package dashboard

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ziadkadry99/treewatch/internal/render"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// message is the outgoing websocket frame.
type message struct {
	Type      string        `json:"type"` // batch, state, selected, run_accepted, pong or error
	Batch     *render.Batch `json:"batch,omitempty"`
	State     *store.State  `json:"state,omitempty"`
	Selected  string        `json:"selected,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Content   string        `json:"content,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a render sink that fans batches out to every connected browser.
// It mirrors the rendered views so a late joiner is painted the current
// tree instead of waiting for the next diff.
type Hub struct {
	logger zerolog.Logger

	mu         sync.Mutex
	clients    map[*client]struct{}
	views      map[string]render.NodeView
	generation uint64
	selected   string
	state      []byte
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger.With().Str("component", "hub").Logger(),
		clients: map[*client]struct{}{},
		views:   map[string]render.NodeView{},
	}
}

// Render implements render.Sink.
func (h *Hub) Render(b render.Batch) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if b.Generation < h.generation {
		return
	}
	// Diff batches carry no ops for unchanged nodes, so only a full paint
	// replaces the mirror.
	if b.Full {
		h.views = map[string]render.NodeView{}
	}
	h.generation = b.Generation
	for _, op := range b.Ops {
		if op.Kind == tree.OpExit {
			delete(h.views, op.View.ID)
			continue
		}
		h.views[op.View.ID] = op.View
	}
	h.selected = b.Selected

	h.broadcastLocked(message{Type: "batch", Batch: &b})
}

// PublishState broadcasts a state change. It has the session.StateFunc
// signature.
func (h *Hub) PublishState(st store.State) {
	data, err := json.Marshal(message{Type: "state", State: &st})
	if err != nil {
		h.logger.Error().Err(err).Msg("Encoding state")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = data
	for c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

// Select records the inspected node and tells every client.
func (h *Hub) Select(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = id
	h.broadcastLocked(message{Type: "selected", Selected: id})
}

// Paint returns a full batch that draws the mirrored tree, parents first.
func (h *Hub) Paint() render.Batch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paintLocked()
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) paintLocked() render.Batch {
	views := make([]render.NodeView, 0, len(h.views))
	for _, v := range h.views {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Depth != views[j].Depth {
			return views[i].Depth < views[j].Depth
		}
		if views[i].Position.X != views[j].Position.X {
			return views[i].Position.X < views[j].Position.X
		}
		return views[i].ID < views[j].ID
	})

	b := render.Batch{Generation: h.generation, Full: true, Selected: h.selected, Ops: make([]render.Op, 0, len(views))}
	for _, v := range views {
		b.Ops = append(b.Ops, render.Op{Kind: tree.OpEnter, Name: tree.OpEnter.String(), View: v})
	}
	return b
}

// register adds a connection and queues the current paint and state for it.
func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	paint := h.paintLocked()
	if data, err := json.Marshal(message{Type: "batch", Batch: &paint}); err == nil {
		h.enqueueLocked(c, data)
	}
	if h.state != nil {
		h.enqueueLocked(c, h.state)
	}
	h.logger.Debug().Int("clients", len(h.clients)).Msg("Client connected")
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// reply queues a message for one client.
func (h *Hub) reply(c *client, m message) {
	data, err := json.Marshal(m)
	if err != nil {
		h.logger.Error().Err(err).Msg("Encoding reply")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.enqueueLocked(c, data)
	}
}

func (h *Hub) broadcastLocked(m message) {
	if len(h.clients) == 0 {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		h.logger.Error().Err(err).Str("type", m.Type).Msg("Encoding broadcast")
		return
	}
	for c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

// enqueueLocked drops clients that cannot keep up rather than blocking the
// render path.
func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn().Msg("Client too slow, disconnecting")
		delete(h.clients, c)
		close(c.send)
	}
}

// writePump is the only writer of c.conn.
func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
