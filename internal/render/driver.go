package render

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/treewatch/internal/metrics"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// FieldPosition marks an update caused only by the layout moving a node.
const FieldPosition tree.Field = "position"

// NodeView is everything a sink needs to draw one node.
type NodeView struct {
	ID       string        `json:"id"`
	ParentID string        `json:"parent_id,omitempty"`
	Type     tree.NodeType `json:"type"`
	Role     string        `json:"role"`
	Label    string        `json:"label"`
	Color    string        `json:"color"`
	Visits   int           `json:"visits"`
	Value    float64       `json:"value"`
	Output   string        `json:"output,omitempty"`
	Depth    int           `json:"depth"`
	Position Position      `json:"position"`

	// Size grows with the visit count, Opacity with the value.
	Size    float64 `json:"size"`
	Opacity float64 `json:"opacity"`
}

// Op is one render operation.
type Op struct {
	Kind   tree.OpKind  `json:"-"`
	Name   string       `json:"op"`
	View   NodeView     `json:"node"`
	Fields []tree.Field `json:"fields,omitempty"`
}

// Batch is the set of operations produced for one diff, in apply order:
// exits deepest first, then updates, then enters parent before child.
type Batch struct {
	Generation uint64 `json:"generation"`
	// Full is set when the batch paints a whole tree from scratch.
	Full     bool   `json:"full,omitempty"`
	Ops      []Op   `json:"ops"`
	Selected string `json:"selected,omitempty"`
}

// Sink receives render batches. Batches are immutable once delivered.
type Sink interface {
	Render(b Batch)
}

// Driver applies diffs to a sink, dropping diffs from stale generations
// and keeping the selection consistent with the rendered tree.
type Driver struct {
	sink      Sink
	selection *Selection
	logger    zerolog.Logger

	mu         sync.Mutex
	generation uint64
	positions  map[string]Position
}

// NewDriver creates a driver. selection may be nil.
func NewDriver(sink Sink, selection *Selection, logger zerolog.Logger) *Driver {
	if selection == nil {
		selection = &Selection{}
	}
	return &Driver{
		sink:      sink,
		selection: selection,
		logger:    logger.With().Str("component", "render").Logger(),
		positions: map[string]Position{},
	}
}

// Selection returns the driver's selection coordinator.
func (d *Driver) Selection() *Selection { return d.selection }

// Generation returns the newest generation applied.
func (d *Driver) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// Apply renders ch, which must have been computed against the previously
// applied hierarchy, with h as the new tree. It returns false when the
// diff belongs to an older generation and was ignored.
func (d *Driver) Apply(ch tree.Changes, h *tree.Hierarchy) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ch.Generation < d.generation {
		metrics.StaleDiffs.Inc()
		d.logger.Debug().
			Uint64("generation", ch.Generation).
			Uint64("current", d.generation).
			Msg("Ignoring stale diff")
		return false
	}
	d.generation = ch.Generation

	layout := Compute(h)
	batch := Batch{Generation: ch.Generation}
	touched := make(map[string]bool, len(ch.Updated)+len(ch.Entered))

	for _, c := range ch.Exited {
		view := viewOf(c.Vertex, d.positions[c.ID])
		batch.Ops = append(batch.Ops, Op{Kind: tree.OpExit, Name: tree.OpExit.String(), View: view})
		delete(d.positions, c.ID)
	}

	for _, c := range ch.Updated {
		touched[c.ID] = true
		pos := layout.Positions[c.ID]
		fields := c.Fields
		if old, ok := d.positions[c.ID]; ok && moved(old, pos) {
			fields = append(append([]tree.Field(nil), fields...), FieldPosition)
		}
		batch.Ops = append(batch.Ops, Op{Kind: tree.OpUpdate, Name: tree.OpUpdate.String(), View: viewOf(c.Vertex, pos), Fields: fields})
		d.positions[c.ID] = pos
	}

	for _, c := range ch.Entered {
		touched[c.ID] = true
	}

	// Unchanged nodes still move when the tree around them grows.
	for _, v := range h.Vertices() {
		if touched[v.ID] {
			continue
		}
		pos := layout.Positions[v.ID]
		if old, ok := d.positions[v.ID]; ok && moved(old, pos) {
			batch.Ops = append(batch.Ops, Op{Kind: tree.OpUpdate, Name: tree.OpUpdate.String(), View: viewOf(v, pos), Fields: []tree.Field{FieldPosition}})
		}
		d.positions[v.ID] = pos
	}

	for _, c := range ch.Entered {
		pos := layout.Positions[c.ID]
		batch.Ops = append(batch.Ops, Op{Kind: tree.OpEnter, Name: tree.OpEnter.String(), View: viewOf(c.Vertex, pos)})
		d.positions[c.ID] = pos
	}

	if d.selection.Reconcile(h) {
		d.logger.Debug().Msg("Selected node left the tree, selection cleared")
	}
	batch.Selected, _ = d.selection.Selected()

	for _, op := range batch.Ops {
		metrics.DiffOps.WithLabelValues(op.Name).Inc()
	}
	metrics.TreeNodes.Set(float64(h.Len()))

	if len(batch.Ops) > 0 {
		d.sink.Render(batch)
	}
	return true
}

// Paint returns a batch that draws h from scratch, for sinks that attach
// after the tree was already rendered.
func Paint(h *tree.Hierarchy, selected string) Batch {
	layout := Compute(h)
	batch := Batch{Full: true, Selected: selected}
	if h == nil {
		return batch
	}
	batch.Generation = h.Generation
	for _, v := range h.Vertices() {
		batch.Ops = append(batch.Ops, Op{Kind: tree.OpEnter, Name: tree.OpEnter.String(), View: viewOf(v, layout.Positions[v.ID])})
	}
	return batch
}

// View returns the positioned view of node id in h.
func View(h *tree.Hierarchy, id string) (NodeView, bool) {
	v, ok := h.Lookup(id)
	if !ok {
		return NodeView{}, false
	}
	return viewOf(v, Compute(h).Positions[id]), true
}

func viewOf(v *tree.Vertex, pos Position) NodeView {
	return NodeView{
		ID:       v.ID,
		ParentID: v.ParentID,
		Type:     v.Type,
		Role:     v.Type.Label(),
		Label:    v.Label,
		Color:    v.Type.Color(),
		Visits:   v.Visits,
		Value:    v.Value,
		Output:   v.Output,
		Depth:    v.Depth,
		Position: pos,
		Size:     4 + 2*math.Sqrt(float64(v.Visits)),
		Opacity:  0.35 + 0.65*clamp01(v.Value),
	}
}

func moved(a, b Position) bool {
	return a.X != b.X || a.Y != b.Y
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
