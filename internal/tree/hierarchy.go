package tree

import (
	"errors"
	"fmt"
)

// Build failure kinds. A *BuildError wraps exactly one of them.
var (
	ErrMissingRoot    = errors.New("no root node")
	ErrMultipleRoots  = errors.New("multiple root nodes")
	ErrDanglingParent = errors.New("parent not in snapshot")
	ErrDisconnected   = errors.New("node not reachable from root")
	ErrCycle          = errors.New("cycle in tree")
)

// BuildError describes why a snapshot could not be turned into a hierarchy.
type BuildError struct {
	Kind   error
	NodeID string
	Detail string
}

func (e *BuildError) Error() string {
	msg := e.Kind.Error()
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s: node %q", msg, e.NodeID)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Kind }

// KindName returns a short stable name for a build failure, suitable for
// metric labels and log fields.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrMissingRoot):
		return "missing_root"
	case errors.Is(err, ErrMultipleRoots):
		return "multiple_roots"
	case errors.Is(err, ErrDanglingParent):
		return "dangling_parent"
	case errors.Is(err, ErrDisconnected):
		return "disconnected"
	case errors.Is(err, ErrCycle):
		return "cycle"
	default:
		return "unknown"
	}
}

// Vertex is a lightweight copy of a node inside a Hierarchy, carrying only
// what renderers need.
type Vertex struct {
	ID       string
	ParentID string
	Type     NodeType
	Label    string
	Visits   int
	Value    float64
	Output   string
	Depth    int
	Children []*Vertex
}

func newVertex(id string, n Node, depth int) *Vertex {
	visits := n.Visits
	if visits < 0 {
		visits = 0
	}
	return &Vertex{
		ID:     id,
		Type:   n.Type,
		Label:  n.Title(),
		Visits: visits,
		Value:  n.Value(),
		Output: n.Output(),
		Depth:  depth,
	}
}

// Hierarchy is the validated rooted tree derived from one snapshot. It is
// never mutated after Build returns.
type Hierarchy struct {
	Root       *Vertex
	Generation uint64

	// Skipped lists child ids that were referenced but absent from the
	// snapshot.
	Skipped []string

	index map[string]*Vertex
	order []*Vertex
}

// Empty returns a hierarchy with no nodes for the given generation.
func Empty(generation uint64) *Hierarchy {
	return &Hierarchy{Generation: generation, index: map[string]*Vertex{}}
}

// Len returns the number of nodes. A nil hierarchy is empty.
func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.order)
}

// Lookup returns the vertex with the given id.
func (h *Hierarchy) Lookup(id string) (*Vertex, bool) {
	if h == nil {
		return nil, false
	}
	v, ok := h.index[id]
	return v, ok
}

// Vertices returns every vertex in breadth-first order. The slice must not
// be modified.
func (h *Hierarchy) Vertices() []*Vertex {
	if h == nil {
		return nil
	}
	return h.order
}

// Flatten returns the ids of every node in breadth-first order.
func (h *Hierarchy) Flatten() []string {
	ids := make([]string, 0, h.Len())
	for _, v := range h.Vertices() {
		ids = append(ids, v.ID)
	}
	return ids
}

// MaxDepth returns the depth of the deepest node, 0 for an empty tree.
func (h *Hierarchy) MaxDepth() int {
	max := 0
	for _, v := range h.Vertices() {
		if v.Depth > max {
			max = v.Depth
		}
	}
	return max
}

// Build converts a snapshot into a hierarchy tagged with generation.
//
// The traversal is iterative and starts at the single root, following
// children_ids. Child ids missing from the snapshot are skipped and
// recorded in Skipped; every other inconsistency fails with a *BuildError.
func Build(snap Snapshot, generation uint64) (*Hierarchy, error) {
	h := Empty(generation)
	if len(snap) == 0 {
		return h, nil
	}

	ids := snap.IDs()

	rootID := ""
	roots := 0
	for _, id := range ids {
		if snap[id].IsRoot() {
			roots++
			if roots == 1 {
				rootID = id
			}
		}
	}
	if roots == 0 {
		return nil, &BuildError{Kind: ErrMissingRoot}
	}
	if roots > 1 {
		return nil, &BuildError{Kind: ErrMultipleRoots, NodeID: rootID, Detail: fmt.Sprintf("%d roots", roots)}
	}

	for _, id := range ids {
		n := snap[id]
		if n.IsRoot() {
			continue
		}
		if _, ok := snap[n.Parent()]; !ok {
			return nil, &BuildError{Kind: ErrDanglingParent, NodeID: id, Detail: "parent " + n.Parent()}
		}
	}

	h.Root = newVertex(rootID, snap[rootID], 0)
	visited := map[string]bool{rootID: true}
	queue := []*Vertex{h.Root}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		h.order = append(h.order, v)
		h.index[v.ID] = v

		for _, cid := range snap[v.ID].ChildrenIDs {
			child, ok := snap[cid]
			if !ok {
				h.Skipped = append(h.Skipped, cid)
				continue
			}
			if visited[cid] {
				return nil, &BuildError{Kind: ErrCycle, NodeID: cid, Detail: "reached twice via " + v.ID}
			}
			if child.Parent() != v.ID {
				return nil, &BuildError{Kind: ErrDisconnected, NodeID: cid, Detail: "listed by " + v.ID + " but parent is " + child.Parent()}
			}
			visited[cid] = true
			c := newVertex(cid, child, v.Depth+1)
			c.ParentID = v.ID
			v.Children = append(v.Children, c)
			queue = append(queue, c)
		}
	}

	if len(visited) != len(snap) {
		for _, id := range ids {
			if visited[id] {
				continue
			}
			if onParentCycle(snap, id) {
				return nil, &BuildError{Kind: ErrCycle, NodeID: id}
			}
			return nil, &BuildError{Kind: ErrDisconnected, NodeID: id}
		}
	}

	return h, nil
}

// onParentCycle follows parent pointers from id and reports whether they
// loop instead of ending at the root.
func onParentCycle(snap Snapshot, id string) bool {
	seen := map[string]bool{}
	for {
		if seen[id] {
			return true
		}
		seen[id] = true
		n, ok := snap[id]
		if !ok || n.IsRoot() {
			return false
		}
		id = n.Parent()
	}
}
