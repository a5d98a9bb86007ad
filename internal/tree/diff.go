package tree

// Field names a mutable vertex attribute compared by Diff.
type Field string

const (
	FieldVisits Field = "visits"
	FieldValue  Field = "value"
	FieldLabel  Field = "label"
	FieldOutput Field = "output"
	FieldType   Field = "type"
	FieldParent Field = "parent"
)

// Change is one keyed difference between two hierarchies. Vertex points
// into the next hierarchy for entered and updated nodes and into the
// previous one for exited nodes.
type Change struct {
	ID     string
	Vertex *Vertex
	Fields []Field
}

// OpKind is the kind of a render operation.
type OpKind int

const (
	OpExit OpKind = iota
	OpUpdate
	OpEnter
)

func (k OpKind) String() string {
	switch k {
	case OpExit:
		return "exit"
	case OpUpdate:
		return "update"
	case OpEnter:
		return "enter"
	default:
		return "unknown"
	}
}

// Op is a Change tagged with its kind.
type Op struct {
	Kind OpKind
	Change
}

// Changes is the result of Diff.
//
// Entered is ordered by depth then discovery order, so a parent always
// precedes its children. Exited is ordered deepest first. Updated follows
// the breadth-first order of the next hierarchy.
type Changes struct {
	Generation uint64
	Entered    []Change
	Updated    []Change
	Exited     []Change
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Entered) == 0 && len(c.Updated) == 0 && len(c.Exited) == 0
}

// Ops flattens the changes into apply order: every exit, then every
// update, then every enter.
func (c Changes) Ops() []Op {
	ops := make([]Op, 0, len(c.Exited)+len(c.Updated)+len(c.Entered))
	for _, ch := range c.Exited {
		ops = append(ops, Op{Kind: OpExit, Change: ch})
	}
	for _, ch := range c.Updated {
		ops = append(ops, Op{Kind: OpUpdate, Change: ch})
	}
	for _, ch := range c.Entered {
		ops = append(ops, Op{Kind: OpEnter, Change: ch})
	}
	return ops
}

// Diff computes the keyed changes that turn prev into next. Identity is
// the node id only; position among siblings is irrelevant. Either argument
// may be nil, meaning an empty tree.
func Diff(prev, next *Hierarchy) Changes {
	var ch Changes
	switch {
	case next != nil:
		ch.Generation = next.Generation
	case prev != nil:
		ch.Generation = prev.Generation
	}

	for _, v := range next.Vertices() {
		old, ok := prev.Lookup(v.ID)
		if !ok {
			ch.Entered = append(ch.Entered, Change{ID: v.ID, Vertex: v})
			continue
		}
		if fields := changedFields(old, v); len(fields) > 0 {
			ch.Updated = append(ch.Updated, Change{ID: v.ID, Vertex: v, Fields: fields})
		}
	}

	order := prev.Vertices()
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		if _, ok := next.Lookup(v.ID); !ok {
			ch.Exited = append(ch.Exited, Change{ID: v.ID, Vertex: v})
		}
	}

	return ch
}

func changedFields(a, b *Vertex) []Field {
	var fields []Field
	if a.Visits != b.Visits {
		fields = append(fields, FieldVisits)
	}
	if a.Value != b.Value {
		fields = append(fields, FieldValue)
	}
	if a.Label != b.Label {
		fields = append(fields, FieldLabel)
	}
	if a.Output != b.Output {
		fields = append(fields, FieldOutput)
	}
	if a.Type != b.Type {
		fields = append(fields, FieldType)
	}
	if a.ParentID != b.ParentID {
		fields = append(fields, FieldParent)
	}
	return fields
}
