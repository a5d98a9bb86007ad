package render

import (
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/treewatch/internal/tree"
)

func build(t *testing.T, gen uint64, edges map[string][]string, root string) *tree.Hierarchy {
	t.Helper()
	snap := tree.Snapshot{root: {ID: root, ChildrenIDs: edges[root], Type: tree.NodeRoot}}
	for parent, kids := range edges {
		for _, k := range kids {
			snap[k] = tree.Node{ID: k, ParentID: tree.StringPtr(parent), ChildrenIDs: edges[k], Type: tree.NodeHypothesis}
		}
	}
	h, err := tree.Build(snap, gen)
	require.NoError(t, err)
	return h
}

func opSummary(b Batch) []string {
	out := make([]string, len(b.Ops))
	for i, op := range b.Ops {
		out[i] = op.Name + ":" + op.View.ID
	}
	return out
}

func TestComputeLayout(t *testing.T) {
	h := build(t, 1, map[string][]string{"r": {"a", "b"}, "a": {"c", "d"}}, "r")
	l := Compute(h)

	assert.Equal(t, []string{"r", "a", "c", "d", "b"}, l.Preorder)
	assert.Equal(t, 3, l.Leaves)
	assert.Equal(t, 2, l.Depth)

	assert.Equal(t, 0.0, l.Positions["c"].X)
	assert.Equal(t, 1.0, l.Positions["d"].X)
	assert.Equal(t, 2.0, l.Positions["b"].X)
	assert.Equal(t, 0.5, l.Positions["a"].X)
	assert.Equal(t, 1.25, l.Positions["r"].X)

	assert.Equal(t, 2, l.Positions["c"].Y)
	assert.Equal(t, 0, l.Positions["r"].Order)
	assert.Equal(t, 4, l.Positions["b"].Order)
	assert.Equal(t, 2.0, l.Positions["c"].Radius)
	assert.Less(t, l.Positions["c"].Angle, l.Positions["b"].Angle)
}

func TestComputeLayoutEmpty(t *testing.T) {
	l := Compute(nil)
	assert.Empty(t, l.Positions)
	l = Compute(tree.Empty(2))
	assert.Empty(t, l.Preorder)
}

func TestComputeLayoutDeepChain(t *testing.T) {
	const depth = 20000
	snap := tree.Snapshot{}
	for i := 0; i < depth; i++ {
		n := tree.Node{ID: id(i), Type: tree.NodeRefinement}
		if i > 0 {
			n.ParentID = tree.StringPtr(id(i - 1))
		}
		if i < depth-1 {
			n.ChildrenIDs = []string{id(i + 1)}
		}
		snap[n.ID] = n
	}
	h, err := tree.Build(snap, 1)
	require.NoError(t, err)

	l := Compute(h)
	assert.Equal(t, depth-1, l.Depth)
	assert.Equal(t, 0.0, l.Positions[id(0)].X)
}

func id(i int) string {
	return "n" + strconv.Itoa(i)
}

func TestDriverFullPaintAndGrowth(t *testing.T) {
	rec := &Recorder{}
	d := NewDriver(rec, nil, zerolog.Nop())

	h1 := build(t, 1, map[string][]string{"r": {"a"}}, "r")
	require.True(t, d.Apply(tree.Diff(nil, h1), h1))

	b, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"enter:r", "enter:a"}, opSummary(b))

	h2 := build(t, 1, map[string][]string{"r": {"a", "b"}}, "r")
	require.True(t, d.Apply(tree.Diff(h1, h2), h2))

	b, _ = rec.Last()
	// r recentres over two leaves; a keeps slot 0.
	assert.Equal(t, []string{"update:r", "enter:b"}, opSummary(b))
	assert.Equal(t, []tree.Field{FieldPosition}, b.Ops[0].Fields)
	assert.Equal(t, 0.5, b.Ops[0].View.Position.X)
}

func TestDriverUpdatesEncodings(t *testing.T) {
	rec := &Recorder{}
	d := NewDriver(rec, nil, zerolog.Nop())

	h1 := build(t, 1, map[string][]string{"r": {"a"}}, "r")
	d.Apply(tree.Diff(nil, h1), h1)

	snap := tree.Snapshot{
		"r": {ID: "r", ChildrenIDs: []string{"a"}, Type: tree.NodeRoot},
		"a": {ID: "a", ParentID: tree.StringPtr("r"), Type: tree.NodeHypothesis, Visits: 9, AvgValue: 0.5},
	}
	h2, err := tree.Build(snap, 1)
	require.NoError(t, err)
	d.Apply(tree.Diff(h1, h2), h2)

	b, _ := rec.Last()
	require.Len(t, b.Ops, 1)
	op := b.Ops[0]
	assert.Equal(t, tree.OpUpdate, op.Kind)
	assert.Contains(t, op.Fields, tree.FieldVisits)
	assert.Contains(t, op.Fields, tree.FieldValue)
	assert.Equal(t, 10.0, op.View.Size)
	assert.InDelta(t, 0.675, op.View.Opacity, 1e-9)
}

func TestDriverIgnoresStaleGeneration(t *testing.T) {
	rec := &Recorder{}
	d := NewDriver(rec, nil, zerolog.Nop())

	h2 := build(t, 2, map[string][]string{"new": nil}, "new")
	require.True(t, d.Apply(tree.Diff(nil, h2), h2))

	old := build(t, 1, map[string][]string{"old": {"x"}}, "old")
	assert.False(t, d.Apply(tree.Diff(nil, old), old))
	assert.Len(t, rec.Batches(), 1)
	assert.Equal(t, uint64(2), d.Generation())
}

func TestDriverSessionBoundary(t *testing.T) {
	rec := &Recorder{}
	d := NewDriver(rec, nil, zerolog.Nop())

	h1 := build(t, 1, map[string][]string{"r": {"a"}}, "r")
	d.Apply(tree.Diff(nil, h1), h1)
	d.Selection().Select("a")

	h2 := build(t, 2, map[string][]string{"s": nil}, "s")
	d.Apply(tree.Diff(h1, h2), h2)

	b, _ := rec.Last()
	assert.Equal(t, []string{"exit:a", "exit:r", "enter:s"}, opSummary(b))
	_, selected := d.Selection().Selected()
	assert.False(t, selected, "selection of a vanished node is cleared")
	assert.Empty(t, b.Selected)
}

func TestDriverNoopDiffRendersNothing(t *testing.T) {
	rec := &Recorder{}
	d := NewDriver(rec, nil, zerolog.Nop())
	h := build(t, 1, map[string][]string{"r": {"a"}}, "r")
	d.Apply(tree.Diff(nil, h), h)
	rec.Reset()

	assert.True(t, d.Apply(tree.Diff(h, h), h))
	assert.Empty(t, rec.Batches())
}

func TestSelection(t *testing.T) {
	var s Selection
	_, ok := s.Selected()
	assert.False(t, ok)

	s.Select("a")
	got, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "a", got)

	h := build(t, 1, map[string][]string{"r": {"a"}}, "r")
	assert.False(t, s.Reconcile(h))

	s.Select("gone")
	assert.True(t, s.Reconcile(h))
	_, ok = s.Selected()
	assert.False(t, ok)

	s.Select("a")
	s.Clear()
	_, ok = s.Selected()
	assert.False(t, ok)
}

func TestPaint(t *testing.T) {
	h := build(t, 4, map[string][]string{"r": {"a", "b"}}, "r")
	b := Paint(h, "b")
	assert.True(t, b.Full)
	assert.Equal(t, uint64(4), b.Generation)
	assert.Equal(t, "b", b.Selected)
	assert.Equal(t, []string{"enter:r", "enter:a", "enter:b"}, opSummary(b))

	v, ok := View(h, "b")
	require.True(t, ok)
	assert.Equal(t, 1.0, v.Position.X)
	assert.Equal(t, "r", v.ParentID)
}
