package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, snap Snapshot, gen uint64) *Hierarchy {
	t.Helper()
	h, err := Build(snap, gen)
	require.NoError(t, err)
	return h
}

func ids(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.ID)
	}
	return out
}

func sampleTree() Snapshot {
	return snapshotOf(
		node("r", "", "a", "b"),
		node("a", "r", "c"),
		node("b", "r"),
		node("c", "a"),
	)
}

func TestDiffUnchanged(t *testing.T) {
	h := mustBuild(t, sampleTree(), 1)
	ch := Diff(h, h)
	assert.True(t, ch.Empty())

	again := mustBuild(t, sampleTree(), 1)
	assert.True(t, Diff(h, again).Empty())
}

func TestDiffFromEmpty(t *testing.T) {
	h := mustBuild(t, sampleTree(), 1)

	ch := Diff(nil, h)
	assert.Equal(t, []string{"r", "a", "b", "c"}, ids(ch.Entered))
	assert.Empty(t, ch.Exited)
	assert.Empty(t, ch.Updated)

	ch = Diff(Empty(1), h)
	assert.Equal(t, []string{"r", "a", "b", "c"}, ids(ch.Entered))
}

func TestDiffToEmpty(t *testing.T) {
	h := mustBuild(t, sampleTree(), 1)

	ch := Diff(h, nil)
	assert.Equal(t, []string{"c", "b", "a", "r"}, ids(ch.Exited))
	assert.Empty(t, ch.Entered)
	assert.Empty(t, ch.Updated)

	// Every exited child precedes its parent.
	pos := map[string]int{}
	for i, c := range ch.Exited {
		pos[c.ID] = i
	}
	for _, c := range ch.Exited {
		if c.Vertex.ParentID != "" {
			assert.Less(t, pos[c.ID], pos[c.Vertex.ParentID])
		}
	}
}

func TestDiffGrowingTree(t *testing.T) {
	prev := mustBuild(t, sampleTree(), 1)

	grown := sampleTree()
	b := grown["b"]
	b.ChildrenIDs = []string{"d"}
	b.Visits = 3
	grown["b"] = b
	grown["d"] = node("d", "b", "e")
	grown["e"] = node("e", "d")
	next := mustBuild(t, grown, 1)

	ch := Diff(prev, next)
	assert.Equal(t, []string{"d", "e"}, ids(ch.Entered))
	assert.Empty(t, ch.Exited)
	require.Len(t, ch.Updated, 1)
	assert.Equal(t, "b", ch.Updated[0].ID)
	assert.Equal(t, []Field{FieldVisits}, ch.Updated[0].Fields)
}

func TestDiffSiblingReorderKeepsIdentity(t *testing.T) {
	prev := mustBuild(t, sampleTree(), 1)

	reordered := sampleTree()
	r := reordered["r"]
	r.ChildrenIDs = []string{"b", "a"}
	reordered["r"] = r
	next := mustBuild(t, reordered, 1)

	assert.True(t, Diff(prev, next).Empty())
}

func TestDiffDisjointSessions(t *testing.T) {
	prev := mustBuild(t, sampleTree(), 1)
	next := mustBuild(t, snapshotOf(node("x", "", "y"), node("y", "x")), 2)

	ch := Diff(prev, next)
	assert.Equal(t, uint64(2), ch.Generation)
	assert.Equal(t, []string{"x", "y"}, ids(ch.Entered))
	assert.Equal(t, []string{"c", "b", "a", "r"}, ids(ch.Exited))

	ops := ch.Ops()
	require.Len(t, ops, 6)
	for i, op := range ops {
		if i < 4 {
			assert.Equal(t, OpExit, op.Kind)
		} else {
			assert.Equal(t, OpEnter, op.Kind)
		}
	}
}

func TestDiffDetectsFieldChanges(t *testing.T) {
	prev := mustBuild(t, sampleTree(), 1)

	changed := sampleTree()
	c := changed["c"]
	c.AvgValue = 0.75
	c.Stdout = "done"
	c.Content = "new label"
	changed["c"] = c
	next := mustBuild(t, changed, 1)

	ch := Diff(prev, next)
	require.Len(t, ch.Updated, 1)
	assert.Equal(t, []Field{FieldValue, FieldLabel, FieldOutput}, ch.Updated[0].Fields)
	assert.Same(t, mustLookup(t, next, "c"), ch.Updated[0].Vertex)
}

func mustLookup(t *testing.T, h *Hierarchy, id string) *Vertex {
	t.Helper()
	v, ok := h.Lookup(id)
	require.True(t, ok)
	return v
}

func TestOpKindString(t *testing.T) {
	assert.Equal(t, "exit", OpExit.String())
	assert.Equal(t, "update", OpUpdate.String())
	assert.Equal(t, "enter", OpEnter.String())
}
