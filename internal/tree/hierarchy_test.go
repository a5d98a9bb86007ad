package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, parent string, children ...string) Node {
	n := Node{ID: id, ChildrenIDs: children, Type: NodeStrategy}
	if parent != "" {
		n.ParentID = StringPtr(parent)
	} else {
		n.Type = NodeQuestion
	}
	return n
}

func snapshotOf(nodes ...Node) Snapshot {
	s := Snapshot{}
	for _, n := range nodes {
		s[n.ID] = n
	}
	return s
}

func TestBuildSingleChild(t *testing.T) {
	snap := snapshotOf(node("r", "", "a"), node("a", "r"))

	h, err := Build(snap, 1)
	require.NoError(t, err)

	assert.Equal(t, "r", h.Root.ID)
	assert.Equal(t, 1, h.MaxDepth())
	require.Len(t, h.Root.Children, 1)
	assert.Equal(t, "a", h.Root.Children[0].ID)
	assert.Equal(t, "r", h.Root.Children[0].ParentID)
	assert.Equal(t, uint64(1), h.Generation)
}

func TestBuildEmptySnapshot(t *testing.T) {
	h, err := Build(Snapshot{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.Nil(t, h.Root)
	assert.Equal(t, uint64(3), h.Generation)
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want error
	}{
		{
			name: "dangling parent",
			snap: snapshotOf(node("r", "", "a"), node("a", "x")),
			want: ErrDanglingParent,
		},
		{
			name: "missing root",
			snap: snapshotOf(node("a", "b"), node("b", "a")),
			want: ErrMissingRoot,
		},
		{
			name: "multiple roots",
			snap: snapshotOf(node("r1", ""), node("r2", "")),
			want: ErrMultipleRoots,
		},
		{
			name: "child listed twice",
			snap: snapshotOf(node("r", "", "a", "a"), node("a", "r")),
			want: ErrCycle,
		},
		{
			name: "root listed as its own descendant",
			snap: snapshotOf(node("r", "", "a"), node("a", "r", "r")),
			want: ErrCycle,
		},
		{
			name: "orphan not listed by parent",
			snap: snapshotOf(node("r", ""), node("a", "r")),
			want: ErrDisconnected,
		},
		{
			name: "detached loop",
			snap: snapshotOf(node("r", ""), node("a", "b", "b"), node("b", "a", "a")),
			want: ErrCycle,
		},
		{
			name: "child disagrees with parent pointer",
			snap: snapshotOf(node("r", "", "a", "b"), node("a", "r"), node("b", "a")),
			want: ErrDisconnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Build(tt.snap, 1)
			require.Error(t, err)
			assert.Nil(t, h)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)

			var be *BuildError
			require.ErrorAs(t, err, &be)
		})
	}
}

func TestBuildSkipsMissingChildren(t *testing.T) {
	snap := snapshotOf(node("r", "", "a", "ghost"), node("a", "r"))

	h, err := Build(snap, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r", "a"}, h.Flatten())
	assert.Equal(t, []string{"ghost"}, h.Skipped)
}

func TestFlattenMatchesReachableSet(t *testing.T) {
	snap := snapshotOf(
		node("r", "", "a", "b"),
		node("a", "r", "c", "d"),
		node("b", "r", "e"),
		node("c", "a"),
		node("d", "a"),
		node("e", "b"),
	)

	h, err := Build(snap, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, snap.IDs(), h.Flatten())
	assert.Equal(t, []string{"r", "a", "b", "c", "d", "e"}, h.Flatten())
	assert.Equal(t, 2, h.MaxDepth())

	v, ok := h.Lookup("e")
	require.True(t, ok)
	assert.Equal(t, 2, v.Depth)
	assert.Equal(t, "b", v.ParentID)
}

func TestBuildDeepChainIsIterative(t *testing.T) {
	const depth = 50000
	snap := Snapshot{}
	for i := 0; i < depth; i++ {
		id := fmt.Sprintf("n%d", i)
		n := Node{ID: id}
		if i > 0 {
			n.ParentID = StringPtr(fmt.Sprintf("n%d", i-1))
		}
		if i < depth-1 {
			n.ChildrenIDs = []string{fmt.Sprintf("n%d", i+1)}
		}
		snap[id] = n
	}

	h, err := Build(snap, 1)
	require.NoError(t, err)
	assert.Equal(t, depth, h.Len())
	assert.Equal(t, depth-1, h.MaxDepth())
}

func TestNodeDecodesBothVocabularies(t *testing.T) {
	raw := `{"id":"a","parent_id":"r","children":["b"],"node_type":"code","visits":2,
		"avg_value":0.5,"repl_stdout":"42\n","content":"\n  count words\nmore"}`

	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.Equal(t, []string{"b"}, n.ChildrenIDs)
	assert.Equal(t, "42\n", n.Output())
	assert.Equal(t, "count words", n.Title())
	assert.Equal(t, 0.5, n.Value())
	assert.Equal(t, RoleRefinement, n.Type.Role())

	raw = `{"id":"h","parent_id":null,"children_ids":[],"node_type":"root","reward_composite":0.8,"stdout":"ok"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	assert.True(t, n.IsRoot())
	assert.Equal(t, 0.8, n.Value())
	assert.Equal(t, "ok", n.Output())
}

func TestNodeTypeCapabilities(t *testing.T) {
	assert.Equal(t, "Hypothesis", NodeHypothesis.Label())
	assert.Equal(t, NodeStrategy.Color(), NodeHypothesis.Color())
	assert.Equal(t, RoleUnknown, NodeType("mystery").Role())
	assert.Equal(t, "mystery", NodeType("mystery").Label())
	assert.Equal(t, "#6b7280", NodeType("mystery").Color())
}
