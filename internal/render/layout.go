// Package render turns hierarchies and their diffs into positioned render
// operations for the terminal, log and dashboard sinks.
package render

import (
	"math"

	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Position is where a node sits in the layered layout.
type Position struct {
	// X is the horizontal slot: leaves take consecutive integers in
	// depth-first order and parents sit midway over their children.
	X float64 `json:"x"`
	// Y is the depth.
	Y int `json:"y"`
	// Angle and Radius place the same node on a radial layout.
	Angle  float64 `json:"angle"`
	Radius float64 `json:"radius"`
	// Order is the preorder index.
	Order int `json:"order"`
}

// Layout holds the positions of every node in one hierarchy.
type Layout struct {
	Positions map[string]Position
	// Preorder lists node ids in depth-first order.
	Preorder []string
	Leaves   int
	Depth    int
}

// Compute lays out h with a tidy layered algorithm. Both passes use an
// explicit stack so arbitrarily deep trees are safe.
func Compute(h *tree.Hierarchy) Layout {
	l := Layout{Positions: make(map[string]Position, h.Len())}
	if h == nil || h.Root == nil {
		return l
	}

	preorder := make([]*tree.Vertex, 0, h.Len())
	stack := []*tree.Vertex{h.Root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		preorder = append(preorder, v)
		for i := len(v.Children) - 1; i >= 0; i-- {
			stack = append(stack, v.Children[i])
		}
	}

	x := make(map[string]float64, len(preorder))
	for _, v := range preorder {
		if len(v.Children) == 0 {
			x[v.ID] = float64(l.Leaves)
			l.Leaves++
		}
		if v.Depth > l.Depth {
			l.Depth = v.Depth
		}
	}

	// Reverse preorder visits every child before its parent.
	for i := len(preorder) - 1; i >= 0; i-- {
		v := preorder[i]
		if n := len(v.Children); n > 0 {
			x[v.ID] = (x[v.Children[0].ID] + x[v.Children[n-1].ID]) / 2
		}
	}

	l.Preorder = make([]string, len(preorder))
	for i, v := range preorder {
		l.Preorder[i] = v.ID
		l.Positions[v.ID] = Position{
			X:      x[v.ID],
			Y:      v.Depth,
			Angle:  2 * math.Pi * (x[v.ID] + 0.5) / float64(l.Leaves),
			Radius: float64(v.Depth),
			Order:  i,
		}
	}
	return l
}
