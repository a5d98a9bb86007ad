package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Anchor is the fragment id of a node section.
func Anchor(id string) string {
	return "node-" + id
}

// TreeHTML renders h as nested <ul><li> HTML linking every node to its
// section. activeID is highlighted.
func TreeHTML(h *tree.Hierarchy, activeID string) string {
	if h.Len() == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<ul>\n")

	// A nil vertex on the stack closes the list opened for its parent.
	stack := []*tree.Vertex{h.Root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v == nil {
			b.WriteString("</ul></li>\n")
			continue
		}

		class := "node"
		if v.ID == activeID {
			class += " active"
		}
		fmt.Fprintf(&b, `<li class="%s"><span class="dot" style="background:%s"></span><a href="#%s">%s</a> <small>n=%d v=%.2f</small>`,
			class, v.Type.Color(), html.EscapeString(Anchor(v.ID)), html.EscapeString(v.Label), v.Visits, v.Value)

		if len(v.Children) == 0 {
			b.WriteString("</li>\n")
			continue
		}
		b.WriteString("\n<ul>\n")
		stack = append(stack, nil)
		for i := len(v.Children) - 1; i >= 0; i-- {
			stack = append(stack, v.Children[i])
		}
	}

	b.WriteString("</ul>\n")
	return b.String()
}
