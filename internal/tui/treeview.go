package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Line is one row of the text tree.
type Line struct {
	Prefix string
	Vertex *tree.Vertex
}

// Lines flattens h into depth-first rows with box-drawing prefixes.
func Lines(h *tree.Hierarchy) []Line {
	if h.Len() == 0 {
		return nil
	}

	type frame struct {
		v      *tree.Vertex
		indent string
		last   bool
		root   bool
	}

	lines := make([]Line, 0, h.Len())
	stack := []frame{{v: h.Root, root: true}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var prefix, childIndent string
		switch {
		case f.root:
		case f.last:
			prefix = f.indent + "└── "
			childIndent = f.indent + "    "
		default:
			prefix = f.indent + "├── "
			childIndent = f.indent + "│   "
		}
		lines = append(lines, Line{Prefix: prefix, Vertex: f.v})

		for i := len(f.v.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				v:      f.v.Children[i],
				indent: childIndent,
				last:   i == len(f.v.Children)-1,
			})
		}
	}
	return lines
}

func (m Model) treeView(height int) string {
	if len(m.lines) == 0 {
		if m.state.Busy() {
			return m.styles.Muted.Render("Waiting for the first nodes…")
		}
		return m.styles.Muted.Render("No tree yet. Press r to start a run.")
	}

	start := m.cursor - height/2
	if start > len(m.lines)-height {
		start = len(m.lines) - height
	}
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > len(m.lines) {
		end = len(m.lines)
	}

	selected, _ := m.src.Selected()
	rows := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		l := m.lines[i]
		v := l.Vertex
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(v.Type.Color())).Render("●")
		text := fmt.Sprintf("%s %s  n=%d v=%.2f", dot, v.Label, v.Visits, v.Value)
		switch {
		case i == m.cursor:
			text = m.styles.Cursor.Render(text)
		case v.ID == selected:
			text = m.styles.Selected.Render(text)
		}
		rows = append(rows, m.styles.Branch.Render(l.Prefix)+text)
	}
	return strings.Join(rows, "\n")
}

// detailText is the inspector view of a node.
func detailText(n tree.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", n.Type.Label(), n.ID)
	fmt.Fprintf(&b, "depth %d  visits %d  value %.3f\n", n.Depth, n.Visits, n.Value())
	if n.RewardComposite != nil {
		fmt.Fprintf(&b, "gen %.2f  cal %.2f  disc %.2f  valid %.2f\n",
			n.RewardGeneralization, n.RewardCalibration, n.RewardDiscrimination, n.RewardValidity)
		fmt.Fprintf(&b, "train MAE %.3f  eval MAE %.3f\n", n.TrainMAE, n.EvalMAE)
	}
	if n.ExecutionMS > 0 {
		fmt.Fprintf(&b, "executed in %.0f ms (ok: %t)\n", n.ExecutionMS, n.ExecutionSuccess)
	}
	for _, section := range []struct{ title, body string }{
		{"Content", n.Content},
		{"Code", n.Code},
		{"Rubric", n.RubricCode},
		{"Output", n.Stdout},
		{"Errors", n.Stderr},
	} {
		if section.body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", section.title, strings.TrimRight(section.body, "\n"))
	}
	return b.String()
}

func (m Model) statusLine() string {
	st := m.state
	conn := m.styles.Offline.Render("● offline")
	if st.Connected {
		conn = m.styles.Online.Render("● online")
	}

	var status string
	switch {
	case st.Error != "":
		status = m.styles.Error.Render(st.Error)
	case st.StructuralError != "":
		status = m.styles.Error.Render("tree error: " + st.StructuralError)
	case st.Busy():
		status = fmt.Sprintf("%s %d/%d  %d nodes", st.Status, st.Progress.Iteration, st.Progress.Total, st.Progress.NodeCount)
	case st.Result != nil:
		status = fmt.Sprintf("done, score %.2f  %d nodes", st.Result.Score(), st.Progress.NodeCount)
	default:
		status = "idle"
	}
	if m.notice != "" {
		status += "  " + m.styles.Muted.Render(m.notice)
	}
	return conn + "  " + m.styles.Status.Render(status)
}

// comparisonView shows the baseline and the tree search side by side.
func (m Model) comparisonView(width int) string {
	st := m.state
	half := width/2 - 4
	if half < 10 {
		half = 10
	}

	var base strings.Builder
	base.WriteString(m.styles.PaneTitle.Render("Baseline") + "\n")
	if st.Baseline != nil {
		fmt.Fprintf(&base, "%s\nconfidence %.2f", st.Baseline.Answer, st.Baseline.Confidence)
	} else {
		fmt.Fprintf(&base, "%d steps", len(st.BaselineSteps))
		if n := len(st.BaselineSteps); n > 0 {
			last := st.BaselineSteps[n-1]
			fmt.Fprintf(&base, ", last step %d ok: %t", last.StepNumber, last.Success)
		}
	}

	var search strings.Builder
	search.WriteString(m.styles.PaneTitle.Render("Tree search") + "\n")
	switch {
	case st.Result != nil:
		fmt.Fprintf(&search, "%s\nconfidence %.2f", st.Result.Answer, st.Result.Confidence)
	case st.Provisional != nil:
		fmt.Fprintf(&search, "%s\n(provisional, confidence %.2f)", st.Provisional.Answer, st.Provisional.Confidence)
	default:
		fmt.Fprintf(&search, "%d nodes", st.Progress.NodeCount)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.styles.Pane.Width(half).Render(base.String()),
		m.styles.Pane.Width(half).Render(search.String()),
	)
}

// resultView shows the answer of a single run.
func (m Model) resultView(width int) string {
	st := m.state
	var b strings.Builder
	switch {
	case st.Result != nil && st.Result.Answer != "":
		fmt.Fprintf(&b, "%s\nconfidence %.2f", st.Result.Answer, st.Result.Confidence)
	case st.Result != nil:
		fmt.Fprintf(&b, "best score %.3f", st.Result.Score())
	case st.Provisional != nil:
		fmt.Fprintf(&b, "%s\n(provisional, confidence %.2f)", st.Provisional.Answer, st.Provisional.Confidence)
	default:
		return ""
	}
	return m.styles.Pane.Width(width - 4).Render(b.String())
}

func showsComparison(st store.State) bool {
	return st.Mode == store.ModeComparison
}
