package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/ziadkadry99/treewatch/internal/tree"
)

// NewMarkdown returns the markdown renderer for node payloads. Raw HTML
// in payloads is escaped.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// NodeHTML renders the inspector view of a node.
func NodeHTML(md goldmark.Markdown, n tree.Node) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(NodeMarkdown(n)), &buf); err != nil {
		return "", fmt.Errorf("rendering node %s: %w", n.ID, err)
	}
	return buf.String(), nil
}

// NodeMarkdown writes the inspector view of a node as markdown.
func NodeMarkdown(n tree.Node) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s\n\n", n.Type.Label())
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| id | `%s` |\n", n.ID)
	fmt.Fprintf(&b, "| depth | %d |\n", n.Depth)
	fmt.Fprintf(&b, "| visits | %d |\n", n.Visits)
	fmt.Fprintf(&b, "| value | %.3f |\n", n.Value())
	if n.RewardComposite != nil {
		fmt.Fprintf(&b, "| generalization | %.3f |\n", n.RewardGeneralization)
		fmt.Fprintf(&b, "| calibration | %.3f |\n", n.RewardCalibration)
		fmt.Fprintf(&b, "| discrimination | %.3f |\n", n.RewardDiscrimination)
		fmt.Fprintf(&b, "| validity | %.3f |\n", n.RewardValidity)
		fmt.Fprintf(&b, "| train MAE | %.3f |\n", n.TrainMAE)
		fmt.Fprintf(&b, "| eval MAE | %.3f |\n", n.EvalMAE)
	}
	if n.ExecutionMS > 0 {
		fmt.Fprintf(&b, "| execution | %.0f ms (ok: %t) |\n", n.ExecutionMS, n.ExecutionSuccess)
	}
	b.WriteString("\n")

	if n.Content != "" {
		b.WriteString(n.Content)
		b.WriteString("\n\n")
	}
	for _, code := range []string{n.Code, n.RubricCode} {
		if code != "" {
			fence(&b, "python", code)
		}
	}
	if n.Stdout != "" {
		b.WriteString("**stdout**\n\n")
		fence(&b, "text", n.Stdout)
	}
	if n.Stderr != "" {
		b.WriteString("**stderr**\n\n")
		fence(&b, "text", n.Stderr)
	}
	return b.String()
}

// fence writes s as a fenced code block long enough not to be closed by
// backticks inside s.
func fence(b *strings.Builder, lang, s string) {
	ticks := "```"
	for strings.Contains(s, ticks) {
		ticks += "`"
	}
	fmt.Fprintf(b, "%s%s\n%s\n%s\n\n", ticks, lang, strings.TrimRight(s, "\n"), ticks)
}
