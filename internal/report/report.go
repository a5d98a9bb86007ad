// Package report writes a finished run as a standalone HTML page: the tree
// as a navigable outline plus one rendered section per node.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"

	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Generator renders run reports.
type Generator struct {
	md   goldmark.Markdown
	tmpl *template.Template
}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{
		md:   NewMarkdown(),
		tmpl: template.Must(template.New("report").Parse(pageTemplate)),
	}
}

// pageData holds the data passed to the HTML template.
type pageData struct {
	Title    string
	Question string
	Summary  string
	Error    string
	Baseline string
	Answer   string
	BestCode template.HTML
	TreeHTML template.HTML
	Nodes    []nodeSection
}

type nodeSection struct {
	Anchor string
	HTML   template.HTML
}

// Write renders the run described by st and h. Nodes appear in
// breadth-first order.
func (g *Generator) Write(w io.Writer, st store.State, h *tree.Hierarchy, summary string) error {
	data := pageData{
		Title:    fmt.Sprintf("treewatch run %d", st.Generation),
		Question: st.Progress.Question,
		Summary:  summary,
		Error:    st.Error,
		TreeHTML: template.HTML(TreeHTML(h, "")),
	}
	if st.Baseline != nil {
		data.Baseline = fmt.Sprintf("%s\n\nconfidence %.2f", st.Baseline.Answer, st.Baseline.Confidence)
	}
	if st.Result != nil {
		if st.Result.Answer != "" {
			data.Answer = fmt.Sprintf("%s\n\nconfidence %.2f", st.Result.Answer, st.Result.Confidence)
		}
		if st.Result.BestCode != "" {
			var buf bytes.Buffer
			src := fmt.Sprintf("score %.3f\n\n```python\n%s\n```\n", st.Result.BestScore, st.Result.BestCode)
			if err := g.md.Convert([]byte(src), &buf); err != nil {
				return fmt.Errorf("rendering best rubric: %w", err)
			}
			data.BestCode = template.HTML(buf.String())
		}
	}

	for _, v := range h.Vertices() {
		n, ok := st.Snapshot[v.ID]
		if !ok {
			continue
		}
		out, err := NodeHTML(g.md, n)
		if err != nil {
			return err
		}
		data.Nodes = append(data.Nodes, nodeSection{Anchor: Anchor(v.ID), HTML: template.HTML(out)})
	}

	return g.tmpl.Execute(w, data)
}

// WriteFile renders the run into path, creating parent directories.
func (g *Generator) WriteFile(path string, st store.State, h *tree.Hierarchy, summary string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.Write(f, st, h, summary); err != nil {
		f.Close()
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return f.Close()
}
