package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ziadkadry99/treewatch/internal/protocol"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

func sampleSnapshot() tree.Snapshot {
	score := 0.75
	return tree.Snapshot{
		"r": {ID: "r", ChildrenIDs: []string{"a", "b"}, Type: tree.NodeRoot, Content: "What is said?"},
		"a": {
			ID: "a", ParentID: tree.StringPtr("r"), ChildrenIDs: []string{"c"}, Type: tree.NodeHypothesis,
			Depth: 1, Visits: 2, RewardComposite: &score, Content: "Look at <b>chapter</b> one",
		},
		"b": {ID: "b", ParentID: tree.StringPtr("r"), Type: tree.NodeCode, Depth: 1, Code: "x = 1\n```\nprint(x)", Stdout: "1\n"},
		"c": {ID: "c", ParentID: tree.StringPtr("a"), Type: tree.NodeAnswer, Depth: 2},
	}
}

func TestTreeHTML(t *testing.T) {
	h, err := tree.Build(sampleSnapshot(), 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out := TreeHTML(h, "a")
	if strings.Count(out, "<ul>") != strings.Count(out, "</ul>") {
		t.Errorf("unbalanced lists:\n%s", out)
	}
	if strings.Count(out, "<li") != 4 {
		t.Errorf("expected 4 items, got %d", strings.Count(out, "<li"))
	}
	if !strings.Contains(out, `<li class="node active">`) {
		t.Error("active node not highlighted")
	}
	// Children appear in snapshot order, nested under their parent.
	ia, ic, ib := strings.Index(out, "#node-a"), strings.Index(out, "#node-c"), strings.Index(out, "#node-b")
	if !(ia < ic && ic < ib) {
		t.Errorf("unexpected order a=%d c=%d b=%d", ia, ic, ib)
	}

	if TreeHTML(tree.Empty(0), "") != "" {
		t.Error("empty tree should render nothing")
	}
}

func TestTreeHTMLDeepChain(t *testing.T) {
	const depth = 5000
	snap := tree.Snapshot{}
	for i := 0; i < depth; i++ {
		id := strconv.Itoa(i)
		n := tree.Node{ID: id, Type: tree.NodeHypothesis, Depth: i}
		if i > 0 {
			n.ParentID = tree.StringPtr(strconv.Itoa(i - 1))
		}
		if i < depth-1 {
			n.ChildrenIDs = []string{strconv.Itoa(i + 1)}
		}
		snap[id] = n
	}
	h, err := tree.Build(snap, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out := TreeHTML(h, "")
	if got := strings.Count(out, "</ul>"); got != depth {
		t.Errorf("expected %d closing lists, got %d", depth, got)
	}
}

func TestNodeMarkdown(t *testing.T) {
	snap := sampleSnapshot()

	md := NodeMarkdown(snap["a"])
	if !strings.Contains(md, "| generalization |") {
		t.Error("reward breakdown missing for a scored node")
	}
	if strings.Contains(NodeMarkdown(snap["c"]), "generalization") {
		t.Error("unscored node should not show rewards")
	}

	code := NodeMarkdown(snap["b"])
	if !strings.Contains(code, "````python") {
		t.Errorf("fence must outgrow backticks in the code:\n%s", code)
	}
	if !strings.Contains(code, "**stdout**") {
		t.Error("stdout section missing")
	}
}

func TestNodeHTMLEscapesRawHTML(t *testing.T) {
	out, err := NodeHTML(NewMarkdown(), sampleSnapshot()["a"])
	if err != nil {
		t.Fatalf("NodeHTML: %v", err)
	}
	if strings.Contains(out, "<b>chapter</b>") {
		t.Error("raw HTML in node content must not pass through")
	}
	if !strings.Contains(out, "<table>") {
		t.Error("expected the GFM stats table")
	}
}

func TestWriteReport(t *testing.T) {
	snap := sampleSnapshot()
	h, err := tree.Build(snap, 3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	st := store.State{
		Generation: 3,
		Mode:       store.ModeComparison,
		Snapshot:   snap,
		Progress:   store.Progress{Question: "What is said?"},
		Baseline:   &protocol.BaselineResult{Answer: "plain"},
		Result:     &protocol.Result{Answer: "tree", Confidence: 0.9, BestCode: "def score(x):\n    return 1", BestScore: 0.5},
	}

	var buf bytes.Buffer
	if err := NewGenerator().Write(&buf, st, h, "Done"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"treewatch run 3",
		"What is said?",
		"plain",
		"confidence 0.90",
		"Best rubric",
		`<section id="node-r">`,
		`<section id="node-c">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Index(out, `id="node-a"`) > strings.Index(out, `id="node-c"`) {
		t.Error("sections should follow breadth-first order")
	}
}

func TestWriteFile(t *testing.T) {
	h, err := tree.Build(sampleSnapshot(), 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	path := filepath.Join(t.TempDir(), "runs", "report.html")
	if err := NewGenerator().WriteFile(path, store.State{Snapshot: sampleSnapshot()}, h, "ok"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "<!DOCTYPE html>") {
		t.Error("expected an HTML document")
	}
}
