package progress

import (
	"fmt"

	"github.com/ziadkadry99/treewatch/internal/store"
)

// Tracker turns session state changes into Reporter calls. Observe must be
// called from a single goroutine.
type Tracker struct {
	reporter   Reporter
	generation uint64
	active     bool
	iteration  int
	nodes      int
}

// NewTracker wraps r.
func NewTracker(r Reporter) *Tracker {
	return &Tracker{reporter: r}
}

// Observe reports the difference between st and the last observed state.
func (t *Tracker) Observe(st store.State) {
	if st.Busy() && (!t.active || st.Generation != t.generation) {
		if t.active {
			t.reporter.Finish("Superseded by a new run")
		}
		t.active = true
		t.generation = st.Generation
		t.iteration, t.nodes = 0, 0
		t.reporter.Start(startLabel(st), st.Progress.Total)
	}
	if !t.active {
		return
	}

	p := st.Progress
	if p.Iteration != t.iteration || p.NodeCount != t.nodes {
		t.iteration, t.nodes = p.Iteration, p.NodeCount
		t.reporter.Update(p.Iteration, fmt.Sprintf("%d nodes", p.NodeCount))
	}

	if !st.Busy() {
		t.active = false
		t.reporter.Finish(Summary(st))
	}
}

func startLabel(st store.State) string {
	verb := "Searching"
	if st.Mode == store.ModeComparison {
		verb = "Comparing"
	}
	if st.Progress.Question == "" {
		return verb
	}
	return fmt.Sprintf("%s: %s", verb, st.Progress.Question)
}

// Summary describes how a finished run ended.
func Summary(st store.State) string {
	switch {
	case st.Error != "":
		return "Run failed: " + st.Error
	case st.Result == nil:
		return fmt.Sprintf("Run ended with %d nodes", st.Progress.NodeCount)
	case st.Baseline != nil:
		return fmt.Sprintf("Baseline %.2f vs tree search %.2f (%d nodes)",
			st.Baseline.Confidence, st.Result.Score(), st.Progress.NodeCount)
	default:
		return fmt.Sprintf("Done: score %.2f over %d nodes", st.Result.Score(), st.Progress.NodeCount)
	}
}
