package progress

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ziadkadry99/treewatch/internal/protocol"
	"github.com/ziadkadry99/treewatch/internal/store"
)

type callLog struct {
	calls []string
}

func (c *callLog) Start(label string, total int) {
	c.calls = append(c.calls, fmt.Sprintf("start %s/%d", label, total))
}

func (c *callLog) Update(current int, message string) {
	c.calls = append(c.calls, fmt.Sprintf("update %d %s", current, message))
}

func (c *callLog) Finish(message string) {
	c.calls = append(c.calls, "finish "+message)
}

func TestTrackerFollowsRun(t *testing.T) {
	log := &callLog{}
	tr := NewTracker(log)

	running := store.State{Status: store.StatusRunning, Mode: store.ModeSingle, Generation: 1,
		Progress: store.Progress{Question: "why", Total: 10}}
	tr.Observe(running)
	tr.Observe(running)

	running.Progress.Iteration = 1
	running.Progress.NodeCount = 3
	tr.Observe(running)

	done := running
	done.Status = store.StatusIdle
	done.Result = &protocol.Result{Confidence: 0.75}
	tr.Observe(done)
	tr.Observe(done)

	assert.Equal(t, []string{
		"start Searching: why/10",
		"update 1 3 nodes",
		"finish Done: score 0.75 over 3 nodes",
	}, log.calls)
}

func TestTrackerNewRunSupersedes(t *testing.T) {
	log := &callLog{}
	tr := NewTracker(log)

	tr.Observe(store.State{Status: store.StatusRunning, Generation: 1})
	tr.Observe(store.State{Status: store.StatusComparing, Mode: store.ModeComparison, Generation: 2})

	assert.Equal(t, []string{
		"start Searching/0",
		"finish Superseded by a new run",
		"start Comparing/0",
	}, log.calls)
}

func TestTrackerIgnoresIdleBeforeRun(t *testing.T) {
	log := &callLog{}
	tr := NewTracker(log)
	tr.Observe(store.State{Status: store.StatusIdle, Connected: true})
	assert.Empty(t, log.calls)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "Run failed: boom", Summary(store.State{Error: "boom"}))
	assert.Equal(t, "Run ended with 2 nodes", Summary(store.State{Progress: store.Progress{NodeCount: 2}}))
	assert.Equal(t, "Baseline 0.40 vs tree search 0.90 (5 nodes)", Summary(store.State{
		Result:   &protocol.Result{Confidence: 0.9},
		Baseline: &protocol.BaselineResult{Confidence: 0.4},
		Progress: store.Progress{NodeCount: 5},
	}))
}

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Out: &buf}
	r.Start("Searching", 4)
	r.Update(2, "7 nodes")
	r.Finish("done")
	assert.Equal(t, "Searching (4 iterations)\n[2/4] 7 nodes\ndone\n", buf.String())
}
