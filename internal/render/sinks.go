package render

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogSink writes every batch to a logger. It backs the plain watch mode.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Render(b Batch) {
	var enter, update, exit int
	for _, op := range b.Ops {
		switch op.Name {
		case "enter":
			enter++
		case "update":
			update++
		case "exit":
			exit++
		}
		s.Logger.Debug().
			Str("op", op.Name).
			Str("node", op.View.ID).
			Str("type", string(op.View.Type)).
			Int("visits", op.View.Visits).
			Float64("value", op.View.Value).
			Msg(op.View.Label)
	}
	s.Logger.Info().
		Uint64("generation", b.Generation).
		Int("entered", enter).
		Int("updated", update).
		Int("exited", exit).
		Msg("Tree updated")
}

// Recorder keeps every batch it receives.
type Recorder struct {
	mu      sync.Mutex
	batches []Batch
}

func (r *Recorder) Render(b Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

// Batches returns a copy of the recorded batches.
func (r *Recorder) Batches() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Batch(nil), r.batches...)
}

// Last returns the most recent batch.
func (r *Recorder) Last() (Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return Batch{}, false
	}
	return r.batches[len(r.batches)-1], true
}

// Reset forgets all recorded batches.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.batches = nil
	r.mu.Unlock()
}

// Fanout delivers every batch to each sink in order.
type Fanout []Sink

func (f Fanout) Render(b Batch) {
	for _, s := range f {
		s.Render(b)
	}
}
