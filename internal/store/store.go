// Package store holds the session state fed by backend events. Apply is
// its only mutator and is called from a single dispatch goroutine; State
// may be called from anywhere.
package store

import (
	"fmt"
	"sync"

	"github.com/ziadkadry99/treewatch/internal/dataset"
	"github.com/ziadkadry99/treewatch/internal/protocol"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Status is the session status.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusComparing Status = "comparing"
)

// Mode says how many result artifacts a session produces.
type Mode string

const (
	ModeSingle     Mode = "single"
	ModeComparison Mode = "comparison"
)

// Progress holds the counters reported while a run is in flight.
type Progress struct {
	Question     string `json:"question,omitempty"`
	Iteration    int    `json:"iteration"`
	Total        int    `json:"total"`
	ContextChars int    `json:"context_chars,omitempty"`
	NumTraining  int    `json:"num_training,omitempty"`
	NumEval      int    `json:"num_eval,omitempty"`
	NodeCount    int    `json:"node_count"`
}

// Provisional is an answer reported before the run completes.
type Provisional struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// State is a read-only copy of the store. Snapshot is shared with the
// store and must not be modified; it is replaced wholesale, never patched.
type State struct {
	Status     Status `json:"status"`
	Mode       Mode   `json:"mode"`
	Generation uint64 `json:"generation"`
	RequestID  string `json:"request_id,omitempty"`
	Connected  bool   `json:"connected"`

	Snapshot tree.Snapshot `json:"-"`
	Progress Progress      `json:"progress"`

	Provisional   *Provisional             `json:"provisional,omitempty"`
	Result        *protocol.Result         `json:"result,omitempty"`
	Baseline      *protocol.BaselineResult `json:"baseline,omitempty"`
	BaselineSteps []protocol.BaselineStep  `json:"baseline_steps,omitempty"`

	Error           string `json:"error,omitempty"`
	StructuralError string `json:"structural_error,omitempty"`

	Dataset      *dataset.Summary `json:"dataset,omitempty"`
	DatasetError string           `json:"dataset_error,omitempty"`
}

// Busy reports whether a run is in flight.
func (s State) Busy() bool {
	return s.Status == StatusRunning || s.Status == StatusComparing
}

// Effect tells the caller what an applied event changed.
type Effect struct {
	// SnapshotChanged is set when the hierarchy must be rebuilt.
	SnapshotChanged bool
	// Reset is set when the event started a new generation.
	Reset bool
	// Dropped is set when the event was ignored as belonging to another
	// run.
	Dropped bool
	// Terminal is set when the event ended the run.
	Terminal bool
}

// Store is the session state machine.
type Store struct {
	mu sync.RWMutex
	st State

	// awaitingStart is set between a local BeginRun and the backend's
	// acknowledgement; updates arriving in that window belong to the
	// previous run.
	awaitingStart bool
	// unacked stays set until the backend acknowledges a local run, even
	// when an error closed the awaiting window first.
	unacked bool
	// completedGen is the generation whose terminal event was applied.
	// Run-scoped events of an ended generation are dropped.
	completedGen uint64
	completed    bool
}

// New returns an idle store.
func New() *Store {
	return &Store{st: State{Status: StatusIdle, Mode: ModeSingle}}
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.st
	out.BaselineSteps = append([]protocol.BaselineStep(nil), s.st.BaselineSteps...)
	return out
}

// Generation returns the current session generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Generation
}

// BeginRun starts a new session locally, before the request is sent. All
// tree data of the previous session is cleared.
func (s *Store) BeginRun(mode Mode, requestID, question string) Effect {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.Generation++
	s.resetLocked()
	s.st.Mode = mode
	s.st.RequestID = requestID
	s.st.Progress.Question = question
	if mode == ModeComparison {
		s.st.Status = StatusComparing
	} else {
		s.st.Status = StatusRunning
	}
	s.awaitingStart = true
	s.unacked = true
	return Effect{SnapshotChanged: true, Reset: true}
}

// SetStructuralError records a hierarchy failure that persisted long
// enough to be shown. An empty message clears it.
func (s *Store) SetStructuralError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.StructuralError = msg
}

// Apply folds one event into the state. Unknown kinds are no-ops.
func (s *Store) Apply(ev protocol.Event) Effect {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case protocol.RunStarted:
		return s.runStarted(e)
	case protocol.NodeUpdate:
		return s.nodeUpdate(e)
	case protocol.AnswerReady:
		if s.stale(e.RequestID) || s.ended() {
			return Effect{Dropped: true}
		}
		s.st.Provisional = &Provisional{Answer: e.Answer, Confidence: e.Confidence}
	case protocol.PlainStep:
		if s.stale(e.RequestID) || s.ended() {
			return Effect{Dropped: true}
		}
		s.st.BaselineSteps = append(s.st.BaselineSteps, e.Step)
	case protocol.RunComplete:
		return s.runComplete(e.RequestID, e.Snapshot, func() {
			r := e.Result
			s.st.Result = &r
		})
	case protocol.ComparisonComplete:
		return s.runComplete(e.RequestID, e.Snapshot, func() {
			r, b := e.Search, e.Baseline
			s.st.Result = &r
			s.st.Baseline = &b
			if len(b.Steps) > 0 {
				s.st.BaselineSteps = append([]protocol.BaselineStep(nil), b.Steps...)
			}
		})
	case protocol.Error:
		if s.foreign(e.RequestID) {
			return Effect{Dropped: true}
		}
		// Without request ids an error that arrives while a new run awaits
		// acknowledgement cannot be told apart from a rejection of that
		// run. It ends the run either way; unacked stays set so a late
		// run_started is still adopted as the local run.
		s.st.Error = e.Message
		s.endLocked()
		return Effect{Terminal: true}
	case protocol.HeartbeatAck, protocol.Unknown:
	case protocol.ConnectionState:
		s.st.Connected = e.Connected
		// The backend run lives on its socket. A request still awaiting
		// acknowledgement may be resent after reconnecting, so only an
		// acknowledged run ends here.
		if !e.Connected && s.st.Busy() && !s.awaitingStart {
			s.st.Error = "connection closed during run"
			s.unacked = false
			s.endLocked()
			return Effect{Terminal: true}
		}
	case protocol.ConnectionLost:
		s.st.Connected = false
		s.st.Error = fmt.Sprintf("connection lost after %d attempts: %s", e.Attempts, e.Err)
		s.unacked = false
		s.endLocked()
		return Effect{Terminal: true}
	case protocol.SendFailed:
		s.st.Error = fmt.Sprintf("%s request not sent: %v", e.Request.Type, e.Err)
		if e.Request.IsRun() && e.Request.RequestID == s.st.RequestID {
			s.unacked = false
			s.endLocked()
			return Effect{Terminal: true}
		}
	case protocol.DatasetLoaded:
		summary := e.Summary
		s.st.Dataset = &summary
		s.st.DatasetError = ""
	case protocol.DatasetFailed:
		s.st.DatasetError = e.Err.Error()
	}
	return Effect{}
}

func (s *Store) runStarted(e protocol.RunStarted) Effect {
	if s.foreign(e.RequestID) {
		return Effect{Dropped: true}
	}
	own := s.awaitingStart || s.unacked
	if !own && e.RequestID != "" && e.RequestID == s.st.RequestID {
		return Effect{}
	}

	eff := Effect{SnapshotChanged: true}
	if !own {
		// Run started by another client or before we attached.
		s.st.Generation++
		s.st.Mode = ModeSingle
		s.st.RequestID = e.RequestID
		eff.Reset = true
	}
	s.awaitingStart = false
	s.unacked = false

	question := s.st.Progress.Question
	s.resetLocked()
	if s.st.Mode == ModeComparison {
		s.st.Status = StatusComparing
	} else {
		s.st.Status = StatusRunning
	}
	s.st.Progress.Question = question
	if e.Question != "" {
		s.st.Progress.Question = e.Question
	}
	s.st.Progress.ContextChars = e.ContextChars
	s.st.Progress.NumTraining = e.NumTraining
	s.st.Progress.NumEval = e.NumEval
	return eff
}

func (s *Store) nodeUpdate(e protocol.NodeUpdate) Effect {
	if s.stale(e.RequestID) {
		return Effect{Dropped: true}
	}
	if s.ended() {
		return Effect{Dropped: true}
	}
	if !s.st.Busy() {
		// Attached to a run already in progress.
		s.st.Status = StatusRunning
		if s.st.Mode == ModeComparison {
			s.st.Status = StatusComparing
		}
	}

	s.st.Snapshot = e.Snapshot
	s.st.Progress.Iteration = e.Iteration
	if e.TotalIterations > 0 {
		s.st.Progress.Total = e.TotalIterations
	}
	s.st.Progress.NodeCount = len(e.Snapshot)
	return Effect{SnapshotChanged: true}
}

func (s *Store) runComplete(requestID string, snap tree.Snapshot, setResult func()) Effect {
	if s.stale(requestID) {
		return Effect{Dropped: true}
	}
	if s.ended() {
		return Effect{}
	}

	if snap != nil {
		s.st.Snapshot = snap
		s.st.Progress.NodeCount = len(snap)
	}
	setResult()
	s.st.Provisional = nil
	s.endLocked()
	return Effect{SnapshotChanged: snap != nil, Terminal: true}
}

// stale reports whether a run-scoped event belongs to another run: either
// a newer run is awaiting acknowledgement or the request ids differ.
func (s *Store) stale(requestID string) bool {
	return s.awaitingStart || s.foreign(requestID)
}

// ended reports whether the current generation already saw a terminal
// event.
func (s *Store) ended() bool {
	return s.completed && s.completedGen == s.st.Generation && s.st.Status == StatusIdle
}

// endLocked marks the current generation as ended.
func (s *Store) endLocked() {
	s.st.Status = StatusIdle
	s.awaitingStart = false
	s.completed = true
	s.completedGen = s.st.Generation
}

func (s *Store) foreign(requestID string) bool {
	return requestID != "" && s.st.RequestID != "" && requestID != s.st.RequestID
}

// resetLocked clears all per-session data, keeping connection and dataset
// state.
func (s *Store) resetLocked() {
	s.st.Snapshot = nil
	s.st.Progress = Progress{}
	s.st.Provisional = nil
	s.st.Result = nil
	s.st.Baseline = nil
	s.st.BaselineSteps = nil
	s.st.Error = ""
	s.st.StructuralError = ""
	s.completed = false
}
