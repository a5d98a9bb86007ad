// Package protocol defines the messages exchanged with the search backend
// over the websocket, plus the local events the client posts into the same
// dispatch queue.
package protocol

import (
	"encoding/json"

	"github.com/ziadkadry99/treewatch/internal/dataset"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

// Kind discriminates events.
type Kind string

const (
	KindRunStarted         Kind = "run_started"
	KindNodeUpdate         Kind = "node_update"
	KindAnswerReady        Kind = "answer_ready"
	KindPlainStep          Kind = "plain_step"
	KindRunComplete        Kind = "run_complete"
	KindComparisonComplete Kind = "comparison_complete"
	KindError              Kind = "error"
	KindHeartbeatAck       Kind = "heartbeat_ack"
	KindUnknown            Kind = "unknown"

	// Local events, never seen on the wire.
	KindConnectionState Kind = "connection_state"
	KindConnectionLost  Kind = "connection_lost"
	KindSendFailed      Kind = "send_failed"
	KindDatasetLoaded   Kind = "dataset_loaded"
	KindDatasetFailed   Kind = "dataset_failed"
)

// wireKinds maps every accepted "event" value to its kind. The two backend
// flavours name the start and completion events differently.
var wireKinds = map[string]Kind{
	"run_started":         KindRunStarted,
	"search_started":      KindRunStarted,
	"discovery_started":   KindRunStarted,
	"node_update":         KindNodeUpdate,
	"answer_ready":        KindAnswerReady,
	"plain_step":          KindPlainStep,
	"run_complete":        KindRunComplete,
	"search_complete":     KindRunComplete,
	"discovery_complete":  KindRunComplete,
	"comparison_complete": KindComparisonComplete,
	"error":               KindError,
	"heartbeat_ack":       KindHeartbeatAck,
	"pong":                KindHeartbeatAck,
}

// Event is the closed set of messages the state store understands.
type Event interface {
	Kind() Kind
}

// RunStarted acknowledges a run request.
type RunStarted struct {
	RequestID    string
	Question     string
	ContextChars int
	NumTraining  int
	NumEval      int
}

// NodeUpdate carries the node that just changed together with the full
// current snapshot.
type NodeUpdate struct {
	RequestID       string
	Node            tree.Node
	Snapshot        tree.Snapshot
	Iteration       int
	TotalIterations int
}

// AnswerReady carries a provisional answer before the run completes.
type AnswerReady struct {
	RequestID  string
	Answer     string
	Confidence float64
}

// BaselineStep is one step of the single-pass baseline in a comparison run.
type BaselineStep struct {
	StepNumber  int     `json:"step_number"`
	Code        string  `json:"code"`
	Stdout      string  `json:"stdout"`
	Stderr      string  `json:"stderr"`
	ExecutionMS float64 `json:"execution_ms"`
	Success     bool    `json:"success"`
}

// PlainStep reports progress of the comparison baseline.
type PlainStep struct {
	RequestID string
	Step      BaselineStep
}

// Result is the artifact produced by a completed tree search.
type Result struct {
	Answer      string             `json:"answer,omitempty"`
	Confidence  float64            `json:"confidence"`
	BestCode    string             `json:"best_code,omitempty"`
	BestScore   float64            `json:"best_score,omitempty"`
	EvalResults json.RawMessage    `json:"eval_results,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Score returns the headline score of the result.
func (r Result) Score() float64 {
	if r.BestScore != 0 {
		return r.BestScore
	}
	return r.Confidence
}

// BaselineResult is the artifact produced by the comparison baseline.
type BaselineResult struct {
	Answer     string             `json:"answer"`
	Confidence float64            `json:"confidence"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Steps      []BaselineStep     `json:"steps,omitempty"`
}

// RunComplete is the terminal event of a single run.
type RunComplete struct {
	RequestID string
	Snapshot  tree.Snapshot
	Result    Result
}

// ComparisonComplete is the terminal event of a comparison run.
type ComparisonComplete struct {
	RequestID string
	Snapshot  tree.Snapshot
	Baseline  BaselineResult
	Search    Result
}

// Error is a failure reported by the backend.
type Error struct {
	RequestID string
	Message   string
}

// HeartbeatAck answers a heartbeat.
type HeartbeatAck struct{}

// Unknown is an event whose discriminator is not recognised.
type Unknown struct {
	Name string
}

// ConnectionState reports that the websocket opened or closed.
type ConnectionState struct {
	Connected bool
}

// ConnectionLost reports that reconnection attempts were exhausted.
type ConnectionLost struct {
	Attempts int
	Err      string
}

// SendFailed reports an outbound request dropped after its retry.
type SendFailed struct {
	Request Request
	Err     error
}

// DatasetLoaded carries the response of the dataset loading call.
type DatasetLoaded struct {
	Summary dataset.Summary
}

// DatasetFailed reports a failed dataset call.
type DatasetFailed struct {
	Err error
}

func (RunStarted) Kind() Kind         { return KindRunStarted }
func (NodeUpdate) Kind() Kind         { return KindNodeUpdate }
func (AnswerReady) Kind() Kind        { return KindAnswerReady }
func (PlainStep) Kind() Kind          { return KindPlainStep }
func (RunComplete) Kind() Kind        { return KindRunComplete }
func (ComparisonComplete) Kind() Kind { return KindComparisonComplete }
func (Error) Kind() Kind              { return KindError }
func (HeartbeatAck) Kind() Kind       { return KindHeartbeatAck }
func (Unknown) Kind() Kind            { return KindUnknown }
func (ConnectionState) Kind() Kind    { return KindConnectionState }
func (ConnectionLost) Kind() Kind     { return KindConnectionLost }
func (SendFailed) Kind() Kind         { return KindSendFailed }
func (DatasetLoaded) Kind() Kind      { return KindDatasetLoaded }
func (DatasetFailed) Kind() Kind      { return KindDatasetFailed }
