package protocol

import (
	"encoding/json"

	"github.com/google/uuid"
)

// RequestType discriminates outbound requests.
type RequestType string

const (
	RequestAsk      RequestType = "ask"
	RequestDiscover RequestType = "discover"
	RequestCompare  RequestType = "compare"
	RequestPing     RequestType = "ping"
)

// Request is an outbound message. Run requests carry the user input and
// run parameters; the heartbeat carries only its type.
type Request struct {
	Type          RequestType `json:"type"`
	RequestID     string      `json:"request_id,omitempty"`
	Question      string      `json:"question,omitempty"`
	VideoIDs      []string    `json:"video_ids,omitempty"`
	MaxIterations int         `json:"max_iterations,omitempty"`
	MaxDepth      int         `json:"max_depth,omitempty"`
}

// RunParams are the tunables of a run request.
type RunParams struct {
	Question      string
	VideoIDs      []string
	MaxIterations int
	MaxDepth      int
}

// NewRun builds a run request of the given type with a fresh request id.
func NewRun(t RequestType, p RunParams) Request {
	return Request{
		Type:          t,
		RequestID:     uuid.NewString(),
		Question:      p.Question,
		VideoIDs:      p.VideoIDs,
		MaxIterations: p.MaxIterations,
		MaxDepth:      p.MaxDepth,
	}
}

// Ping returns the heartbeat request.
func Ping() Request {
	return Request{Type: RequestPing}
}

// IsRun reports whether r starts a session.
func (r Request) IsRun() bool {
	return r.Type != RequestPing
}

// IsComparison reports whether r starts a comparison session.
func (r Request) IsComparison() bool {
	return r.Type == RequestCompare
}

// Encode serializes r for the wire.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}
