package tree

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"
)

// NodeType is the semantic role of a node in the search tree. The backend
// variants use different vocabularies for the same roles, so each value maps
// onto one Role.
type NodeType string

const (
	NodeQuestion   NodeType = "question"
	NodeRoot       NodeType = "root"
	NodeStrategy   NodeType = "strategy"
	NodeHypothesis NodeType = "hypothesis"
	NodeCode       NodeType = "code"
	NodeRefinement NodeType = "refinement"
	NodeResult     NodeType = "result"
	NodeAnswer     NodeType = "answer"
	NodeFinal      NodeType = "final"
)

// Role groups node types that render the same way.
type Role int

const (
	RoleUnknown Role = iota
	RoleRoot
	RoleHypothesis
	RoleRefinement
	RoleResult
	RoleFinal
)

var roleOf = map[NodeType]Role{
	NodeQuestion:   RoleRoot,
	NodeRoot:       RoleRoot,
	NodeStrategy:   RoleHypothesis,
	NodeHypothesis: RoleHypothesis,
	NodeCode:       RoleRefinement,
	NodeRefinement: RoleRefinement,
	NodeResult:     RoleResult,
	NodeAnswer:     RoleFinal,
	NodeFinal:      RoleFinal,
}

// Role returns the role of t, or RoleUnknown for types outside the closed set.
func (t NodeType) Role() Role {
	return roleOf[t]
}

// Label returns the human-readable name of the node type.
func (t NodeType) Label() string {
	switch t {
	case NodeQuestion:
		return "Question"
	case NodeRoot:
		return "Root"
	case NodeStrategy:
		return "Strategy"
	case NodeHypothesis:
		return "Hypothesis"
	case NodeCode:
		return "Code"
	case NodeRefinement:
		return "Refinement"
	case NodeResult:
		return "Result"
	case NodeAnswer:
		return "Answer"
	case NodeFinal:
		return "Final"
	}
	if t == "" {
		return "Node"
	}
	return string(t)
}

// Color returns the hex colour used for the node type in every renderer.
func (t NodeType) Color() string {
	switch t.Role() {
	case RoleRoot:
		return "#8b5cf6"
	case RoleHypothesis:
		return "#3b82f6"
	case RoleRefinement:
		return "#f59e0b"
	case RoleResult:
		return "#10b981"
	case RoleFinal:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

// Node is a single step of the search tree as streamed by the backend.
// Payload fields are opaque and passed through untouched.
type Node struct {
	ID          string   `json:"id"`
	ParentID    *string  `json:"parent_id"`
	ChildrenIDs []string `json:"children_ids"`
	Type        NodeType `json:"node_type"`
	Depth       int      `json:"depth"`
	Visits      int      `json:"visits"`

	TotalValue float64 `json:"total_value"`
	AvgValue   float64 `json:"avg_value"`

	RewardComposite      *float64 `json:"reward_composite,omitempty"`
	RewardGeneralization float64  `json:"reward_generalization,omitempty"`
	RewardCalibration    float64  `json:"reward_calibration,omitempty"`
	RewardDiscrimination float64  `json:"reward_discrimination,omitempty"`
	RewardValidity       float64  `json:"reward_validity,omitempty"`
	RewardIteration      float64  `json:"reward_iteration,omitempty"`
	TrainMAE             float64  `json:"train_mae,omitempty"`
	EvalMAE              float64  `json:"eval_mae,omitempty"`

	Content          string  `json:"content,omitempty"`
	Code             string  `json:"code,omitempty"`
	RubricCode       string  `json:"rubric_code,omitempty"`
	Stdout           string  `json:"stdout,omitempty"`
	Stderr           string  `json:"stderr,omitempty"`
	ExecutionMS      float64 `json:"execution_ms,omitempty"`
	ExecutionSuccess bool    `json:"execution_success,omitempty"`
}

// UnmarshalJSON accepts both backend vocabularies: "children" next to
// "children_ids", and "repl_stdout"/"repl_stderr" next to "stdout"/"stderr".
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	aux := struct {
		*plain
		Children   []string `json:"children"`
		ReplStdout string   `json:"repl_stdout"`
		ReplStderr string   `json:"repl_stderr"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if n.ChildrenIDs == nil && aux.Children != nil {
		n.ChildrenIDs = aux.Children
	}
	if n.Stdout == "" {
		n.Stdout = aux.ReplStdout
	}
	if n.Stderr == "" {
		n.Stderr = aux.ReplStderr
	}
	return nil
}

// IsRoot reports whether n has no parent.
func (n Node) IsRoot() bool {
	return n.ParentID == nil || *n.ParentID == ""
}

// Parent returns the parent id, or "" for the root.
func (n Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// Value is the composite value shown for the node: the composite reward
// when the backend scores with reward signals, the mean backed-up value
// otherwise.
func (n Node) Value() float64 {
	if n.RewardComposite != nil {
		return *n.RewardComposite
	}
	return n.AvgValue
}

// Title is a one-line label for the node.
func (n Node) Title() string {
	for _, s := range []string{n.Content, n.Code, n.RubricCode} {
		if line := firstLine(s); line != "" {
			return truncate(line, 60)
		}
	}
	return n.Type.Label()
}

// Output returns the captured output of the node, preferring stdout.
func (n Node) Output() string {
	if n.Stdout != "" {
		return n.Stdout
	}
	return n.Stderr
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// Snapshot is the flat node registry keyed by node id. A snapshot is
// replaced wholesale on every update and never modified after it is
// published.
type Snapshot map[string]Node

// IDs returns the snapshot keys in sorted order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StringPtr is a convenience for building parent ids.
func StringPtr(s string) *string {
	return &s
}
