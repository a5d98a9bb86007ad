package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ziadkadry99/treewatch/internal/tree"
)

// ErrMalformed is returned by Decode for frames that are not a JSON object
// with an "event" discriminator, or whose payload does not match it.
var ErrMalformed = errors.New("malformed message")

type envelope struct {
	Event     *string `json:"event"`
	RequestID string  `json:"request_id"`
}

type runStartedWire struct {
	Question     string `json:"question"`
	ContextChars int    `json:"context_chars"`
	NumTraining  int    `json:"num_training"`
	NumEval      int    `json:"num_eval"`
}

type nodeUpdateWire struct {
	Node            *tree.Node    `json:"node"`
	TreeSnapshot    tree.Snapshot `json:"tree_snapshot"`
	Iteration       int           `json:"iteration"`
	TotalIterations int           `json:"total_iterations"`
}

type answerWire struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

type runCompleteWire struct {
	Answer         string          `json:"answer"`
	Confidence     float64         `json:"confidence"`
	BestRubricCode string          `json:"best_rubric_code"`
	BestScore      float64         `json:"best_score"`
	EvalResults    json.RawMessage `json:"eval_results"`
	TreeSnapshot   tree.Snapshot   `json:"tree_snapshot"`
	Tree           tree.Snapshot   `json:"tree"`
}

type searchWire struct {
	Answer     string             `json:"answer"`
	Confidence float64            `json:"confidence"`
	Metrics    map[string]float64 `json:"metrics"`
	Tree       tree.Snapshot      `json:"tree"`
}

type comparisonWire struct {
	Plain *BaselineResult `json:"plain"`
	MCTS  *searchWire     `json:"mcts"`
}

type errorWire struct {
	Message string `json:"message"`
}

type plainStepWire struct {
	Step *BaselineStep `json:"step"`
}

// Decode parses one inbound frame. Unrecognised discriminators decode to
// Unknown without error; structural problems return an error wrapping
// ErrMalformed.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == nil || *env.Event == "" {
		return nil, fmt.Errorf("%w: missing event discriminator", ErrMalformed)
	}

	kind, ok := wireKinds[*env.Event]
	if !ok {
		return Unknown{Name: *env.Event}, nil
	}

	switch kind {
	case KindRunStarted:
		var w runStartedWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		return RunStarted{
			RequestID:    env.RequestID,
			Question:     w.Question,
			ContextChars: w.ContextChars,
			NumTraining:  w.NumTraining,
			NumEval:      w.NumEval,
		}, nil

	case KindNodeUpdate:
		var w nodeUpdateWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		if w.TreeSnapshot == nil {
			return nil, fmt.Errorf("%w: %s without tree_snapshot", ErrMalformed, kind)
		}
		ev := NodeUpdate{
			RequestID:       env.RequestID,
			Snapshot:        w.TreeSnapshot,
			Iteration:       w.Iteration,
			TotalIterations: w.TotalIterations,
		}
		if w.Node != nil {
			ev.Node = *w.Node
		}
		return ev, nil

	case KindAnswerReady:
		var w answerWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		return AnswerReady{RequestID: env.RequestID, Answer: w.Answer, Confidence: w.Confidence}, nil

	case KindPlainStep:
		var w plainStepWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		if w.Step == nil {
			return nil, fmt.Errorf("%w: %s without step", ErrMalformed, kind)
		}
		return PlainStep{RequestID: env.RequestID, Step: *w.Step}, nil

	case KindRunComplete:
		var w runCompleteWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		snap := w.TreeSnapshot
		if snap == nil {
			snap = w.Tree
		}
		return RunComplete{
			RequestID: env.RequestID,
			Snapshot:  snap,
			Result: Result{
				Answer:      w.Answer,
				Confidence:  w.Confidence,
				BestCode:    w.BestRubricCode,
				BestScore:   w.BestScore,
				EvalResults: w.EvalResults,
			},
		}, nil

	case KindComparisonComplete:
		var w comparisonWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		if w.Plain == nil || w.MCTS == nil {
			return nil, fmt.Errorf("%w: %s needs both plain and mcts results", ErrMalformed, kind)
		}
		return ComparisonComplete{
			RequestID: env.RequestID,
			Snapshot:  w.MCTS.Tree,
			Baseline:  *w.Plain,
			Search: Result{
				Answer:     w.MCTS.Answer,
				Confidence: w.MCTS.Confidence,
				Metrics:    w.MCTS.Metrics,
			},
		}, nil

	case KindError:
		var w errorWire
		if err := unmarshalPayload(kind, data, &w); err != nil {
			return nil, err
		}
		return Error{RequestID: env.RequestID, Message: w.Message}, nil

	case KindHeartbeatAck:
		return HeartbeatAck{}, nil
	}

	return Unknown{Name: *env.Event}, nil
}

func unmarshalPayload(kind Kind, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, kind, err)
	}
	return nil
}
