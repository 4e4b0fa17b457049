package services

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/hamlaty/contest-backend/internal/types"
)

// FlowState is the tagged union persisted in Thread.StateJSON. Kind names
// the task kind that owns the sub-state; each kind-specific handler reads
// and writes only its own branch.
type FlowState struct {
	Kind       types.TaskKind   `json:"kind"`
	Prediction *PredictionState `json:"prediction,omitempty"`
}

type PredictionStep string

const (
	PredictionStepPickWinner PredictionStep = "pick_winner"
	PredictionStepScoreA     PredictionStep = "score_a"
	PredictionStepScoreB     PredictionStep = "score_b"
)

// PredictionState survives across webhook calls inside the thread row, so
// the 3-step flow needs no extra tables.
type PredictionState struct {
	Step   PredictionStep          `json:"step"`
	Winner *types.PredictionWinner `json:"winner,omitempty"`
	ScoreA *int                    `json:"score_a,omitempty"`
}

func decodeFlowState(raw datatypes.JSON) (*FlowState, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var state FlowState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode thread state: %w", err)
	}
	if state.Kind == "" {
		return nil, nil
	}
	return &state, nil
}

func encodeFlowState(state *FlowState) (datatypes.JSON, error) {
	if state == nil {
		return datatypes.JSON(`{}`), nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode thread state: %w", err)
	}
	return raw, nil
}
