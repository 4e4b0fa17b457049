package services

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hamlaty/contest-backend/internal/clients/graph"
	"github.com/hamlaty/contest-backend/internal/normalization"
	"github.com/hamlaty/contest-backend/internal/types"
)

const (
	payloadWinnerTeamA = "WINNER_TEAM_A"
	payloadWinnerTeamB = "WINNER_TEAM_B"
	payloadWinnerDraw  = "WINNER_DRAW"
)

type predictionSettings struct {
	TeamA          string
	TeamB          string
	MaxGoals       int
	AllowDraw      bool
	RequiresScores bool
}

// resolvePredictionSettings reads the task's metadata with the contest
// rules' prediction block as fallback for anything the task leaves unset.
func resolvePredictionSettings(contest *types.Contest, task *types.Task) predictionSettings {
	set := predictionSettings{
		TeamA:          "Team A",
		TeamB:          "Team B",
		MaxGoals:       10,
		AllowDraw:      true,
		RequiresScores: true,
	}

	if contest != nil && len(contest.Rules) > 0 {
		var rules struct {
			Prediction *predictionMeta `json:"prediction"`
		}
		if err := json.Unmarshal(contest.Rules, &rules); err == nil && rules.Prediction != nil {
			rules.Prediction.applyTo(&set)
		}
	}
	if task != nil && len(task.Metadata) > 0 {
		var meta predictionMeta
		if err := json.Unmarshal(task.Metadata, &meta); err == nil {
			meta.applyTo(&set)
		}
	}
	return set
}

type predictionMeta struct {
	TeamA          *string `json:"team_a"`
	TeamB          *string `json:"team_b"`
	MaxGoals       *int    `json:"max_goals"`
	AllowDraw      *bool   `json:"allow_draw"`
	RequiresScores *bool   `json:"requires_scores"`
}

func (m *predictionMeta) applyTo(set *predictionSettings) {
	if m.TeamA != nil && *m.TeamA != "" {
		set.TeamA = *m.TeamA
	}
	if m.TeamB != nil && *m.TeamB != "" {
		set.TeamB = *m.TeamB
	}
	if m.MaxGoals != nil && *m.MaxGoals > 0 {
		set.MaxGoals = *m.MaxGoals
	}
	if m.AllowDraw != nil {
		set.AllowDraw = *m.AllowDraw
	}
	if m.RequiresScores != nil {
		set.RequiresScores = *m.RequiresScores
	}
}

// predictionAnswer is the completed sub-flow's payload for the Entry row.
type predictionAnswer struct {
	Winner types.PredictionWinner
	ScoreA *int
	ScoreB *int
}

type predictionResult struct {
	// Reprompt: input was invalid for the current step; state is unchanged.
	Reprompt bool
	// NextState holds the sub-state to persist when the flow continues.
	NextState *PredictionState
	// Answer is set exactly when the sub-flow completed.
	Answer *predictionAnswer
	Prompt OutboundPrompt
}

// stepPrediction advances the 3-step FSM by one user input. It is pure:
// persistence and sending stay with the dispatcher.
func stepPrediction(set predictionSettings, state *PredictionState, text, quickReplyPayload string) predictionResult {
	if state == nil || state.Step == "" {
		state = &PredictionState{Step: PredictionStepPickWinner}
	}

	switch state.Step {
	case PredictionStepPickWinner:
		winner, ok := winnerFromPayload(quickReplyPayload, set.AllowDraw)
		if !ok {
			return predictionResult{Reprompt: true, Prompt: pickWinnerPrompt(set)}
		}
		if !set.RequiresScores {
			return predictionResult{Answer: &predictionAnswer{Winner: winner}}
		}
		next := &PredictionState{Step: PredictionStepScoreA, Winner: &winner}
		return predictionResult{NextState: next, Prompt: scorePrompt(set, set.TeamA)}

	case PredictionStepScoreA:
		score, ok := parseScore(text, set.MaxGoals)
		if !ok {
			return predictionResult{Reprompt: true, Prompt: scorePrompt(set, set.TeamA)}
		}
		next := &PredictionState{Step: PredictionStepScoreB, Winner: state.Winner, ScoreA: &score}
		return predictionResult{NextState: next, Prompt: scorePrompt(set, set.TeamB)}

	case PredictionStepScoreB:
		score, ok := parseScore(text, set.MaxGoals)
		if !ok {
			return predictionResult{Reprompt: true, Prompt: scorePrompt(set, set.TeamB)}
		}
		winner := types.PredictionWinnerTeamA
		if state.Winner != nil {
			winner = *state.Winner
		}
		return predictionResult{Answer: &predictionAnswer{Winner: winner, ScoreA: state.ScoreA, ScoreB: &score}}

	default:
		// Unknown persisted step: restart the sub-flow rather than wedge the
		// thread.
		return predictionResult{
			Reprompt:  true,
			NextState: &PredictionState{Step: PredictionStepPickWinner},
			Prompt:    pickWinnerPrompt(set),
		}
	}
}

func winnerFromPayload(payload string, allowDraw bool) (types.PredictionWinner, bool) {
	switch payload {
	case payloadWinnerTeamA:
		return types.PredictionWinnerTeamA, true
	case payloadWinnerTeamB:
		return types.PredictionWinnerTeamB, true
	case payloadWinnerDraw:
		if allowDraw {
			return types.PredictionWinnerDraw, true
		}
	}
	return "", false
}

// parseScore accepts digits only, Arabic-indic numerals folded first, in
// [0, maxGoals].
func parseScore(text string, maxGoals int) (int, bool) {
	compact := normalization.Compact(normalization.FoldDigits(text))
	if compact == "" {
		return 0, false
	}
	n, err := strconv.Atoi(compact)
	if err != nil {
		return 0, false
	}
	if n < 0 || n > maxGoals {
		return 0, false
	}
	return n, true
}

func pickWinnerPrompt(set predictionSettings) OutboundPrompt {
	replies := []graph.QuickReply{
		{Title: set.TeamA, Payload: payloadWinnerTeamA},
	}
	if set.AllowDraw {
		replies = append(replies, graph.QuickReply{Title: "Draw", Payload: payloadWinnerDraw})
	}
	replies = append(replies, graph.QuickReply{Title: set.TeamB, Payload: payloadWinnerTeamB})
	return OutboundPrompt{
		Text:         fmt.Sprintf("Who wins %s vs %s?", set.TeamA, set.TeamB),
		QuickReplies: replies,
	}
}

func scorePrompt(set predictionSettings, team string) OutboundPrompt {
	return OutboundPrompt{
		Text: fmt.Sprintf("How many goals for %s? Send a number between 0 and %d.", team, set.MaxGoals),
	}
}
