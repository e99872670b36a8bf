package domain

import "encoding/json"

// TokenUsage holds the token counts captured for a step.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Total returns input plus output tokens.
func (u *TokenUsage) Total() int {
	if u == nil {
		return 0
	}
	return u.Input + u.Output
}

// ReplayStep is one recorded unit of agent execution.
// RelativeTime and Duration are milliseconds from the start of the run.
type ReplayStep struct {
	Index        int             `json:"index"`
	ID           string          `json:"id"`
	Type         StepType        `json:"type"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	RelativeTime int64           `json:"relativeTime"`
	Duration     int64           `json:"duration"`
	Tokens       *TokenUsage     `json:"tokens,omitempty"`
	Status       StepStatus      `json:"status"`
	Redacted     bool            `json:"redacted,omitempty"`
}

// End returns the offset at which the step stops being active.
func (s ReplayStep) End() int64 {
	return s.RelativeTime + s.Duration
}

// StateSnapshot captures cumulative counters at a step index.
type StateSnapshot struct {
	CompletedSteps int `json:"completedSteps"`
	TokensUsed     int `json:"tokensUsed"`
	Errors         int `json:"errors"`
}

// ReplayData is the immutable snapshot of one execution run.
type ReplayData struct {
	RunID          string          `json:"runId"`
	Steps          []ReplayStep    `json:"steps"`
	TotalDuration  int64           `json:"totalDuration"`
	StateSnapshots []StateSnapshot `json:"stateSnapshots"`
}

// PlaybackState is the mutable position of one viewing session.
type PlaybackState struct {
	IsPlaying        bool    `json:"isPlaying"`
	ElapsedTime      int64   `json:"elapsedTime"`
	CurrentStepIndex int     `json:"currentStepIndex"`
	PlaybackSpeed    float64 `json:"playbackSpeed"`
	TotalDuration    int64   `json:"totalDuration"`
	StepCount        int     `json:"stepCount"`
}
