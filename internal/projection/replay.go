// Package projection turns the recorded event log of a run into replay steps.
package projection

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// ErrMalformedEvent is returned when an event payload cannot be decoded.
var ErrMalformedEvent = errors.New("malformed event payload")

type builder struct {
	origin int64
	steps  []domain.ReplayStep
	open   map[string][]int // call id -> positions of unfinished starts
}

// Project builds the replay data for run from its events.
//
// Calls are paired by call id into one step spanning start to finish.
// A call with no finishing event is pending and stays active until the
// run ends. Reasoning, decision and error events become instant steps
// unless their payload carries a duration.
func Project(run *domain.Run, events []domain.Event) (*domain.ReplayData, error) {
	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ts < sorted[j].Ts })

	b := &builder{
		origin: run.StartedAt.UnixMilli(),
		open:   make(map[string][]int),
	}
	if len(sorted) > 0 && sorted[0].Ts < b.origin {
		b.origin = sorted[0].Ts
	}

	end := b.origin
	if len(sorted) > 0 {
		end = sorted[len(sorted)-1].Ts
	}
	if run.EndedAt != nil && run.EndedAt.UnixMilli() > end {
		end = run.EndedAt.UnixMilli()
	}

	for _, evt := range sorted {
		if err := b.apply(evt); err != nil {
			return nil, fmt.Errorf("event %s (%s): %w", evt.EventID, evt.Type, err)
		}
	}

	// Unfinished calls run until the end of the recording.
	for _, positions := range b.open {
		for _, pos := range positions {
			b.steps[pos].Duration = max(end-b.origin-b.steps[pos].RelativeTime, 0)
		}
	}

	sort.SliceStable(b.steps, func(i, j int) bool {
		return b.steps[i].RelativeTime < b.steps[j].RelativeTime
	})

	total := end - b.origin
	for i := range b.steps {
		b.steps[i].Index = i
		total = max(total, b.steps[i].End())
	}

	return &domain.ReplayData{
		RunID:          run.RunID,
		Steps:          b.steps,
		TotalDuration:  total,
		StateSnapshots: Snapshots(b.steps),
	}, nil
}

// Snapshots computes cumulative counters after each step.
func Snapshots(steps []domain.ReplayStep) []domain.StateSnapshot {
	out := make([]domain.StateSnapshot, len(steps))
	var acc domain.StateSnapshot
	for i, step := range steps {
		switch step.Status {
		case domain.StepStatusCompleted:
			acc.CompletedSteps++
		case domain.StepStatusError:
			acc.CompletedSteps++
			acc.Errors++
		}
		acc.TokensUsed += step.Tokens.Total()
		out[i] = acc
	}
	return out
}

func (b *builder) apply(evt domain.Event) error {
	rel := evt.Ts - b.origin

	switch evt.Type {
	case domain.EventTypeLLMCallStarted:
		var p domain.LLMCallStartedPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		b.start(callKey("llm", p.CallID, evt.EventID), domain.ReplayStep{
			ID:           stepID(p.CallID, evt.EventID),
			Type:         domain.StepTypeLLMCall,
			Name:         p.Model,
			Description:  "LLM call to " + p.Model,
			Input:        p.Input,
			RelativeTime: rel,
			Status:       domain.StepStatusPending,
		})

	case domain.EventTypeLLMCallDone:
		var p domain.LLMCallDonePayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		step := b.finish(callKey("llm", p.CallID, evt.EventID), rel, domain.ReplayStep{
			ID:   stepID(p.CallID, evt.EventID),
			Type: domain.StepTypeLLMCall,
			Name: p.Model,
		})
		step.Output = p.Output
		if p.PromptTokens > 0 || p.CompletionTokens > 0 {
			step.Tokens = &domain.TokenUsage{Input: p.PromptTokens, Output: p.CompletionTokens}
		}
		step.Status = domain.StepStatusCompleted
		if p.Error != "" {
			step.Status = domain.StepStatusError
			if len(step.Output) == 0 {
				step.Output = mustJSON(map[string]string{"error": p.Error})
			}
		}

	case domain.EventTypeToolCallStarted:
		var p domain.ToolCallStartedPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		b.start(callKey("tool", p.ToolCallID, evt.EventID), domain.ReplayStep{
			ID:           stepID(p.ToolCallID, evt.EventID),
			Type:         domain.StepTypeToolCall,
			Name:         p.ToolName,
			Description:  "Tool call " + p.ToolName,
			Input:        p.Args,
			RelativeTime: rel,
			Status:       domain.StepStatusPending,
		})

	case domain.EventTypeToolResult:
		var p domain.ToolResultPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		step := b.finish(callKey("tool", p.ToolCallID, evt.EventID), rel, domain.ReplayStep{
			ID:   stepID(p.ToolCallID, evt.EventID),
			Type: domain.StepTypeToolCall,
		})
		step.Status = domain.StepStatusCompleted
		step.Output = p.Result
		if p.Status == "failed" {
			step.Status = domain.StepStatusError
			if len(p.Error) > 0 {
				step.Output = p.Error
			}
		}

	case domain.EventTypeReasoning:
		var p domain.ReasoningPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		b.instant(domain.ReplayStep{
			ID:           evt.EventID,
			Type:         domain.StepTypeReasoning,
			Name:         "reasoning",
			Description:  p.Text,
			RelativeTime: rel,
			Duration:     max(p.DurationMs, 0),
			Status:       domain.StepStatusCompleted,
		})

	case domain.EventTypeDecision:
		var p domain.DecisionPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		desc := p.Decision
		if p.Reason != "" {
			desc += ": " + p.Reason
		}
		b.instant(domain.ReplayStep{
			ID:           evt.EventID,
			Type:         domain.StepTypeDecision,
			Name:         p.Name,
			Description:  desc,
			Input:        p.Context,
			Output:       mustJSON(map[string]string{"decision": p.Decision}),
			RelativeTime: rel,
			Duration:     max(p.DurationMs, 0),
			Status:       domain.StepStatusCompleted,
		})

	case domain.EventTypeError:
		var p domain.ErrorPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		b.instant(domain.ReplayStep{
			ID:           evt.EventID,
			Type:         domain.StepTypeError,
			Name:         p.Code,
			Description:  p.Message,
			RelativeTime: rel,
			Status:       domain.StepStatusError,
		})
	}

	// run_started, run_done and run_failed only bound the timeline.
	return nil
}

func (b *builder) start(key string, step domain.ReplayStep) {
	b.steps = append(b.steps, step)
	b.open[key] = append(b.open[key], len(b.steps)-1)
}

// finish closes the latest open step for key. A finishing event without a
// start becomes an instant step at its own offset.
func (b *builder) finish(key string, rel int64, orphan domain.ReplayStep) *domain.ReplayStep {
	positions := b.open[key]
	if len(positions) == 0 {
		orphan.RelativeTime = rel
		b.steps = append(b.steps, orphan)
		return &b.steps[len(b.steps)-1]
	}
	pos := positions[len(positions)-1]
	if len(positions) == 1 {
		delete(b.open, key)
	} else {
		b.open[key] = positions[:len(positions)-1]
	}
	step := &b.steps[pos]
	step.Duration = max(rel-step.RelativeTime, 0)
	return step
}

func (b *builder) instant(step domain.ReplayStep) {
	b.steps = append(b.steps, step)
}

func callKey(kind, callID, eventID string) string {
	return kind + ":" + stepID(callID, eventID)
}

func stepID(callID, eventID string) string {
	if callID != "" {
		return callID
	}
	return eventID
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
