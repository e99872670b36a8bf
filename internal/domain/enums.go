// Package domain defines the core domain models for the replay service.
package domain

// RunStatus represents the status of a recorded run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)

// IsTerminal reports whether no further events are expected for the run.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusDone || s == RunStatusFailed
}

// EventType represents the type of a recorded trace event.
type EventType string

const (
	EventTypeRunStarted EventType = "run_started"
	EventTypeRunDone    EventType = "run_done"
	EventTypeRunFailed  EventType = "run_failed"

	// LLM call events
	EventTypeLLMCallStarted EventType = "llm_call_started"
	EventTypeLLMCallDone    EventType = "llm_call_done"

	// Tool events
	EventTypeToolCallStarted EventType = "tool_call_started"
	EventTypeToolResult      EventType = "tool_result"

	// Instant events, each becomes a zero-length step unless a duration is given
	EventTypeReasoning EventType = "reasoning"
	EventTypeDecision  EventType = "decision"
	EventTypeError     EventType = "error"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeRunStarted, EventTypeRunDone, EventTypeRunFailed,
		EventTypeLLMCallStarted, EventTypeLLMCallDone,
		EventTypeToolCallStarted, EventTypeToolResult,
		EventTypeReasoning, EventTypeDecision, EventTypeError:
		return true
	}
	return false
}

// StepType categorizes a replay step. The set is closed.
type StepType string

const (
	StepTypeToolCall  StepType = "tool_call"
	StepTypeLLMCall   StepType = "llm_call"
	StepTypeReasoning StepType = "reasoning"
	StepTypeDecision  StepType = "decision"
	StepTypeError     StepType = "error"
)

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeToolCall, StepTypeLLMCall, StepTypeReasoning, StepTypeDecision, StepTypeError:
		return true
	}
	return false
}

// StepStatus represents the outcome of a recorded step.
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusError     StepStatus = "error"
	StepStatusPending   StepStatus = "pending"
)

// Valid reports whether s is one of the known step statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusCompleted, StepStatusError, StepStatusPending:
		return true
	}
	return false
}
