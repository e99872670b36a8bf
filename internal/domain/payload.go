package domain

import "encoding/json"

// RunStartedPayload is the payload for run_started event.
type RunStartedPayload struct {
	AgentID string `json:"agent_id"`
}

// RunFailedPayload is the payload for run_failed event.
type RunFailedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LLMCallStartedPayload is the payload for llm_call_started event.
type LLMCallStartedPayload struct {
	CallID string          `json:"call_id"`
	Model  string          `json:"model"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// LLMCallDonePayload is the payload for llm_call_done event.
type LLMCallDonePayload struct {
	CallID           string          `json:"call_id"`
	Model            string          `json:"model,omitempty"`
	Output           json.RawMessage `json:"output,omitempty"`
	PromptTokens     int             `json:"prompt_tokens,omitempty"`
	CompletionTokens int             `json:"completion_tokens,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// ToolCallStartedPayload is the payload for tool_call_started event.
type ToolCallStartedPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args,omitempty"`
}

// ToolResultPayload is the payload for tool_result event.
type ToolResultPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	Status     string          `json:"status"` // succeeded or failed
	Result     json.RawMessage `json:"result,omitempty"`
	Error      json.RawMessage `json:"error,omitempty"`
}

// ReasoningPayload is the payload for reasoning event.
type ReasoningPayload struct {
	Text       string `json:"text"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// DecisionPayload is the payload for decision event.
type DecisionPayload struct {
	Name       string          `json:"name"`
	Decision   string          `json:"decision"`
	Reason     string          `json:"reason,omitempty"`
	Context    json.RawMessage `json:"context,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// ErrorPayload is the payload for error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
