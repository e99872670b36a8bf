package domain

import "encoding/json"

// CreateRunRequest represents the request to start recording a run.
type CreateRunRequest struct {
	RunID   string `json:"run_id,omitempty"`
	AgentID string `json:"agent_id"`
	Ts      int64  `json:"ts,omitempty"` // Unix milliseconds, defaults to now
}

// EventInput is a single event submitted by a recorder.
type EventInput struct {
	Type    EventType       `json:"type"`
	Ts      int64           `json:"ts,omitempty"` // Unix milliseconds, defaults to now
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AppendEventsRequest represents a batch of events for one run.
type AppendEventsRequest struct {
	Events []EventInput `json:"events"`
}

// AppendEventsResponse represents the response after appending events.
type AppendEventsResponse struct {
	RunID    string   `json:"run_id"`
	EventIDs []string `json:"event_ids"`
}

// CompleteRunRequest marks a run finished.
type CompleteRunRequest struct {
	Status RunStatus       `json:"status"` // DONE or FAILED
	Error  json.RawMessage `json:"error,omitempty"`
	Ts     int64           `json:"ts,omitempty"`
}

// ListRunsResponse represents the response for listing runs.
type ListRunsResponse struct {
	Runs []Run `json:"runs"`
}

// OpenSessionRequest opens a replay viewing session.
type OpenSessionRequest struct {
	RunID string `json:"run_id"`
}

// SessionResponse describes a replay session and its current position.
type SessionResponse struct {
	SessionID   string        `json:"session_id"`
	RunID       string        `json:"run_id"`
	State       PlaybackState `json:"state"`
	CurrentStep *ReplayStep   `json:"current_step,omitempty"`
}

// SeekRequest moves the playback position.
type SeekRequest struct {
	ElapsedMs *int64 `json:"elapsed_ms"`
}

// JumpRequest selects a step by index.
type JumpRequest struct {
	Index *int `json:"index"`
}

// SpeedRequest changes the playback speed.
type SpeedRequest struct {
	Speed float64 `json:"speed"`
}
