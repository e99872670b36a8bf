package ws

import "github.com/xiaot623/gogo/replayer/internal/domain"

// Message types from client to server
const (
	TypeCommand = "command"
)

// Message types from server to client. Playback notifications use the
// replay event kinds: state, step, selected and completed.
const (
	TypeSnapshot = "snapshot"
	TypeAck      = "ack"
	TypeClosed   = "closed"
	TypeError    = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// StateMessage carries the playback position and the current step.
type StateMessage struct {
	BaseMessage
	State domain.PlaybackState `json:"state"`
	Step  *domain.ReplayStep   `json:"step,omitempty"`
}

// CommandMessage is sent by a client to control playback.
type CommandMessage struct {
	BaseMessage
	Op        string  `json:"op"`
	ElapsedMs *int64  `json:"elapsed_ms,omitempty"`
	Index     *int    `json:"index,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// ErrorMessage is sent when a client message cannot be applied.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidCommand = "invalid_command"
	ErrorCodeOutOfRange     = "out_of_range"
	ErrorCodeRateLimited    = "rate_limited"
	ErrorCodeSessionClosed  = "session_closed"
	ErrorCodeInternalError  = "internal_error"
)
