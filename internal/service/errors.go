package service

import (
	"errors"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

var (
	ErrRunNotFound      = domain.ErrRunNotFound
	ErrTraceUnavailable = domain.ErrTraceUnavailable
	ErrSessionNotFound  = errors.New("replay session not found")
	ErrTooManySessions  = errors.New("too many replay sessions")
	ErrValidation       = errors.New("validation failed")
	ErrRunExists        = errors.New("run already exists")
	ErrRunCompleted     = errors.New("run already completed")
)
