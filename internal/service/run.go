package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// CreateRun starts recording a new run.
func (s *Service) CreateRun(ctx context.Context, req domain.CreateRunRequest) (*domain.Run, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", ErrValidation)
	}

	runID := req.RunID
	if runID == "" {
		runID = "run_" + uuid.New().String()[:8]
	} else {
		existing, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", ErrRunExists, runID)
		}
	}

	startedAt := time.Now()
	if req.Ts > 0 {
		startedAt = time.UnixMilli(req.Ts)
	}

	run := &domain.Run{
		RunID:     runID,
		AgentID:   req.AgentID,
		Status:    domain.RunStatusRunning,
		StartedAt: startedAt,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := s.recordEvent(ctx, runID, domain.EventTypeRunStarted, domain.RunStartedPayload{
		AgentID: req.AgentID,
	}, startedAt.UnixMilli()); err != nil {
		s.logger.Warn("failed to record run_started", "run_id", runID, "error", err)
	}

	return run, nil
}

// GetRun returns a run or ErrRunNotFound.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return runs, nil
}

// CompleteRun marks a run finished and records the terminal event.
func (s *Service) CompleteRun(ctx context.Context, runID string, req domain.CompleteRunRequest) (*domain.Run, error) {
	if !req.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: status must be DONE or FAILED", ErrValidation)
	}
	if len(req.Error) > 0 && !json.Valid(req.Error) {
		return nil, fmt.Errorf("%w: error is not valid JSON", ErrValidation)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunCompleted, runID)
	}

	endedAt := time.Now()
	if req.Ts > 0 {
		endedAt = time.UnixMilli(req.Ts)
	}

	eventType := domain.EventTypeRunDone
	var payload interface{} = struct{}{}
	if req.Status == domain.RunStatusFailed {
		eventType = domain.EventTypeRunFailed
		payload = req.Error
		if len(req.Error) == 0 {
			payload = domain.RunFailedPayload{Code: "failed"}
		}
	}
	if err := s.recordEvent(ctx, runID, eventType, payload, endedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", eventType, err)
	}

	var errData []byte
	if len(req.Error) > 0 {
		errData = req.Error
	}
	if err := s.store.UpdateRunCompleted(ctx, runID, req.Status, errData, endedAt); err != nil {
		return nil, fmt.Errorf("failed to complete run: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, runID); err != nil {
			s.logger.Warn("failed to invalidate replay cache", "run_id", runID, "error", err)
		}
	}

	return s.GetRun(ctx, runID)
}
