package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
	"github.com/xiaot623/gogo/replayer/internal/projection"
)

// GetReplayData loads the replay data of a run from the remote trace source
// when one is configured, otherwise by projecting the local recording.
// Payloads are redacted according to the policy.
func (s *Service) GetReplayData(ctx context.Context, runID string) (*domain.ReplayData, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run_id is required", ErrValidation)
	}

	data, err := s.loadReplayData(ctx, runID)
	if err != nil {
		return nil, err
	}

	if s.policyEngine == nil {
		return data, nil
	}
	redacted, err := s.policyEngine.Apply(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to apply replay policy: %w", err)
	}
	return redacted, nil
}

func (s *Service) loadReplayData(ctx context.Context, runID string) (*domain.ReplayData, error) {
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, runID)
		if err != nil {
			s.logger.Warn("replay cache read failed", "run_id", runID, "error", err)
		} else if ok {
			return data, nil
		}
	}

	source := "local"
	if s.remote != nil {
		source = "remote"
	}

	start := time.Now()
	data, finished, err := s.fetch(ctx, runID)
	s.metrics.RecordFetch(ctx, source, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && finished {
		if err := s.cache.Set(ctx, data); err != nil {
			s.logger.Warn("replay cache write failed", "run_id", runID, "error", err)
		}
	}
	return data, nil
}

// fetch loads uncached replay data and reports whether the run is finished.
// Remote sources only serve finished runs.
func (s *Service) fetch(ctx context.Context, runID string) (*domain.ReplayData, bool, error) {
	if s.remote != nil {
		data, err := s.remote.GetReplayData(ctx, runID)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, false, err
	}
	events, err := s.store.GetEvents(ctx, runID, 0, nil, 0)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get run events: %w", err)
	}
	data, err := projection.Project(run, events)
	if err != nil {
		return nil, false, fmt.Errorf("failed to project run %s: %w", runID, err)
	}
	return data, run.Status.IsTerminal(), nil
}
