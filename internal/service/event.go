package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// recordEvent records an event to the store.
func (s *Service) recordEvent(ctx context.Context, runID string, eventType domain.EventType, payload interface{}, ts int64) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		EventID: newEventID(),
		RunID:   runID,
		Ts:      ts,
		Type:    eventType,
		Payload: payloadBytes,
	}

	return s.store.CreateEvent(ctx, event)
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:8]
}

// AppendEvents validates and stores a batch of events for an active run.
func (s *Service) AppendEvents(ctx context.Context, runID string, req domain.AppendEventsRequest) (*domain.AppendEventsResponse, error) {
	if len(req.Events) == 0 {
		return nil, fmt.Errorf("%w: events is required", ErrValidation)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrRunCompleted, runID)
	}

	now := time.Now().UnixMilli()
	events := make([]domain.Event, 0, len(req.Events))
	ids := make([]string, 0, len(req.Events))
	for i, in := range req.Events {
		if !in.Type.Valid() {
			return nil, fmt.Errorf("%w: events[%d]: unknown type %q", ErrValidation, i, in.Type)
		}
		switch in.Type {
		case domain.EventTypeRunStarted, domain.EventTypeRunDone, domain.EventTypeRunFailed:
			return nil, fmt.Errorf("%w: events[%d]: %s is recorded by the run lifecycle", ErrValidation, i, in.Type)
		}
		if len(in.Payload) > 0 && !json.Valid(in.Payload) {
			return nil, fmt.Errorf("%w: events[%d]: payload is not valid JSON", ErrValidation, i)
		}

		ts := in.Ts
		if ts == 0 {
			ts = now
		}
		id := newEventID()
		events = append(events, domain.Event{
			EventID: id,
			RunID:   runID,
			Ts:      ts,
			Type:    in.Type,
			Payload: in.Payload,
		})
		ids = append(ids, id)
	}

	if err := s.store.CreateEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("failed to append events: %w", err)
	}
	return &domain.AppendEventsResponse{RunID: runID, EventIDs: ids}, nil
}

// GetRunEvents returns the recorded events of a run.
func (s *Service) GetRunEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	return events, nil
}
