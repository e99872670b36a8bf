package store

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

// Store defines the interface for recording storage.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, errData []byte, endedAt time.Time) error

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	CreateEvents(ctx context.Context, events []domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	Close() error
}
