package service

import (
	"context"
	"log/slog"

	"github.com/xiaot623/gogo/replayer/internal/config"
	"github.com/xiaot623/gogo/replayer/internal/domain"
	"github.com/xiaot623/gogo/replayer/internal/policy"
	"github.com/xiaot623/gogo/replayer/internal/repository"
	"github.com/xiaot623/gogo/replayer/internal/replay"
	"github.com/xiaot623/gogo/replayer/internal/telemetry"
)

// TraceSource loads the replay data of a finished run.
type TraceSource interface {
	GetReplayData(ctx context.Context, runID string) (*domain.ReplayData, error)
}

// ReplayCache stores replay data of finished runs.
type ReplayCache interface {
	Get(ctx context.Context, runID string) (*domain.ReplayData, bool, error)
	Set(ctx context.Context, data *domain.ReplayData) error
	Invalidate(ctx context.Context, runID string) error
}

type Service struct {
	store        store.Store
	remote       TraceSource
	cache        ReplayCache
	config       *config.Config
	policyEngine *policy.Engine
	metrics      *telemetry.Metrics
	sessions     *SessionManager
	logger       *slog.Logger
}

// New creates the service. remote, cache and policyEngine are optional:
// without remote, replay data is projected from the local store.
func New(store store.Store, remote TraceSource, cache ReplayCache, cfg *config.Config, policyEngine *policy.Engine, metrics *telemetry.Metrics) *Service {
	if metrics == nil {
		metrics, _ = telemetry.NewMetrics(nil)
	}
	logger := slog.Default().With("component", "service")
	s := &Service{
		store:        store,
		remote:       remote,
		cache:        cache,
		config:       cfg,
		policyEngine: policyEngine,
		metrics:      metrics,
		logger:       logger,
	}
	s.sessions = NewSessionManager(cfg.MaxSessions,
		replay.WithTickInterval(cfg.TickInterval),
		replay.WithRecorder(metrics),
	)
	s.sessions.OnClose(func(*Session) {
		metrics.SessionClosed(context.Background())
	})
	return s
}

// Sessions returns the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Close closes every open session.
func (s *Service) Close() {
	s.sessions.CloseAll()
}
