package service

import (
	"context"
	"time"
)

// RunSessionReaper closes sessions idle for longer than the configured
// timeout until ctx is done.
func (s *Service) RunSessionReaper(ctx context.Context) {
	timeout := s.config.SessionIdleTimeout
	if timeout <= 0 {
		return
	}
	interval := min(max(timeout/4, time.Second), time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdleSessions(time.Now())
		}
	}
}

func (s *Service) sweepIdleSessions(now time.Time) {
	closed := s.sessions.CloseIdle(now.Add(-s.config.SessionIdleTimeout))
	for _, id := range closed {
		s.logger.Info("replay session expired", "session_id", id)
	}
}
