package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/replayer/internal/domain"
	"github.com/xiaot623/gogo/replayer/internal/replay"
)

// Session is one viewer's playback over a run.
type Session struct {
	ID        string
	RunID     string
	Engine    *replay.Engine
	CreatedAt time.Time

	lastActive atomic.Int64 // unix nanos
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// SessionManager owns the open replay sessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	opts     []replay.Option
	onClose  []func(*Session)
	logger   *slog.Logger
}

// NewSessionManager creates a manager holding at most max sessions. opts
// are applied to every engine it creates.
func NewSessionManager(max int, opts ...replay.Option) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		max:      max,
		opts:     opts,
		logger:   slog.Default().With("component", "sessions"),
	}
}

// OnClose registers fn to run after a session's engine is closed.
func (m *SessionManager) OnClose(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = append(m.onClose, fn)
}

// Open starts a new engine over data. Nothing is registered if the data is
// rejected.
func (m *SessionManager) Open(runID string, data *domain.ReplayData) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, ErrTooManySessions
	}

	id := "rps_" + uuid.New().String()[:8]
	opts := append([]replay.Option{
		replay.WithLogger(m.logger.With("session_id", id, "run_id", runID)),
	}, m.opts...)
	engine, err := replay.NewEngine(data, opts...)
	if err != nil {
		return nil, err
	}

	sess := &Session{ID: id, RunID: runID, Engine: engine, CreatedAt: time.Now()}
	sess.Touch()
	m.sessions[id] = sess
	return sess, nil
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Close stops and removes the session with id.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	hooks := m.onClose
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.closeSession(sess, hooks)
	return nil
}

// CloseIdle closes sessions unused since before and returns their ids.
func (m *SessionManager) CloseIdle(before time.Time) []string {
	m.mu.Lock()
	var idle []*Session
	for id, sess := range m.sessions {
		if sess.LastActive().Before(before) {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	hooks := m.onClose
	m.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, sess := range idle {
		m.closeSession(sess, hooks)
		ids = append(ids, sess.ID)
	}
	return ids
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		all = append(all, sess)
	}
	m.sessions = make(map[string]*Session)
	hooks := m.onClose
	m.mu.Unlock()

	for _, sess := range all {
		m.closeSession(sess, hooks)
	}
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) closeSession(sess *Session, hooks []func(*Session)) {
	_ = sess.Engine.Close()
	for _, fn := range hooks {
		fn(sess)
	}
}

// Command is a playback control request.
type Command struct {
	Op        replay.Op
	ElapsedMs int64
	Index     int
	Speed     float64
}

// OpenSession loads the replay data of a run and starts a playback session.
func (s *Service) OpenSession(ctx context.Context, req domain.OpenSessionRequest) (*domain.SessionResponse, error) {
	if req.RunID == "" {
		return nil, fmt.Errorf("%w: run_id is required", ErrValidation)
	}

	data, err := s.GetReplayData(ctx, req.RunID)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Open(req.RunID, data)
	if err != nil {
		if errors.Is(err, replay.ErrEmptyReplay) || errors.Is(err, replay.ErrInvalidReplay) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	s.metrics.SessionOpened(ctx)
	s.logger.Info("replay session opened", "session_id", sess.ID, "run_id", req.RunID, "steps", len(data.Steps))

	return s.sessionResponse(ctx, sess)
}

// GetSession returns the session with id.
func (s *Service) GetSession(sessionID string) (*Session, error) {
	return s.sessions.Get(sessionID)
}

// SessionState returns the current position of a session.
func (s *Service) SessionState(ctx context.Context, sessionID string) (*domain.SessionResponse, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.sessionResponse(ctx, sess)
}

// SessionData returns the replay data a session plays.
func (s *Service) SessionData(sessionID string) (*domain.ReplayData, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Data(), nil
}

// CloseSession stops a session.
func (s *Service) CloseSession(sessionID string) error {
	if err := s.sessions.Close(sessionID); err != nil {
		return err
	}
	s.logger.Info("replay session closed", "session_id", sessionID)
	return nil
}

// Control applies a playback command to a session.
func (s *Service) Control(ctx context.Context, sessionID string, cmd Command) (*domain.SessionResponse, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.Touch()

	e := sess.Engine
	switch cmd.Op {
	case replay.OpState:
	case replay.OpPlay:
		_, err = e.Play(ctx)
	case replay.OpPause:
		_, err = e.Pause(ctx)
	case replay.OpReset:
		_, err = e.Reset(ctx)
	case replay.OpStepForward:
		_, err = e.StepForward(ctx)
	case replay.OpStepBackward:
		_, err = e.StepBackward(ctx)
	case replay.OpSeek:
		_, err = e.Seek(ctx, cmd.ElapsedMs)
	case replay.OpJump:
		_, err = e.JumpToStep(ctx, cmd.Index)
	case replay.OpSpeed:
		_, err = e.SetSpeed(ctx, cmd.Speed)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrValidation, cmd.Op)
	}
	if err != nil {
		return nil, err
	}
	return s.sessionResponse(ctx, sess)
}

func (s *Service) sessionResponse(ctx context.Context, sess *Session) (*domain.SessionResponse, error) {
	state, step, err := sess.Engine.State(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.SessionResponse{
		SessionID:   sess.ID,
		RunID:       sess.RunID,
		State:       state,
		CurrentStep: step,
	}, nil
}
