package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/xiaot623/gogo/replayer/internal/config"
	"github.com/xiaot623/gogo/replayer/internal/replay"
	"github.com/xiaot623/gogo/replayer/internal/service"
)

const commandTimeout = 5 * time.Second

// Server streams replay sessions over websocket connections.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	service  *service.Service
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	watched map[string]bool
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, hub *Hub, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		hub:     hub,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  slog.Default().With("component", "ws"),
		watched: make(map[string]bool),
	}
}

// HandleSession upgrades the request and attaches it to a replay session.
func (s *Server) HandleSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	sess, err := s.service.GetSession(sessionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	wsConn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return err
	}

	conn := s.hub.NewConnection(wsConn, sess.ID, rate.Limit(s.cfg.WSCommandRate), s.cfg.WSCommandBurst)
	s.hub.Register(conn)
	s.watch(sess)
	sess.Touch()

	s.logger.Info("viewer connected", "conn_id", conn.ID, "session_id", sess.ID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	state, step, err := sess.Engine.State(ctx)
	cancel()
	if err == nil {
		_ = s.hub.SendJSONToConnection(conn, StateMessage{
			BaseMessage: s.base(TypeSnapshot, sess.ID, ""),
			State:       state,
			Step:        step,
		})
	}

	go s.writePump(conn, sess)
	go s.readPump(conn)

	return nil
}

// watch subscribes once per session and fans engine events out through the
// hub. The subscription ends with the engine.
func (s *Server) watch(sess *service.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watched[sess.ID] {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	_, err := sess.Engine.Subscribe(ctx, func(ev replay.Event) {
		if err := s.hub.BroadcastJSON(sess.ID, StateMessage{
			BaseMessage: s.base(string(ev.Kind), sess.ID, ""),
			State:       ev.State,
			Step:        ev.Step,
		}); err != nil {
			s.logger.Error("failed to encode replay event", "session_id", sess.ID, "error", err)
		}
	})
	if err != nil {
		s.logger.Warn("failed to subscribe to session", "session_id", sess.ID, "error", err)
		return
	}
	s.watched[sess.ID] = true

	go func() {
		<-sess.Engine.Done()
		s.mu.Lock()
		delete(s.watched, sess.ID)
		s.mu.Unlock()
	}()
}

// readPump reads commands from the connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
		s.logger.Info("viewer disconnected", "conn_id", conn.ID, "session_id", conn.SessionID)
	}()

	conn.Conn.SetReadLimit(s.cfg.WSMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read failed", "conn_id", conn.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		s.handleMessage(conn, message)
	}
}

// writePump writes queued frames and keepalive pings to the connection.
func (s *Server) writePump(conn *Connection, sess *service.Session) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			sess.Touch()
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-sess.Engine.Done():
			s.flush(conn)
			data, _ := json.Marshal(s.base(TypeClosed, sess.ID, ""))
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			_ = conn.WriteMessage(websocket.TextMessage, data)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return
		}
	}
}

// flush writes frames already queued for the connection.
func (s *Server) flush(conn *Connection) {
	for {
		select {
		case message, ok := <-conn.Send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// handleMessage applies one client frame.
func (s *Server) handleMessage(conn *Connection, message []byte) {
	var msg CommandMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON")
		return
	}
	if msg.Type != TypeCommand {
		s.sendError(conn, msg.RequestID, ErrorCodeInvalidMessage, "unknown message type: "+msg.Type)
		return
	}
	if !conn.limiter.Allow() {
		s.sendError(conn, msg.RequestID, ErrorCodeRateLimited, "too many commands")
		return
	}

	cmd := service.Command{
		Op:    replay.Op(msg.Op),
		Speed: msg.Speed,
	}
	switch cmd.Op {
	case replay.OpSeek:
		if msg.ElapsedMs == nil {
			s.sendError(conn, msg.RequestID, ErrorCodeInvalidCommand, "elapsed_ms is required")
			return
		}
		cmd.ElapsedMs = *msg.ElapsedMs
	case replay.OpJump:
		if msg.Index == nil {
			s.sendError(conn, msg.RequestID, ErrorCodeInvalidCommand, "index is required")
			return
		}
		cmd.Index = *msg.Index
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	resp, err := s.service.Control(ctx, conn.SessionID, cmd)
	if err != nil {
		s.sendError(conn, msg.RequestID, errorCode(err), err.Error())
		return
	}

	if err := s.hub.SendJSONToConnection(conn, StateMessage{
		BaseMessage: s.base(TypeAck, conn.SessionID, msg.RequestID),
		State:       resp.State,
		Step:        resp.CurrentStep,
	}); err != nil {
		s.logger.Warn("failed to queue ack", "conn_id", conn.ID, "error", err)
	}
}

func (s *Server) base(typ, sessionID, requestID string) BaseMessage {
	return BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: requestID,
		SessionID: sessionID,
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, requestID, code, message string) {
	errMsg := ErrorMessage{
		BaseMessage: s.base(TypeError, conn.SessionID, requestID),
		Code:        code,
		Message:     message,
	}
	if err := s.hub.SendJSONToConnection(conn, errMsg); err != nil {
		s.logger.Warn("failed to queue error", "conn_id", conn.ID, "error", err)
	}
}

func errorCode(err error) string {
	var rangeErr *replay.OutOfRangeError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, replay.ErrInvalidSpeed):
		return ErrorCodeInvalidCommand
	case errors.As(err, &rangeErr):
		return ErrorCodeOutOfRange
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, replay.ErrClosed):
		return ErrorCodeSessionClosed
	default:
		return ErrorCodeInternalError
	}
}
