// Package http assembles the public HTTP server of the replay service.
package http

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/replayer/internal/service"
	v1 "github.com/xiaot623/gogo/replayer/internal/transport/http/v1"
	"github.com/xiaot623/gogo/replayer/internal/transport/ws"
)

// Server serves the recording, playback and streaming APIs.
type Server struct {
	echo *echo.Echo
}

// NewServer creates the HTTP server. The websocket route is registered only
// when wsServer is non-nil.
func NewServer(svc *service.Service, wsServer *ws.Server) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc).RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/v1/replay/sessions/:session_id/ws", wsServer.HandleSession)
	}

	return &Server{echo: e}
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
