package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/replayer/internal/domain"
	"github.com/xiaot623/gogo/replayer/internal/replay"
	"github.com/xiaot623/gogo/replayer/internal/transport/ws"
)

// Client drives a replay session hosted by the server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	conn       *websocket.Conn
	sessionID  string
}

// NewClient creates a client for the replay service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// OpenSession opens a server session for runID.
func (c *Client) OpenSession(ctx context.Context, runID string) (*domain.SessionResponse, error) {
	body, err := json.Marshal(domain.OpenSessionRequest{RunID: runID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/replay/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("open session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var session domain.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	c.sessionID = session.SessionID
	return &session, nil
}

// CloseSession deletes the server session.
func (c *Client) CloseSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/replay/sessions/"+c.sessionID, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetData fetches the replay data played by the session.
func (c *Client) GetData(ctx context.Context) (*domain.ReplayData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/replay/sessions/"+c.sessionID+"/data", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get session data: status %d", resp.StatusCode)
	}
	var data domain.ReplayData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return &data, nil
}

// Connect attaches to the session's websocket stream.
func (c *Client) Connect(ctx context.Context) error {
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/v1/replay/sessions/" + c.sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Send sends a playback command.
func (c *Client) Send(op replay.Op, speed float64) error {
	msg := ws.CommandMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeCommand,
			Ts:        time.Now().UnixMilli(),
			SessionID: c.sessionID,
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		Op:    string(op),
		Speed: speed,
	}
	return c.conn.WriteJSON(msg)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// playRemote opens a server session for runID and renders its stream until
// playback completes.
func playRemote(ctx context.Context, server, runID string, speed float64) error {
	client := NewClient(server)
	session, err := client.OpenSession(ctx, runID)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.CloseSession(closeCtx)
	}()

	data, err := client.GetData(ctx)
	if err != nil {
		return err
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	go func() {
		<-ctx.Done()
		client.Close()
	}()

	fmt.Println(renderHeader(data, speed))
	if speed != 1 {
		if err := client.Send(replay.OpSpeed, speed); err != nil {
			return err
		}
	}
	if err := client.Send(replay.OpPlay, 0); err != nil {
		return err
	}

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println(renderInterrupted())
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("session %s closed by server", session.SessionID)
			}
			return fmt.Errorf("read: %w", err)
		}

		done, err := handleFrame(data, raw)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// handleFrame renders one server frame and reports whether playback has
// finished.
func handleFrame(data *domain.ReplayData, raw []byte) (bool, error) {
	var base ws.BaseMessage
	if err := json.Unmarshal(raw, &base); err != nil {
		return false, fmt.Errorf("unmarshal frame: %w", err)
	}

	switch base.Type {
	case string(replay.EventStep):
		var msg ws.StateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return false, fmt.Errorf("unmarshal step: %w", err)
		}
		if msg.Step != nil {
			fmt.Println(renderStep(msg.Step, msg.State))
		}
	case string(replay.EventCompleted):
		var msg ws.StateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return false, fmt.Errorf("unmarshal completion: %w", err)
		}
		fmt.Println(renderSummary(data, msg.State))
		return true, nil
	case ws.TypeError:
		var msg ws.ErrorMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return false, fmt.Errorf("unmarshal error: %w", err)
		}
		return false, fmt.Errorf("server error: %s - %s", msg.Code, msg.Message)
	case ws.TypeClosed:
		return false, fmt.Errorf("session %s closed by server", base.SessionID)
	}
	return false, nil
}
