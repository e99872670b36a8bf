package tracesource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/replayer/internal/domain"
)

func newTestClient(url string, retries int) *Client {
	c := NewClient(url, "secret", time.Second, retries)
	c.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func sampleData() domain.ReplayData {
	return domain.ReplayData{
		RunID: "run_1",
		Steps: []domain.ReplayStep{
			{Index: 0, ID: "s0", Type: domain.StepTypeLLMCall, Name: "gpt", RelativeTime: 0, Duration: 100, Status: domain.StepStatusCompleted},
		},
		TotalDuration: 100,
	}
}

func TestClientGetReplayData(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sampleData())
	}))
	defer server.Close()

	data, err := newTestClient(server.URL+"/", 0).GetReplayData(context.Background(), "run_1")
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/v1/runs/run_1/replay", gotPath)
	assert.Equal(t, "run_1", data.RunID)
	require.Len(t, data.Steps, 1)
	assert.Equal(t, int64(100), data.TotalDuration)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(sampleData())
	}))
	defer server.Close()

	data, err := newTestClient(server.URL, 3).GetReplayData(context.Background(), "run_1")
	require.NoError(t, err)
	assert.Equal(t, "run_1", data.RunID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 2).GetReplayData(context.Background(), "run_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTraceUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 5).GetReplayData(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 5).GetReplayData(context.Background(), "run_1")
	assert.ErrorIs(t, err, domain.ErrTraceUnavailable)
	assert.False(t, errors.Is(err, domain.ErrRunNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, 3).GetReplayData(context.Background(), "run_1")
	assert.ErrorIs(t, err, domain.ErrTraceUnavailable)
}
