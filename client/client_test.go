package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func textMessage(text string) a2a.Message {
	return a2a.NewMessage(a2a.RoleUser, []a2a.Part{a2a.CreateTextPart(text, nil)})
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		expected string
	}{
		{name: "creates client with default config", baseURL: "http://localhost:8080", expected: "http://localhost:8080"},
		{name: "creates client with https url", baseURL: "https://example.com", expected: "https://example.com"},
		{name: "creates client with custom port", baseURL: "http://localhost:9090", expected: "http://localhost:9090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := client.NewClient(tt.baseURL)
			assert.NotNil(t, c)
			assert.Equal(t, tt.expected, c.GetBaseURL())
		})
	}
}

func TestNewClientWithConfig(t *testing.T) {
	tests := []struct {
		name        string
		setupConfig func() *client.Config
		expectedURL string
	}{
		{
			name: "creates client with custom config",
			setupConfig: func() *client.Config {
				return &client.Config{
					BaseURL:    "http://custom.example.com",
					Timeout:    45 * time.Second,
					UserAgent:  "Custom-Agent/2.0",
					Headers:    map[string]string{"X-Custom": "value"},
					MaxRetries: 5,
					RetryDelay: 2 * time.Second,
				}
			},
			expectedURL: "http://custom.example.com",
		},
		{
			name: "creates client with minimal config",
			setupConfig: func() *client.Config {
				return &client.Config{BaseURL: "http://minimal.example.com"}
			},
			expectedURL: "http://minimal.example.com",
		},
		{
			name: "creates client with custom http client",
			setupConfig: func() *client.Config {
				httpClient := &http.Client{Timeout: 10 * time.Second}
				return &client.Config{BaseURL: "http://httpclient.example.com", HTTPClient: httpClient}
			},
			expectedURL: "http://httpclient.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := client.NewClientWithConfig(tt.setupConfig())
			assert.NotNil(t, c)
			assert.Equal(t, tt.expectedURL, c.GetBaseURL())
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := client.DefaultConfig("http://localhost:8080")

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.RetryDelay)
	assert.NotNil(t, cfg.Logger)
	assert.NotNil(t, cfg.Headers)
}

func TestNewClientWithLogger(t *testing.T) {
	logger := zap.NewNop()
	c := client.NewClientWithLogger("http://localhost:8080", logger)

	assert.NotNil(t, c)
	assert.Equal(t, logger, c.GetLogger())
}

func TestClient_LoggerConfiguration(t *testing.T) {
	c := client.NewClient("http://localhost:8080")
	assert.NotNil(t, c.GetLogger())

	logger := zap.NewNop()
	c.SetLogger(logger)
	assert.Equal(t, logger, c.GetLogger())

	c.SetLogger(nil)
	assert.NotNil(t, c.GetLogger())
}

func TestClient_SendMessage(t *testing.T) {
	tests := []struct {
		name          string
		setupServer   func(t *testing.T) *httptest.Server
		expectError   bool
		errorContains string
	}{
		{
			name: "successful send returns a task",
			setupServer: func(t *testing.T) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "/rpc", r.URL.Path)
					assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

					var req map[string]interface{}
					require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
					assert.Equal(t, "2.0", req["jsonrpc"])
					assert.Equal(t, "message/send", req["method"])

					w.Header().Set("Content-Type", "application/json")
					fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"id":"task-1","status":{"state":"pending"}}}`)
				}))
			},
		},
		{
			name: "server returns json-rpc error",
			setupServer: func(t *testing.T) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`)
				}))
			},
			expectError:   true,
			errorContains: "invalid params",
		},
		{
			name: "server returns non-200 status",
			setupServer: func(t *testing.T) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
					fmt.Fprint(w, "boom")
				}))
			},
			expectError:   true,
			errorContains: "unexpected status code: 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.setupServer(t)
			defer server.Close()

			c := client.NewClient(server.URL)
			c.SetMaxRetries(0)

			resp, err := c.SendMessage(context.Background(), client.MessageSendRequest{Message: textMessage("hello")})

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, resp.Task)
			assert.Equal(t, a2a.TaskId("task-1"), resp.Task.Id)
		})
	}
}

func TestClient_ConversationHelper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"id":"task-1","status":{"state":"pending"}}}`)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	first := textMessage("first")
	second := textMessage("second")

	_, err := c.SendMessage(context.Background(), client.MessageSendRequest{Message: first})
	require.NoError(t, err)
	_, err = c.SendMessage(context.Background(), client.MessageSendRequest{Message: second})
	require.NoError(t, err)

	cc, ok := c.(*client.Client)
	require.True(t, ok)
	conversation := cc.Conversation()
	require.Len(t, conversation, 2)
	assert.Equal(t, first.MessageId, conversation[0].MessageId)
	assert.Equal(t, second.MessageId, conversation[1].MessageId)
}

func TestClient_GetTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "task/get", req["method"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"id":"task-1","status":{"state":"working"}}}`)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	task, err := c.GetTask(context.Background(), "task-1")

	require.NoError(t, err)
	assert.Equal(t, a2a.TaskId("task-1"), task.Id)
	assert.Equal(t, a2a.TaskStateWorking, task.Status.State)
}

func TestClient_CancelTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "task/cancel", req["method"])
		params, ok := req["params"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "user requested", params["reason"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"state":"cancelled"}}`)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	status, err := c.CancelTask(context.Background(), "task-1", "user requested")

	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCancelled, status.State)
}

func TestClient_SendMessageStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		events := []struct {
			name string
			data string
		}{
			{"task", `{"id":"task-1","status":{"state":"pending"}}`},
			{"task-status-update", `{"taskId":"task-1","status":{"state":"working"},"final":false}`},
			{"task-status-update", `{"taskId":"task-1","status":{"state":"completed"},"final":true}`},
		}

		flusher, _ := w.(http.Flusher)
		for _, ev := range events {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eventChan := make(chan a2a.StreamingResult, 8)
	err := c.SendMessageStreaming(ctx, client.MessageSendRequest{Message: textMessage("stream this")}, eventChan)
	require.NoError(t, err)
	close(eventChan)

	var received []a2a.StreamingResult
	for ev := range eventChan {
		received = append(received, ev)
	}

	require.Len(t, received, 3)
	assert.Equal(t, a2a.StreamKindTask, received[0].Kind)
	assert.Equal(t, a2a.StreamKindTaskStatusUpdate, received[1].Kind)
	assert.True(t, received[2].TaskStatusUpdate.Final)
}

func TestClient_SendMessageStreaming_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad request")
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	eventChan := make(chan a2a.StreamingResult, 1)
	err := c.SendMessageStreaming(context.Background(), client.MessageSendRequest{Message: textMessage("x")}, eventChan)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 400")
}

func TestClient_RetryMechanism_ExponentialBackoff(t *testing.T) {
	var attempts int32
	var timestamps []time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		timestamps = append(timestamps, time.Now())
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"id":"task-1","status":{"state":"pending"}}}`)
	}))
	defer server.Close()

	config := client.DefaultConfig(server.URL)
	config.RetryDelay = 10 * time.Millisecond
	config.MaxRetries = 5
	c := client.NewClientWithConfig(config)

	_, err := c.GetTask(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	require.Len(t, timestamps, 3)
	firstGap := timestamps[1].Sub(timestamps[0])
	secondGap := timestamps[2].Sub(timestamps[1])
	assert.Greater(t, secondGap, firstGap/2)
}

func TestClient_RetryMechanism_ExhaustsAttempts(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	config := client.DefaultConfig(server.URL)
	config.RetryDelay = 5 * time.Millisecond
	config.MaxRetries = 2
	c := client.NewClientWithConfig(config)

	_, err := c.GetTask(context.Background(), "task-1")
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_RetryMechanism_RetriesOn429WithRetryAfter(t *testing.T) {
	var attempts int32
	var timestamps []time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		timestamps = append(timestamps, time.Now())
		if n < 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"id":"task-1","status":{"state":"pending"}}}`)
	}))
	defer server.Close()

	config := client.DefaultConfig(server.URL)
	config.RetryDelay = 50 * time.Millisecond
	config.MaxRetries = 5
	c := client.NewClientWithConfig(config)

	_, err := c.GetTask(context.Background(), "task-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GetTask(ctx, "task-1")
	assert.Error(t, err)
}

func TestClient_Configuration(t *testing.T) {
	c := client.NewClient("http://localhost:8080")

	c.SetTimeout(5 * time.Second)
	c.SetHTTPClient(&http.Client{Timeout: 7 * time.Second})
	assert.Equal(t, "http://localhost:8080", c.GetBaseURL())

	impl, ok := c.(*client.Client)
	require.True(t, ok)
	impl.SetMaxRetries(9)
	impl.SetRetryDelay(3 * time.Second)

	cfg := impl.GetConfig()
	assert.Equal(t, 9, cfg.MaxRetries)
	assert.Equal(t, 3*time.Second, cfg.RetryDelay)
}

func TestClient_HeadersAndAuthentication(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-agent/9", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"id":"task-1","status":{"state":"pending"}}}`)
	}))
	defer server.Close()

	config := client.DefaultConfig(server.URL)
	config.UserAgent = "test-agent/9"
	c := client.NewClientWithConfig(config)
	impl, ok := c.(*client.Client)
	require.True(t, ok)

	impl.SetHeader("Authorization", "Bearer test-token")
	_, err := c.GetTask(context.Background(), "task-1")
	require.NoError(t, err)

	impl.RemoveHeader("Authorization")
	assert.NotContains(t, impl.GetConfig().Headers, "Authorization")
}

func TestClient_GetAgentCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/agent-card", r.URL.Path)
		assert.Equal(t, "GET", r.Method)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":"test-agent","version":"1.0.0","url":"http://localhost:8080"}`)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	card, err := c.GetAgentCard(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "test-agent", card.Name)
}

func TestClient_GetAgentCard_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	_, err := c.GetAgentCard(context.Background())
	assert.Error(t, err)
}

func TestClient_GetHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok"}`)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	health, err := c.GetHealth(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestClient_GetHealth_MissingStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{}`)
	}))
	defer server.Close()

	c := client.NewClient(server.URL)
	_, err := c.GetHealth(context.Background())
	assert.Error(t, err)
}
