package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"go.uber.org/zap"
)

// A2AClient defines the interface for an A2A protocol client.
type A2AClient interface {
	GetAgentCard(ctx context.Context) (*a2a.AgentCard, error)
	GetHealth(ctx context.Context) (*HealthResponse, error)

	SendMessage(ctx context.Context, req MessageSendRequest) (*a2a.SendResponse, error)
	SendMessageStreaming(ctx context.Context, req MessageSendRequest, eventChan chan<- a2a.StreamingResult) error
	GetTask(ctx context.Context, taskID a2a.TaskId) (*a2a.Task, error)
	CancelTask(ctx context.Context, taskID a2a.TaskId, reason string) (*a2a.TaskStatus, error)

	SetTimeout(timeout time.Duration)
	SetHTTPClient(client *http.Client)
	GetBaseURL() string

	SetLogger(logger *zap.Logger)
	GetLogger() *zap.Logger
}

var _ A2AClient = (*Client)(nil)

// HealthResponse represents the response from the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// MessageSendRequest mirrors server.MessageSendRequest for the client side.
type MessageSendRequest struct {
	Message   a2a.Message `json:"message"`
	Immediate bool        `json:"immediate,omitempty"`
}

// Config holds configuration options for the A2A client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
	Headers    map[string]string
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		UserAgent:  "a2a-go-client/1.0",
		Headers:    make(map[string]string),
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		Logger:     zap.NewNop(),
	}
}

// Client represents an A2A protocol client.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger

	conversationMu sync.Mutex
	conversation   []a2a.Message
}

// NewClient creates a new A2A client with default configuration.
func NewClient(baseURL string) A2AClient {
	return NewClientWithConfig(DefaultConfig(baseURL))
}

// NewClientWithConfig creates a new A2A client with custom configuration.
func NewClientWithConfig(config *Config) A2AClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// NewClientWithLogger creates a new A2A client with a custom logger.
func NewClientWithLogger(baseURL string, logger *zap.Logger) A2AClient {
	config := DefaultConfig(baseURL)
	config.Logger = logger
	return NewClientWithConfig(config)
}

func (c *Client) rpcURL() string {
	baseURL := strings.TrimSuffix(c.config.BaseURL, "/")
	return baseURL + "/rpc"
}

func (c *Client) streamURL() string {
	baseURL := strings.TrimSuffix(c.config.BaseURL, "/")
	return baseURL + "/stream"
}

// recordSent appends a message to the client's ordered sent-message log
// (the "conversation helper"), so callers can replay what was sent in a
// context without maintaining their own bookkeeping.
func (c *Client) recordSent(message a2a.Message) {
	c.conversationMu.Lock()
	defer c.conversationMu.Unlock()
	c.conversation = append(c.conversation, message)
}

// Conversation returns a snapshot of every message this client has sent.
func (c *Client) Conversation() []a2a.Message {
	c.conversationMu.Lock()
	defer c.conversationMu.Unlock()
	out := make([]a2a.Message, len(c.conversation))
	copy(out, c.conversation)
	return out
}

// jsonRPCRequest is the wire shape sent to the server.
type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// SendMessage implements message/send.
func (c *Client) SendMessage(ctx context.Context, req MessageSendRequest) (*a2a.SendResponse, error) {
	c.logger.Debug("sending message", zap.String("method", "message/send"))
	c.recordSent(req.Message)

	var resp a2a.SendResponse
	if err := c.doRequestWithContext(ctx, "message/send", req, &resp); err != nil {
		c.logger.Error("failed to send message", zap.Error(err))
		return nil, err
	}

	c.logger.Debug("message sent successfully")
	return &resp, nil
}

// SendMessageStreaming implements message/stream over POST /stream,
// decoding W3C SSE frames and pushing each decoded event to eventChan.
func (c *Client) SendMessageStreaming(ctx context.Context, req MessageSendRequest, eventChan chan<- a2a.StreamingResult) error {
	c.logger.Debug("starting message streaming", zap.String("method", "message/stream"))
	c.recordSent(req.Message)

	rpcReq := jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "message/stream", Params: req}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL(), bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", httpResp.StatusCode, string(bodyBytes))
	}

	return c.scanSSE(ctx, httpResp.Body, eventChan)
}

// scanSSE implements the W3C SSE wire format: id/event/data lines, blank
// line terminates an event. Decoding into a2a.StreamingResult dispatches
// on the event name.
func (c *Client) scanSSE(ctx context.Context, body io.Reader, eventChan chan<- a2a.StreamingResult) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var eventName string
	var dataLines []string
	eventCount := 0

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil

		result, err := a2a.DecodeStreamingResult(eventName, []byte(data))
		eventName = ""
		if err != nil {
			return fmt.Errorf("failed to decode streaming event: %w", err)
		}

		eventCount++
		select {
		case eventChan <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, "retry:"):
			// comment, id, and retry lines don't affect decoding here
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan response: %w", err)
	}

	c.logger.Debug("streaming completed", zap.Int("events_received", eventCount))
	return flush()
}

// GetTask implements task/get.
func (c *Client) GetTask(ctx context.Context, taskID a2a.TaskId) (*a2a.Task, error) {
	c.logger.Debug("retrieving task", zap.String("method", "task/get"), zap.String("task_id", string(taskID)))

	var task a2a.Task
	if err := c.doRequestWithContext(ctx, "task/get", map[string]a2a.TaskId{"taskId": taskID}, &task); err != nil {
		c.logger.Error("failed to retrieve task", zap.Error(err), zap.String("task_id", string(taskID)))
		return nil, err
	}
	return &task, nil
}

// CancelTask implements task/cancel.
func (c *Client) CancelTask(ctx context.Context, taskID a2a.TaskId, reason string) (*a2a.TaskStatus, error) {
	c.logger.Debug("cancelling task", zap.String("method", "task/cancel"), zap.String("task_id", string(taskID)))

	params := map[string]string{"taskId": string(taskID)}
	if reason != "" {
		params["reason"] = reason
	}

	var status a2a.TaskStatus
	if err := c.doRequestWithContext(ctx, "task/cancel", params, &status); err != nil {
		c.logger.Error("failed to cancel task", zap.Error(err), zap.String("task_id", string(taskID)))
		return nil, err
	}
	return &status, nil
}

// GetAgentCard retrieves the agent card via GET /.well-known/agent-card.
func (c *Client) GetAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	c.logger.Debug("retrieving agent card", zap.String("endpoint", "/.well-known/agent-card"))

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/.well-known/agent-card"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent card request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent card request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close agent card response body", zap.Error(closeErr))
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("unexpected status code for agent card: %d, body: %s", httpResp.StatusCode, string(bodyBytes))
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(httpResp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card response: %w", err)
	}

	c.logger.Debug("agent card retrieved successfully", zap.String("name", card.Name))
	return &card, nil
}

// GetHealth retrieves the health status of the agent via GET /health.
func (c *Client) GetHealth(ctx context.Context) (*HealthResponse, error) {
	c.logger.Debug("retrieving agent health", zap.String("endpoint", "/health"))

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/health"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close health response body", zap.Error(closeErr))
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("unexpected status code for health check: %d, body: %s", httpResp.StatusCode, string(bodyBytes))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&healthResp); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	if healthResp.Status == "" {
		return nil, fmt.Errorf("health response missing status field")
	}

	c.logger.Debug("health check completed successfully", zap.String("status", healthResp.Status))
	return &healthResp, nil
}

// isRetryableStatus reports whether an HTTP response status warrants a
// retry: rate-limiting and server errors, same as the webhook queue's
// delivery-outcome classification.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// retryDelay picks the backoff for the next attempt: a 429's Retry-After
// header (seconds, or an HTTP-date) takes precedence when present and
// still in the future; otherwise RetryDelay * 2^attempt.
func retryDelay(resp *http.Response, base time.Duration, attempt int) time.Duration {
	exponential := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return exponential
	}
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return exponential
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(ra); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return exponential
}

// doRequestWithContext performs a JSON-RPC request with exponential
// backoff retry: the n-th retry waits RetryDelay * 2^(n-1), or a 429's
// Retry-After when present. Retries on transport errors and on 429/5xx responses.
func (c *Client) doRequestWithContext(ctx context.Context, method string, params interface{}, out interface{}) error {
	c.logger.Debug("preparing request", zap.String("method", method), zap.String("base_url", c.config.BaseURL))

	rpcReq := jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var httpResp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(httpResp, c.config.RetryDelay, attempt-1)
			c.logger.Debug("retrying request", zap.String("method", method), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL(), bytes.NewReader(body))
		if reqErr != nil {
			return fmt.Errorf("failed to create request: %w", reqErr)
		}
		c.setHeaders(httpReq)

		resp, doErr := c.httpClient.Do(httpReq)
		if doErr != nil {
			httpResp = nil
			lastErr = doErr
			c.logger.Warn("request failed", zap.String("method", method), zap.Int("attempt", attempt+1), zap.Error(doErr))
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < c.config.MaxRetries {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("retryable status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
			httpResp = resp
			c.logger.Warn("retryable status code, retrying", zap.String("method", method), zap.Int("attempt", attempt+1), zap.Int("status", resp.StatusCode))
			continue
		}

		httpResp = resp
		lastErr = nil
		break
	}

	if httpResp == nil {
		return fmt.Errorf("failed to send request after %d attempts: %w", c.config.MaxRetries+1, lastErr)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", zap.Error(closeErr))
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		if lastErr != nil {
			return fmt.Errorf("unexpected status code after %d attempts: %w", c.config.MaxRetries+1, lastErr)
		}
		bodyBytes, _ := io.ReadAll(httpResp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", httpResp.StatusCode, string(bodyBytes))
	}

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("a2a error: %s (code: %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}

	if len(rpcResp.Result) > 0 && out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	c.logger.Debug("request completed successfully", zap.String("method", method))
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}
}

// SetHTTPClient allows customizing the HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
	c.config.HTTPClient = client
}

// SetTimeout sets the timeout for HTTP requests.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.config.Timeout = timeout
	if c.httpClient != nil {
		c.httpClient.Timeout = timeout
	}
}

// GetBaseURL returns the base URL of the client.
func (c *Client) GetBaseURL() string {
	return c.config.BaseURL
}

// SetHeader sets a custom header for all requests.
func (c *Client) SetHeader(key, value string) {
	if c.config.Headers == nil {
		c.config.Headers = make(map[string]string)
	}
	c.config.Headers[key] = value
}

// RemoveHeader removes a custom header.
func (c *Client) RemoveHeader(key string) {
	if c.config.Headers != nil {
		delete(c.config.Headers, key)
	}
}

// GetConfig returns a copy of the client configuration.
func (c *Client) GetConfig() Config {
	config := *c.config
	if c.config.Headers != nil {
		config.Headers = make(map[string]string)
		for k, v := range c.config.Headers {
			config.Headers[k] = v
		}
	}
	return config
}

// SetMaxRetries sets the maximum number of retry attempts.
func (c *Client) SetMaxRetries(maxRetries int) {
	c.config.MaxRetries = maxRetries
}

// SetRetryDelay sets the base delay used by the exponential backoff schedule.
func (c *Client) SetRetryDelay(delay time.Duration) {
	c.config.RetryDelay = delay
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
	c.config.Logger = logger
}

// GetLogger returns the current logger.
func (c *Client) GetLogger() *zap.Logger {
	return c.logger
}
