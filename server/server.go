package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/a2aruntime/a2a/a2a"
	"github.com/a2aruntime/a2a/rpc"
	"github.com/a2aruntime/a2a/server/otel"
	"github.com/a2aruntime/a2a/sse"
	"github.com/gin-gonic/gin"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	zap "go.uber.org/zap"
)

// Config configures the A2A HTTP server.
type Config struct {
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	StreamReadTimeout time.Duration
	MetricsConfig     MetricsConfig
}

// MetricsConfig configures the standalone Prometheus exposition server.
// It is served on its own address so scraping isn't gated behind the
// same listener as /rpc and /stream.
type MetricsConfig struct {
	Enable       bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns the documented server defaults.
func DefaultConfig() Config {
	return Config{
		Port:              8080,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		StreamReadTimeout: 300 * time.Second,
		MetricsConfig: MetricsConfig{
			Enable:       false,
			Port:         9090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Server mounts POST /rpc and POST /stream over a Handler.
type Server struct {
	cfg           Config
	handler       Handler
	logger        *zap.Logger
	telemetry     otel.OpenTelemetry
	engine        *gin.Engine
	httpServer    *http.Server
	metricsServer *http.Server
}

// NewServer builds a server around handler, mounting the fixed routes.
func NewServer(cfg Config, handler Handler, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, handler: handler, logger: logger}
	s.setupRouter()
	return s
}

// WithTelemetry attaches an OpenTelemetry recorder; RPC and SSE metrics are
// no-ops until this is called.
func (s *Server) WithTelemetry(t otel.OpenTelemetry) *Server {
	s.telemetry = t
	return s
}

func (s *Server) setupRouter() {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLoggingMiddleware(s.logger))

	engine.GET("/health", s.handleHealth)
	engine.GET("/.well-known/agent-card", s.handleAgentCard)
	engine.POST("/rpc", s.handleRPC)
	engine.POST("/stream", s.handleStream)

	s.engine = engine
}

// Start begins serving, blocking until the context is cancelled or a
// fatal I/O error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("a2a server listening", zap.Int("port", s.cfg.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.cfg.MetricsConfig.Enable {
		metricsRouter := gin.New()
		metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

		metricsAddr := fmt.Sprintf("%s:%d", s.cfg.MetricsConfig.Host, s.cfg.MetricsConfig.Port)
		s.metricsServer = &http.Server{
			Addr:         metricsAddr,
			Handler:      metricsRouter,
			ReadTimeout:  s.cfg.MetricsConfig.ReadTimeout,
			WriteTimeout: s.cfg.MetricsConfig.WriteTimeout,
			IdleTimeout:  s.cfg.MetricsConfig.IdleTimeout,
		}

		go func() {
			s.logger.Info("metrics server listening", zap.Int("port", s.cfg.MetricsConfig.Port))
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		return s.Stop(context.Background())
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Error("error stopping metrics server", zap.Error(err))
		}
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Engine exposes the underlying gin engine, e.g. for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleAgentCard(c *gin.Context) {
	card, err := s.handler.AgentCard(c.Request.Context(), AgentCardGetRequest{})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, card)
}

// handleRPC implements the dispatch rules over POST /rpc.
func (s *Server) handleRPC(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	out := rpc.Dispatch(c.Request.Context(), body, s.dispatchMethod)
	if out == nil {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "application/json", out)
}

// handleStream implements POST /stream: the request body is a JSON-RPC
// request for message/stream or task/resubscribe; the response is
// text/event-stream.
func (s *Server) handleStream(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var req rpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON-RPC request"})
		return
	}

	lastEventID := c.GetHeader("Last-Event-ID")

	var stream <-chan a2a.StreamingResult
	var dispatchErr error

	switch req.Method {
	case "message/stream":
		var message a2a.Message
		if err := json.Unmarshal(req.Params, &message); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid params"})
			return
		}
		stream, dispatchErr = s.handler.MessageStream(c.Request.Context(), message)
	case "task/resubscribe":
		var params ResubscribeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid params"})
			return
		}
		if metaID, ok := params.Metadata["lastEventId"].(string); ok && lastEventID == "" {
			lastEventID = metaID
		}
		stream, dispatchErr = s.handler.TaskResubscribe(c.Request.Context(), params, lastEventID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported streaming method: " + req.Method})
		return
	}

	if dispatchErr != nil {
		c.JSON(http.StatusOK, gin.H{"error": rpc.FromDomainError(dispatchErr)})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	if s.telemetry != nil {
		s.telemetry.RecordSSESubscription(c.Request.Context(), 1)
		defer s.telemetry.RecordSSESubscription(context.Background(), -1)
	}

	flusher, canFlush := c.Writer.(http.Flusher)
	seq := 0
	for event := range stream {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		seq++
		frame := sse.Format(sse.Event{
			ID:    fmt.Sprintf("%d", seq),
			Event: string(event.Kind),
			Data:  string(data),
		})
		if _, err := c.Writer.Write([]byte(frame)); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// dispatchMethod implements the method table, adapted to the
// generic rpc.MethodHandler signature used by Dispatch.
func (s *Server) dispatchMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	if s.telemetry != nil {
		start := time.Now()
		s.telemetry.RecordRPCRequest(ctx, method)
		defer func() {
			s.telemetry.RecordRPCDuration(ctx, method, float64(time.Since(start).Milliseconds()))
		}()
	}

	switch method {
	case "agent/card":
		var req AgentCardGetRequest
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
			}
		}
		return s.handler.AgentCard(ctx, req)

	case "message/send":
		var req MessageSendRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return s.handler.MessageSend(ctx, req)

	case "task/get":
		var req TaskIdParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return s.handler.TaskGet(ctx, req)

	case "task/status":
		var req TaskIdParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return s.handler.TaskStatus(ctx, req)

	case "task/cancel":
		var req TaskCancelParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return s.handler.TaskCancel(ctx, req)

	case "pushNotification/set":
		var req PushNotificationSetParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return struct{}{}, s.handler.PushNotificationSet(ctx, req)

	case "pushNotification/get":
		var req TaskIdParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return s.handler.PushNotificationGet(ctx, req)

	case "pushNotification/list":
		return s.handler.PushNotificationList(ctx), nil

	case "pushNotification/delete":
		var req TaskIdParams
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &rpc.InvalidParamsErr{Method: method, Cause: err}
		}
		return s.handler.PushNotificationDelete(ctx, req), nil

	case "message/stream", "task/resubscribe":
		return nil, a2a.NewError(a2a.KindProtocol, method+" must be called via POST /stream, not /rpc", nil)

	default:
		return nil, &rpc.MethodNotFoundErr{Method: method}
	}
}
