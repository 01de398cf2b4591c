package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	PathMessage = "/api/message"
	PathHealth  = "/api/health"
	PathEvents  = "/api/events"
)

// NewHTTPHandler exposes the router over HTTP for the CLI and other local
// clients.
func NewHTTPHandler(router *Router, events *Broadcaster, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "actions": router.Actions()})
	})

	r.POST(PathMessage, func(c *gin.Context) {
		var req Request
		if err := c.ShouldBindJSON(&req); err != nil || req.Action == "" {
			c.JSON(http.StatusBadRequest, Response{Error: "invalid request body"})
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		if !router.Has(req.Action) {
			c.JSON(http.StatusNotFound, router.Dispatch(c.Request.Context(), req))
			return
		}
		c.JSON(http.StatusOK, router.Dispatch(c.Request.Context(), req))
	})

	// Server-sent events so remote popups can follow updates.
	r.GET(PathEvents, func(c *gin.Context) {
		ch, cancel := events.Subscribe(16)
		defer cancel()

		c.Stream(func(w io.Writer) bool {
			select {
			case e, ok := <-ch:
				if !ok {
					return false
				}
				c.SSEvent(e.Type, e)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("bus http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Server runs the HTTP transport until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info("message bus listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("bus shutdown", "err", err)
		}
	}()

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve bus: %w", err)
	}
	return nil
}

// Client talks to a running daemon.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(addr string, timeout time.Duration) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Send posts one request. Response.Data is left as json.RawMessage.
func (c *Client) Send(ctx context.Context, action string, payload any) (Response, error) {
	req := Request{ID: uuid.NewString(), Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode payload: %w", err)
		}
		req.Payload = raw
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathMessage, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send %s: %w", action, err)
	}
	defer resp.Body.Close()

	var wire struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Response{}, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	out := Response{Success: wire.Success, Error: wire.Error}
	if len(wire.Data) > 0 {
		out.Data = wire.Data
	}
	return out, nil
}
