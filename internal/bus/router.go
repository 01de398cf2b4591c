package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Router dispatches requests to handlers by action. Every dispatch yields
// exactly one Response, including for unknown actions and handler panics.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Handle registers h for action, replacing any previous handler.
func (r *Router) Handle(action string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

func (r *Router) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actions := make([]string, 0, len(r.handlers))
	for a := range r.handlers {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}

func (r *Router) Dispatch(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "action", req.Action, "id", req.ID, "panic", rec)
			resp = Response{Error: fmt.Sprintf("%s: internal error", req.Action)}
		}
	}()

	r.mu.RLock()
	h, ok := r.handlers[req.Action]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("unknown action", "action", req.Action, "id", req.ID)
		return Response{Error: fmt.Errorf("%w %q", ErrUnknownAction, req.Action).Error()}
	}

	data, err := h(ctx, req.Payload)
	if err != nil {
		r.logger.Warn("action failed", "action", req.Action, "id", req.ID, "err", err)
		return Response{Error: err.Error()}
	}

	r.logger.Debug("action handled", "action", req.Action, "id", req.ID, "duration", time.Since(start))
	return Response{Success: true, Data: data}
}

// DispatchAsync runs the handler in its own goroutine. The channel always
// receives exactly one Response.
func (r *Router) DispatchAsync(ctx context.Context, req Request) <-chan Response {
	ch := make(chan Response, 1)
	go func() {
		ch <- r.Dispatch(ctx, req)
	}()
	return ch
}

// Send dispatches in-process with the same signature as Client.Send.
func (r *Router) Send(ctx context.Context, action string, payload any) (Response, error) {
	req := Request{Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode payload: %w", err)
		}
		req.Payload = raw
	}
	return r.Dispatch(ctx, req), nil
}

// Has reports whether action is registered.
func (r *Router) Has(action string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[action]
	return ok
}
