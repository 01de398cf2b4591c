package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrSurfaceExists is returned by Create when a surface is already running.
	ErrSurfaceExists = errors.New("audio surface already exists")
	// ErrSurfaceMissing is returned by Post when no surface is running.
	ErrSurfaceMissing = errors.New("audio surface does not exist")
)

const ActionPlaySound = "playSound"

type Message struct {
	Action  string       `json:"action"`
	Payload SoundPayload `json:"payload"`
}

type SoundPayload struct {
	SoundType string `json:"soundType"`
}

// Surface is the single shared playback resource.
type Surface interface {
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Close(ctx context.Context) error
	Post(ctx context.Context, msg Message) error
}

type State int

const (
	Absent State = iota
	Creating
	Present
)

func (s State) String() string {
	switch s {
	case Creating:
		return "creating"
	case Present:
		return "present"
	default:
		return "absent"
	}
}

const flightKey = "surface"

// Guard makes sure at most one surface creation runs at a time. Callers that
// arrive while a creation is in flight wait for that same creation.
type Guard struct {
	surface Surface
	logger  *slog.Logger

	flight singleflight.Group
	// lifecycle serializes creation against Close.
	lifecycle sync.Mutex

	mu    sync.Mutex
	state State
}

func NewGuard(surface Surface, logger *slog.Logger) *Guard {
	return &Guard{surface: surface, logger: logger}
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Ensure returns once the surface is present. A cancelled ctx stops the wait
// but not the shared creation.
func (g *Guard) Ensure(ctx context.Context) error {
	if g.State() == Present {
		return nil
	}

	ch := g.flight.DoChan(flightKey, func() (any, error) {
		return nil, g.create(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (g *Guard) create(ctx context.Context) error {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	// Someone may have finished a creation between our state check and here.
	if g.State() == Present {
		return nil
	}
	g.setState(Creating)

	if ok, err := g.surface.Exists(ctx); err == nil && ok {
		g.setState(Present)
		return nil
	}

	err := g.surface.Create(ctx)
	if err == nil {
		g.setState(Present)
		g.logger.Debug("audio surface created")
		return nil
	}

	if isAlreadyExists(err) {
		ok, checkErr := g.surface.Exists(ctx)
		if checkErr == nil && ok {
			g.setState(Present)
			g.logger.Debug("audio surface created concurrently", "err", err)
			return nil
		}
		if checkErr != nil {
			err = errors.Join(err, checkErr)
		}
	}

	g.setState(Absent)
	return fmt.Errorf("create audio surface: %w", err)
}

// Close tears the surface down. Closing an absent surface is a no-op.
func (g *Guard) Close(ctx context.Context) error {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	if g.State() == Absent {
		return nil
	}
	if err := g.surface.Close(ctx); err != nil {
		return fmt.Errorf("close audio surface: %w", err)
	}
	g.setState(Absent)
	g.logger.Debug("audio surface closed")
	return nil
}

// Play ensures the surface and asks it to play soundType.
func (g *Guard) Play(ctx context.Context, soundType string) error {
	if err := g.Ensure(ctx); err != nil {
		return err
	}
	msg := Message{Action: ActionPlaySound, Payload: SoundPayload{SoundType: soundType}}
	if err := g.surface.Post(ctx, msg); err != nil {
		if errors.Is(err, ErrSurfaceMissing) {
			// torn down underneath us, forget it so the next call recreates
			g.setState(Absent)
		}
		return fmt.Errorf("post %s: %w", msg.Action, err)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return errors.Is(err, ErrSurfaceExists) || strings.Contains(strings.ToLower(err.Error()), "already exist")
}
