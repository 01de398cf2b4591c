package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/marcin-skalski/review-radar/internal/config"
)

// Player produces the actual tone for a sound type.
type Player interface {
	Play(soundType string) error
}

const inboxSize = 8

// Offscreen is an in-process Surface: one goroutine owns the player and
// handles posted messages in order.
type Offscreen struct {
	player Player
	logger *slog.Logger

	mu    sync.Mutex
	inbox chan Message
	done  chan struct{}
}

func NewOffscreen(player Player, logger *slog.Logger) *Offscreen {
	return &Offscreen{player: player, logger: logger}
}

func (o *Offscreen) Exists(ctx context.Context) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inbox != nil, nil
}

func (o *Offscreen) Create(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inbox != nil {
		return ErrSurfaceExists
	}
	o.inbox = make(chan Message, inboxSize)
	o.done = make(chan struct{})
	go o.loop(o.inbox, o.done)
	return nil
}

// Close stops the loop after it drains queued messages.
func (o *Offscreen) Close(ctx context.Context) error {
	o.mu.Lock()
	inbox, done := o.inbox, o.done
	o.inbox, o.done = nil, nil
	o.mu.Unlock()

	if inbox == nil {
		return nil
	}
	close(inbox)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues msg without blocking. A full queue drops the message.
func (o *Offscreen) Post(ctx context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inbox == nil {
		return ErrSurfaceMissing
	}
	select {
	case o.inbox <- msg:
	default:
		o.logger.Warn("audio queue full, dropping message", "action", msg.Action)
	}
	return nil
}

func (o *Offscreen) loop(inbox <-chan Message, done chan<- struct{}) {
	defer close(done)
	for msg := range inbox {
		o.handle(msg)
	}
}

func (o *Offscreen) handle(msg Message) {
	if msg.Action != ActionPlaySound {
		o.logger.Warn("unknown audio action", "action", msg.Action)
		return
	}

	switch sound := msg.Payload.SoundType; sound {
	case config.SoundOff:
	case config.SoundChime, config.SoundBell:
		if err := o.player.Play(sound); err != nil {
			o.logger.Warn("play sound", "err", err, "sound", sound)
		}
	default:
		o.logger.Warn("unknown sound type", "sound", sound)
	}
}
