package bus

import (
	"log/slog"
	"sync"
	"time"
)

const (
	EventPRsUpdated      = "prsUpdated"
	EventFetchError      = "fetchError"
	EventSettingsChanged = "settingsChanged"
	EventErrorDismissed  = "errorDismissed"
)

type Event struct {
	Type     string    `json:"type"`
	Category string    `json:"category,omitempty"`
	Message  string    `json:"message,omitempty"`
	At       time.Time `json:"at"`
}

// Broadcaster fans events out to subscribers without ever blocking the
// publisher. Nobody listening is normal: the UI may be closed.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	now    func() time.Time
	logger *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		now:    time.Now,
		logger: logger,
	}
}

// Subscribe returns a buffered event channel and a func that unsubscribes
// and closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subs) == 0 {
		b.logger.Debug("no listeners for event", "type", e.Type, "category", e.Category)
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("listener not keeping up, event dropped", "type", e.Type, "subscriber", id)
		}
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
