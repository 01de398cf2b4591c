package badge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	ColorCount   = "#0366d6"
	ColorLoading = "#6a737d"
	ColorError   = "#d73a49"

	TextLoading = "..."
	TextError   = "!"

	maxCount = 99
)

type Kind string

const (
	KindEmpty   Kind = "empty"
	KindCount   Kind = "count"
	KindLoading Kind = "loading"
	KindError   Kind = "error"
)

// State is what the badge currently shows. It is also the status file format.
type State struct {
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Color     string    `json:"color"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Badge holds the current badge state and mirrors it to a status file so
// tmux status lines and `review-radar status` can read it.
type Badge struct {
	mu     sync.RWMutex
	state  State
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// New returns an empty badge. An empty path disables the status file.
func New(path string, logger *slog.Logger) *Badge {
	return &Badge{
		state:  State{Kind: KindEmpty},
		path:   path,
		now:    time.Now,
		logger: logger,
	}
}

// SetBadge shows arbitrary text. File write failures are logged only.
func (b *Badge) SetBadge(text, color string) {
	kind := KindCount
	if text == "" {
		kind = KindEmpty
	}
	b.set(State{Kind: kind, Text: text, Color: color})
}

func (b *Badge) SetLoading() {
	b.set(State{Kind: KindLoading, Text: TextLoading, Color: ColorLoading})
}

func (b *Badge) SetError() {
	b.set(State{Kind: KindError, Text: TextError, Color: ColorError})
}

// SetCount renders n as the badge. 0 clears it and anything above 99 shows "99+".
func (b *Badge) SetCount(n int) {
	if n <= 0 {
		b.set(State{Kind: KindEmpty, Color: ColorCount})
		return
	}
	b.set(State{Kind: KindCount, Text: FormatCount(n), Color: ColorCount, Count: n})
}

func (b *Badge) Current() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func FormatCount(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > maxCount:
		return strconv.Itoa(maxCount) + "+"
	default:
		return strconv.Itoa(n)
	}
}

func (b *Badge) set(s State) {
	s.UpdatedAt = b.now().UTC()

	b.mu.Lock()
	b.state = s
	b.mu.Unlock()

	b.logger.Debug("badge updated", "state", s.Kind, "text", s.Text)

	if b.path == "" {
		return
	}
	if err := writeFile(b.path, s); err != nil {
		b.logger.Error("write badge status file", "err", err, "path", b.path)
	}
}

func writeFile(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create status dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal badge: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open status file: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock status file: %w", err)
	}
	defer func() { _ = unlockFile(file) }()

	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate status file: %w", err)
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

// ReadFile loads the badge mirrored by a running daemon. A missing file reads
// as an empty badge.
func ReadFile(path string) (State, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{Kind: KindEmpty}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("open status file: %w", err)
	}
	defer file.Close()

	// shared lock: never observe a write between truncate and rewrite
	if err := lockFileShared(file); err != nil {
		return State{}, fmt.Errorf("lock status file: %w", err)
	}
	defer func() { _ = unlockFile(file) }()

	data, err := io.ReadAll(file)
	if err != nil {
		return State{}, fmt.Errorf("read status file: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode status file: %w", err)
	}
	return s, nil
}
