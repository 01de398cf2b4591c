package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/review-radar/internal/badge"
	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/config"
	"github.com/marcin-skalski/review-radar/internal/fetcher"
	"github.com/marcin-skalski/review-radar/internal/github"
	"github.com/marcin-skalski/review-radar/internal/store"
)

type Fetcher interface {
	Fetch(ctx context.Context, category github.Category, opts fetcher.FetchOptions) (*fetcher.Result, error)
}

type Store interface {
	GetBucket(ctx context.Context, category github.Category) (*store.Bucket, error)
	LoadSettings(ctx context.Context) (config.Settings, bool, error)
	SaveSettings(ctx context.Context, s config.Settings) error
}

type Notifier interface {
	Test(ctx context.Context) (string, error)
	PreviewSound(ctx context.Context, soundType string) error
}

// AudioCloser tears down the shared audio surface on shutdown.
type AudioCloser interface {
	Close(ctx context.Context) error
}

type BadgeReader interface {
	Current() badge.State
}

type Publisher interface {
	Publish(e bus.Event)
}

// ErrorInfo is the last failed cycle, shown as a dismissible banner.
type ErrorInfo struct {
	Category github.Category `json:"category"`
	Message  string          `json:"message"`
	Auth     bool            `json:"auth"`
	At       time.Time       `json:"at"`
}

type Daemon struct {
	cfg      *config.Config
	fetch    Fetcher
	store    Store
	notifier Notifier
	audio    AudioCloser
	badge    BadgeReader
	router   *bus.Router
	pub      Publisher
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	settings config.Settings
	lastErr  *ErrorInfo

	// resetAssigned carries a new assigned alarm period after a settings change.
	resetAssigned chan time.Duration
}

func New(
	cfg *config.Config,
	fetch Fetcher,
	st Store,
	notifier Notifier,
	audio AudioCloser,
	badgeState BadgeReader,
	router *bus.Router,
	pub Publisher,
	logger *slog.Logger,
) *Daemon {
	d := &Daemon{
		cfg:           cfg,
		fetch:         fetch,
		store:         st,
		notifier:      notifier,
		audio:         audio,
		badge:         badgeState,
		router:        router,
		pub:           pub,
		logger:        logger,
		now:           time.Now,
		settings:      cfg.Defaults.WithDefaults(),
		resetAssigned: make(chan time.Duration, 1),
	}
	d.registerHandlers()
	return d
}

// Install loads persisted settings, seeding them from the config defaults on
// the very first run.
func (d *Daemon) Install(ctx context.Context) error {
	s, ok, err := d.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	if !ok {
		s = d.cfg.Defaults.WithDefaults()
		if err := d.store.SaveSettings(ctx, s); err != nil {
			return err
		}
		d.logger.Info("first run, settings seeded", "sound", s.Sound, "notifications", s.Notifications())
	}

	d.mu.Lock()
	d.settings = s.WithDefaults()
	d.mu.Unlock()
	return nil
}

func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Install(ctx); err != nil {
		return err
	}

	assignedEvery := d.assignedInterval()
	d.logger.Info("daemon started",
		"assigned_interval", assignedEvery,
		"secondary_interval", d.cfg.SecondaryPoll,
		"base_url", d.cfg.BaseURL)

	// Startup: honour the cache so a quick restart does not refetch.
	for _, c := range github.Categories {
		d.cycle(ctx, c, fetcher.FetchOptions{UseCache: true})
	}

	assigned := time.NewTicker(assignedEvery)
	defer assigned.Stop()

	secondary := time.NewTicker(d.cfg.SecondaryPoll)
	defer secondary.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down")
			d.shutdown(ctx)
			return nil
		case <-assigned.C:
			d.cycle(ctx, github.CategoryAssigned, fetcher.FetchOptions{})
		case <-secondary.C:
			d.cycle(ctx, github.CategoryAuthored, fetcher.FetchOptions{})
			d.cycle(ctx, github.CategoryMerged, fetcher.FetchOptions{})
		case every := <-d.resetAssigned:
			d.logger.Info("assigned alarm rescheduled", "interval", every)
			assigned.Reset(every)
		}
	}
}

func (d *Daemon) shutdown(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.audio.Close(closeCtx); err != nil {
		d.logger.Warn("close audio surface", "err", err)
	}
}

// cycle runs one fetch. Failures are recorded for the banner and never stop
// the alarms.
func (d *Daemon) cycle(ctx context.Context, category github.Category, opts fetcher.FetchOptions) (*fetcher.Result, error) {
	res, err := d.fetch.Fetch(ctx, category, opts)
	if err != nil {
		if ctx.Err() == nil {
			d.recordError(category, err)
		}
		return nil, err
	}
	d.clearErrorFor(category)
	return res, nil
}

func (d *Daemon) recordError(category github.Category, err error) {
	d.mu.Lock()
	d.lastErr = &ErrorInfo{
		Category: category,
		Message:  err.Error(),
		Auth:     errors.Is(err, github.ErrAuthentication),
		At:       d.now(),
	}
	d.mu.Unlock()
}

func (d *Daemon) clearErrorFor(category github.Category) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastErr != nil && d.lastErr.Category == category {
		d.lastErr = nil
	}
}

func (d *Daemon) LastError() *ErrorInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastErr == nil {
		return nil
	}
	e := *d.lastErr
	return &e
}

func (d *Daemon) DismissError() {
	d.mu.Lock()
	d.lastErr = nil
	d.mu.Unlock()
	d.pub.Publish(bus.Event{Type: bus.EventErrorDismissed})
}

func (d *Daemon) Settings() config.Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

func (d *Daemon) assignedInterval() time.Duration {
	m := d.Settings().CheckIntervalMinutes
	if m > 0 && m <= config.MaxCheckIntervalMinutes {
		return time.Duration(m) * time.Minute
	}
	return d.cfg.PollInterval
}

// UpdateSettings validates, persists and applies s.
func (d *Daemon) UpdateSettings(ctx context.Context, s config.Settings) (config.Settings, error) {
	s = s.WithDefaults()
	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	if err := d.store.SaveSettings(ctx, s); err != nil {
		return config.Settings{}, err
	}

	before := d.assignedInterval()
	d.mu.Lock()
	d.settings = s
	d.mu.Unlock()

	if after := d.assignedInterval(); after != before {
		select {
		case d.resetAssigned <- after:
		default:
			// a reset is already queued, replace it
			select {
			case <-d.resetAssigned:
			default:
			}
			d.resetAssigned <- after
		}
	}

	d.pub.Publish(bus.Event{Type: bus.EventSettingsChanged})
	return s, nil
}
