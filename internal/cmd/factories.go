package cmd

import (
	"log/slog"

	"github.com/marcin-skalski/review-radar/internal/audio"
	"github.com/marcin-skalski/review-radar/internal/badge"
	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/config"
	"github.com/marcin-skalski/review-radar/internal/daemon"
	"github.com/marcin-skalski/review-radar/internal/fetcher"
	"github.com/marcin-skalski/review-radar/internal/github"
	"github.com/marcin-skalski/review-radar/internal/notify"
	"github.com/marcin-skalski/review-radar/internal/scrape"
	"github.com/marcin-skalski/review-radar/internal/store"
)

// Container holds every wired component of a running daemon
type Container struct {
	Store    *store.SQLite
	Badge    *badge.Badge
	Audio    *audio.Guard
	Notifier *notify.Notifier
	Router   *bus.Router
	Events   *bus.Broadcaster
	Fetcher  *fetcher.Fetcher
	Daemon   *daemon.Daemon
	Server   *bus.Server
}

// NewContainer opens the store and wires the daemon around it.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	st, err := store.Open(cfg.DBPath, logger.With("component", "store"))
	if err != nil {
		return nil, err
	}

	extractor, err := scrape.New(cfg.BaseURL, logger.With("component", "scrape"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	gh := github.NewClient(github.ClientOptions{
		BaseURL:       cfg.BaseURL,
		SessionCookie: cfg.SessionCookie,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.HTTPTimeout,
	}, logger.With("component", "github"))

	bdg := badge.New(cfg.StatusFile, logger.With("component", "badge"))

	audioLog := logger.With("component", "audio")
	guard := audio.NewGuard(audio.NewOffscreen(audio.NewSystemPlayer(), audioLog), audioLog)

	notifier := notify.New(
		notify.NewSystemDesktop(logger.With("component", "notify")),
		guard,
		st,
		cfg.Defaults,
		logger.With("component", "notify"),
	)

	router := bus.NewRouter(logger.With("component", "bus"))
	events := bus.NewBroadcaster(logger.With("component", "bus"))

	f := fetcher.New(
		fetcher.Options{CacheTTL: cfg.CacheTTL},
		gh, extractor, st, bdg, notifier, events,
		logger.With("component", "fetcher"),
	)

	d := daemon.New(cfg, f, st, notifier, guard, bdg, router, events, logger.With("component", "daemon"))

	srv := bus.NewServer(cfg.Bus.Listen, bus.NewHTTPHandler(router, events, logger.With("component", "http")), logger.With("component", "http"))

	return &Container{
		Store:    st,
		Badge:    bdg,
		Audio:    guard,
		Notifier: notifier,
		Router:   router,
		Events:   events,
		Fetcher:  f,
		Daemon:   d,
		Server:   srv,
	}, nil
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
