package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/review-radar/internal/logging"
	"github.com/marcin-skalski/review-radar/internal/tui"
)

// RunCmd starts the daemon and, on a terminal, the dashboard.
type RunCmd struct {
	NoTUI bool `help:"Run headless even on a terminal" env:"REVIEW_RADAR_NO_TUI"`
}

func (r *RunCmd) Run(cli *CLI) error {
	cfg := cli.cfg
	enableTUI := !r.NoTUI && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())

	logger, err := logging.SetupLogger(logging.Options{File: cfg.LogFile, Level: cfg.Log.Level, Quiet: enableTUI})
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logging.CloseFile()

	if cfg.SessionCookie == "" {
		logger.Warn("no session cookie set, GitHub will treat requests as signed out", "env", cfg.SessionCookieEnv)
	}

	gin.SetMode(gin.ReleaseMode)
	container, err := NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	cli.Container = container
	defer cli.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.Server.Run(ctx) })
	g.Go(func() error { return container.Daemon.Run(ctx) })

	if !enableTUI {
		logger.Info("review-radar starting (headless)", "config", cli.Config, "listen", cfg.Bus.Listen)
		return g.Wait()
	}

	events, unsubscribe := container.Events.Subscribe(16)
	defer unsubscribe()

	m := tui.NewModel(container.Router, tui.Options{
		RefreshInterval: cfg.TUI.RefreshInterval,
		Events:          events,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		stop()
		_ = g.Wait()
		return fmt.Errorf("dashboard: %w", err)
	}
	stop()
	return g.Wait()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
