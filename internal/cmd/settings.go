package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/huh"

	"github.com/marcin-skalski/review-radar/internal/config"
	"github.com/marcin-skalski/review-radar/internal/daemon"
	"github.com/marcin-skalski/review-radar/internal/logging"
	"github.com/marcin-skalski/review-radar/internal/store"
)

// SettingsCmd manages settings
type SettingsCmd struct {
	Show SettingsShowCmd `cmd:"show" help:"Print the current settings" default:"1"`
	Edit SettingsEditCmd `cmd:"edit" help:"Edit settings interactively"`
}

type SettingsShowCmd struct{}

func (s *SettingsShowCmd) Run(cli *CLI) error {
	settings, err := loadSettings(cli)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "notifications\t%t\n", settings.Notifications())
	fmt.Fprintf(w, "include drafts\t%t\n", settings.Drafts())
	fmt.Fprintf(w, "sound\t%s\n", settings.Sound)
	fmt.Fprintf(w, "authored status updates\t%t\n", settings.AuthoredStatus())
	fmt.Fprintf(w, "merged notifications\t%t\n", settings.Merged())
	interval := "config default (" + cli.cfg.PollInterval.String() + ")"
	if settings.CheckIntervalMinutes > 0 {
		interval = strconv.Itoa(settings.CheckIntervalMinutes) + "m"
	}
	fmt.Fprintf(w, "check interval\t%s\n", interval)
	return w.Flush()
}

type SettingsEditCmd struct{}

func (s *SettingsEditCmd) Run(cli *CLI) error {
	settings, err := loadSettings(cli)
	if err != nil {
		return err
	}

	form, values := settingsForm(settings)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	updated, err := values.apply(settings)
	if err != nil {
		return err
	}
	return saveSettings(cli, updated)
}

type formValues struct {
	notifications  bool
	drafts         bool
	sound          string
	authoredStatus bool
	merged         bool
	interval       string
}

func (v *formValues) apply(s config.Settings) (config.Settings, error) {
	minutes := 0
	if v.interval != "" {
		n, err := strconv.Atoi(v.interval)
		if err != nil {
			return config.Settings{}, fmt.Errorf("check interval: %w", err)
		}
		minutes = n
	}
	s.NotificationsEnabled = &v.notifications
	s.IncludeDrafts = &v.drafts
	s.Sound = v.sound
	s.NotifyAuthoredStatus = &v.authoredStatus
	s.NotifyMerged = &v.merged
	s.CheckIntervalMinutes = minutes
	return s, s.Validate()
}

func settingsForm(s config.Settings) (*huh.Form, *formValues) {
	v := &formValues{
		notifications:  s.Notifications(),
		drafts:         s.Drafts(),
		sound:          s.Sound,
		authoredStatus: s.AuthoredStatus(),
		merged:         s.Merged(),
	}
	if s.CheckIntervalMinutes > 0 {
		v.interval = strconv.Itoa(s.CheckIntervalMinutes)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Desktop notifications").
				Value(&v.notifications),
			huh.NewConfirm().
				Title("Notify about draft review requests").
				Value(&v.drafts),
			huh.NewSelect[string]().
				Title("Sound").
				Options(
					huh.NewOption("Chime", config.SoundChime),
					huh.NewOption("Bell", config.SoundBell),
					huh.NewOption("Off", config.SoundOff),
				).
				Value(&v.sound),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Notify when my pull requests get reviews").
				Value(&v.authoredStatus),
			huh.NewConfirm().
				Title("Notify about merged pull requests").
				Value(&v.merged),
			huh.NewInput().
				Title("Check interval in minutes").
				Description("Leave empty to use poll_interval from the config file").
				Value(&v.interval).
				Validate(validateInterval),
		),
	)
	return form, v
}

func validateInterval(s string) error {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > config.MaxCheckIntervalMinutes {
		return fmt.Errorf("enter a number of minutes between 1 and %d", config.MaxCheckIntervalMinutes)
	}
	return nil
}

// loadSettings asks the daemon, falling back to the store when it is not running.
func loadSettings(cli *CLI) (config.Settings, error) {
	var s config.Settings
	err := cli.send(daemon.ActionGetSettings, nil, &s)
	if err == nil || isRejected(err) {
		return s, err
	}

	st, openErr := store.Open(cli.cfg.DBPath, logging.Discard())
	if openErr != nil {
		return config.Settings{}, errors.Join(err, openErr)
	}
	defer st.Close()

	s, ok, loadErr := st.LoadSettings(context.Background())
	if loadErr != nil {
		return config.Settings{}, loadErr
	}
	if !ok {
		return cli.cfg.Defaults.WithDefaults(), nil
	}
	return s.WithDefaults(), nil
}

// saveSettings goes through the daemon so it reschedules right away. Only when
// the daemon is unreachable is the store written directly, to be picked up on
// the next start. A refusal from a running daemon is returned as is.
func saveSettings(cli *CLI, s config.Settings) error {
	err := cli.send(daemon.ActionSaveSettings, s, nil)
	if err == nil {
		fmt.Println("Settings saved.")
		return nil
	}
	if isRejected(err) {
		return err
	}

	st, err := store.Open(cli.cfg.DBPath, logging.Discard())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveSettings(context.Background(), s); err != nil {
		return err
	}
	fmt.Println("Settings saved. The daemon is not running; they apply on next start.")
	return nil
}
