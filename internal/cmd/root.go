package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/config"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `help:"Path to the config file" default:"config.yaml" type:"path" env:"REVIEW_RADAR_CONFIG"`

	Run              RunCmd              `cmd:"" help:"Run the poller with the queue dashboard (default)" default:"1"`
	Status           StatusCmd           `cmd:"status" help:"Print the badge for status bars"`
	Fetch            FetchCmd            `cmd:"fetch" help:"Ask the running daemon to fetch a category"`
	List             ListCmd             `cmd:"list" help:"List the stored pull requests of a category"`
	Send             SendCmd             `cmd:"send" help:"Send a raw bus message to the running daemon" hidden:""`
	Settings         SettingsCmd         `cmd:"settings" help:"Show or edit notification settings"`
	PlaySound        PlaySoundCmd        `cmd:"play-sound" help:"Play a notification sound through the daemon"`
	TestNotification TestNotificationCmd `cmd:"test-notification" help:"Show a test desktop notification"`

	// Internal fields (not flags)
	Container *Container     `kong:"-"`
	cfg       *config.Config `kong:"-"`
}

// AfterApply loads the config once flags are parsed.
func (c *CLI) AfterApply() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}

// client talks to the daemon started by `review-radar run`.
func (c *CLI) client() *bus.Client {
	return bus.NewClient(c.cfg.Bus.Listen, c.cfg.HTTPTimeout+5*time.Second)
}

func (c *CLI) send(action string, payload any, out any) error {
	ctx, cancel := signalContext()
	defer cancel()

	resp, err := c.client().Send(ctx, action, payload)
	if err != nil {
		return err
	}
	if !resp.Success {
		return &RejectedError{Action: action, Message: resp.Error}
	}
	if out == nil {
		return nil
	}
	return bus.DecodeData(resp.Data, out)
}

// RejectedError is a request the daemon received and refused. Anything else
// coming out of send means the daemon could not be reached.
type RejectedError struct {
	Action  string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func isRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
