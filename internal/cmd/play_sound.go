package cmd

import "github.com/marcin-skalski/review-radar/internal/daemon"

// PlaySoundCmd plays a sound through the daemon's audio surface
type PlaySoundCmd struct {
	Sound string `arg:"" optional:"" help:"Sound to play (chime, bell, off); defaults to the configured one"`
}

func (p *PlaySoundCmd) Run(cli *CLI) error {
	return cli.send(daemon.ActionPlaySound, daemon.SoundRequest{SoundType: p.Sound}, nil)
}

// TestNotificationCmd shows a sample notification with the current settings.
type TestNotificationCmd struct{}

func (t *TestNotificationCmd) Run(cli *CLI) error {
	return cli.send(daemon.ActionTestNotification, nil, nil)
}
