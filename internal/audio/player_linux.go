//go:build linux

package audio

import (
	"os/exec"

	"github.com/marcin-skalski/review-radar/internal/config"
)

type command struct {
	name string
	args []string
}

// playTone tries PulseAudio first, then ALSA.
func playTone(soundType string) bool {
	var candidates []command
	switch soundType {
	case config.SoundBell:
		candidates = []command{
			{"paplay", []string{"/usr/share/sounds/freedesktop/stereo/bell.oga"}},
			{"aplay", []string{"-q", "/usr/share/sounds/freedesktop/stereo/bell.wav"}},
		}
	default:
		candidates = []command{
			{"paplay", []string{"/usr/share/sounds/freedesktop/stereo/message-new-instant.oga"}},
			{"paplay", []string{"/usr/share/sounds/freedesktop/stereo/complete.oga"}},
			{"aplay", []string{"-q", "/usr/share/sounds/freedesktop/stereo/complete.wav"}},
		}
	}

	for _, c := range candidates {
		if err := exec.Command(c.name, c.args...).Run(); err == nil {
			return true
		}
	}
	return false
}
