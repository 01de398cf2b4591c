//go:build darwin

package audio

import (
	"os/exec"

	"github.com/marcin-skalski/review-radar/internal/config"
)

func playTone(soundType string) bool {
	files := []string{"/System/Library/Sounds/Glass.aiff", "/System/Library/Sounds/Tink.aiff"}
	if soundType == config.SoundBell {
		files = []string{"/System/Library/Sounds/Ping.aiff", "/System/Library/Sounds/Pop.aiff"}
	}

	for _, f := range files {
		if err := exec.Command("afplay", f).Start(); err == nil {
			return true
		}
	}
	return false
}
