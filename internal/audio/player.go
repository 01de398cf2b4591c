package audio

import (
	"fmt"
	"io"
	"os"
)

// SystemPlayer plays tones with whatever the platform offers and falls back
// to the terminal bell.
type SystemPlayer struct {
	bellOut io.Writer
}

func NewSystemPlayer() *SystemPlayer {
	return &SystemPlayer{bellOut: os.Stderr}
}

func (p *SystemPlayer) Play(soundType string) error {
	if playTone(soundType) {
		return nil
	}
	return p.terminalBell()
}

func (p *SystemPlayer) terminalBell() error {
	_, err := fmt.Fprint(p.bellOut, "\a")
	return err
}
