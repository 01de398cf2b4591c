//go:build linux

package notify

import (
	"context"
	"fmt"
	"os/exec"
)

func show(ctx context.Context, n Notification) error {
	args := []string{"--app-name=review-radar", "--icon=dialog-information", n.Title, n.Message}
	if out, err := exec.CommandContext(ctx, "notify-send", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send: %w: %s", err, out)
	}
	return nil
}
