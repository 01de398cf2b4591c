//go:build darwin

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

func show(ctx context.Context, n Notification) error {
	script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(n.Message), strconv.Quote(n.Title))
	if out, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, out)
	}
	return nil
}
