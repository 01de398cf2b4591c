package notify

import (
	"context"
	"log/slog"
)

// SystemDesktop shows notifications with the platform's native tool.
type SystemDesktop struct {
	logger *slog.Logger
}

func NewSystemDesktop(logger *slog.Logger) *SystemDesktop {
	return &SystemDesktop{logger: logger}
}

func (d *SystemDesktop) Show(ctx context.Context, n Notification) error {
	d.logger.Debug("showing desktop notification", "id", n.ID, "url", n.URL)
	return show(ctx, n)
}
