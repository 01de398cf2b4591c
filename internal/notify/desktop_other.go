//go:build !darwin && !linux

package notify

import (
	"context"
	"errors"
)

func show(context.Context, Notification) error {
	return errors.ErrUnsupported
}
