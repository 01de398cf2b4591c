package tui

import (
	"context"
	"errors"
	"time"

	"github.com/marcin-skalski/review-radar/internal/badge"
	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/daemon"
	"github.com/marcin-skalski/review-radar/internal/github"
)

// Sender is satisfied by both the in-process bus.Router and the HTTP bus.Client.
type Sender interface {
	Send(ctx context.Context, action string, payload any) (bus.Response, error)
}

type Snapshot struct {
	Timestamp time.Time
	Badge     badge.State
	Buckets   map[github.Category]daemon.BucketView
	LastError *daemon.ErrorInfo
}

// Bucket returns the view for c, empty when it was never loaded.
func (s Snapshot) Bucket(c github.Category) daemon.BucketView {
	if b, ok := s.Buckets[c]; ok {
		return b
	}
	return daemon.BucketView{Category: c}
}

// NewCount is the number of PRs in c flagged as new since the previous fetch.
func (s Snapshot) NewCount(c github.Category) int {
	n := 0
	for _, pr := range s.Bucket(c).PRs {
		if pr.IsNew {
			n++
		}
	}
	return n
}

// LoadSnapshot reads every bucket plus the badge and last error over the bus.
func LoadSnapshot(ctx context.Context, sender Sender) (Snapshot, error) {
	snap := Snapshot{
		Timestamp: time.Now(),
		Buckets:   make(map[github.Category]daemon.BucketView, len(github.Categories)),
	}

	for _, c := range github.Categories {
		var view daemon.BucketView
		if err := call(ctx, sender, daemon.GetAction(c), nil, &view); err != nil {
			return Snapshot{}, err
		}
		snap.Buckets[c] = view
	}
	if err := call(ctx, sender, daemon.ActionGetBadge, nil, &snap.Badge); err != nil {
		return Snapshot{}, err
	}
	if err := call(ctx, sender, daemon.ActionGetLastError, nil, &snap.LastError); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func call(ctx context.Context, sender Sender, action string, payload, out any) error {
	resp, err := sender.Send(ctx, action, payload)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	if out == nil {
		return nil
	}
	return bus.DecodeData(resp.Data, out)
}
