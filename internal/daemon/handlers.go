package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/config"
	"github.com/marcin-skalski/review-radar/internal/fetcher"
	"github.com/marcin-skalski/review-radar/internal/github"
)

const (
	ActionGetAssignedPRs   = "getAssignedPRs"
	ActionFetchAssignedPRs = "fetchAssignedPRs"
	ActionGetAuthoredPRs   = "getAuthoredPRs"
	ActionFetchAuthoredPRs = "fetchAuthoredPRs"
	ActionGetMergedPRs     = "getMergedPRs"
	ActionFetchMergedPRs   = "fetchMergedPRs"
	ActionGetSettings      = "getSettings"
	ActionSaveSettings     = "saveSettings"
	ActionGetBadge         = "getBadge"
	ActionPreviewSound     = "previewSound"
	ActionPlaySound        = "playSound"
	ActionTestNotification = "testNotification"
	ActionGetLastError     = "getLastError"
	ActionDismissError     = "dismissError"
)

// GetAction and FetchAction name the bus actions for a category.
func GetAction(c github.Category) string {
	switch c {
	case github.CategoryAuthored:
		return ActionGetAuthoredPRs
	case github.CategoryMerged:
		return ActionGetMergedPRs
	default:
		return ActionGetAssignedPRs
	}
}

func FetchAction(c github.Category) string {
	switch c {
	case github.CategoryAuthored:
		return ActionFetchAuthoredPRs
	case github.CategoryMerged:
		return ActionFetchMergedPRs
	default:
		return ActionFetchAssignedPRs
	}
}

// BucketView is the read-only view of a stored bucket.
type BucketView struct {
	Category    github.Category      `json:"category"`
	PRs         []github.PullRequest `json:"prs"`
	LastUpdated *time.Time           `json:"lastUpdated"`
}

type FetchRequest struct {
	Force    bool `json:"force"`
	UseCache bool `json:"useCache"`
}

type SoundRequest struct {
	SoundType string `json:"soundType"`
}

func (d *Daemon) registerHandlers() {
	for _, c := range github.Categories {
		d.router.Handle(GetAction(c), d.handleGet(c))
		d.router.Handle(FetchAction(c), d.handleFetch(c))
	}
	d.router.Handle(ActionGetSettings, d.handleGetSettings)
	d.router.Handle(ActionSaveSettings, d.handleSaveSettings)
	d.router.Handle(ActionGetBadge, d.handleGetBadge)
	d.router.Handle(ActionPreviewSound, d.handlePreviewSound)
	d.router.Handle(ActionPlaySound, d.handlePlaySound)
	d.router.Handle(ActionTestNotification, d.handleTestNotification)
	d.router.Handle(ActionGetLastError, d.handleGetLastError)
	d.router.Handle(ActionDismissError, d.handleDismissError)
}

func (d *Daemon) handleGet(c github.Category) bus.HandlerFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		b, err := d.store.GetBucket(ctx, c)
		if err != nil {
			return nil, err
		}
		view := BucketView{Category: c, PRs: []github.PullRequest{}}
		if b != nil {
			view.PRs = b.PRs
			at := b.LastUpdated
			view.LastUpdated = &at
		}
		return view, nil
	}
}

func (d *Daemon) handleFetch(c github.Category) bus.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req FetchRequest
		if err := bus.Decode(payload, &req); err != nil {
			return nil, fmt.Errorf("decode fetch request: %w", err)
		}
		return d.cycle(ctx, c, fetcher.FetchOptions{Force: req.Force, UseCache: req.UseCache})
	}
}

func (d *Daemon) handleGetSettings(context.Context, json.RawMessage) (any, error) {
	return d.Settings(), nil
}

func (d *Daemon) handleSaveSettings(ctx context.Context, payload json.RawMessage) (any, error) {
	if len(payload) == 0 {
		return nil, errors.New("settings payload is required")
	}
	var s config.Settings
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return d.UpdateSettings(ctx, s)
}

func (d *Daemon) handleGetBadge(context.Context, json.RawMessage) (any, error) {
	return d.badge.Current(), nil
}

func (d *Daemon) handlePreviewSound(ctx context.Context, payload json.RawMessage) (any, error) {
	var req SoundRequest
	if err := bus.Decode(payload, &req); err != nil {
		return nil, fmt.Errorf("decode sound request: %w", err)
	}
	if req.SoundType == "" {
		return nil, errors.New("soundType is required")
	}
	return nil, d.notifier.PreviewSound(ctx, req.SoundType)
}

// handlePlaySound plays soundType, or the configured sound when none is given.
func (d *Daemon) handlePlaySound(ctx context.Context, payload json.RawMessage) (any, error) {
	var req SoundRequest
	if err := bus.Decode(payload, &req); err != nil {
		return nil, fmt.Errorf("decode sound request: %w", err)
	}
	if req.SoundType == "" {
		req.SoundType = d.Settings().Sound
	}
	return nil, d.notifier.PreviewSound(ctx, req.SoundType)
}

func (d *Daemon) handleTestNotification(ctx context.Context, _ json.RawMessage) (any, error) {
	id, err := d.notifier.Test(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

func (d *Daemon) handleGetLastError(context.Context, json.RawMessage) (any, error) {
	return d.LastError(), nil
}

func (d *Daemon) handleDismissError(context.Context, json.RawMessage) (any, error) {
	d.DismissError()
	return nil, nil
}
