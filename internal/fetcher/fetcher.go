// Package fetcher runs reconciliation cycles: fetch listing pages, extract,
// diff against the stored bucket, persist, then update badge, notify and
// publish.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/github"
	"github.com/marcin-skalski/review-radar/internal/reconcile"
	"github.com/marcin-skalski/review-radar/internal/store"
)

type Source interface {
	SearchURL(query string) string
	FetchPage(ctx context.Context, url string) (*github.Page, error)
}

type Extractor interface {
	Extract(doc string) ([]github.PullRequest, error)
}

type Store interface {
	GetBucket(ctx context.Context, category github.Category) (*store.Bucket, error)
	SaveBucket(ctx context.Context, category github.Category, b store.Bucket) error
	SetLastFetchTime(ctx context.Context, t time.Time) error
}

type Badge interface {
	SetLoading()
	SetError()
	SetCount(n int)
}

type Notifier interface {
	Notify(ctx context.Context, category github.Category, prs []github.PullRequest) error
	NotifyStatusChanges(ctx context.Context, changes []reconcile.StatusChange) error
}

type Publisher interface {
	Publish(e bus.Event)
}

type Options struct {
	// CacheTTL is how long a stored bucket short-circuits a cached fetch.
	CacheTTL time.Duration
	Now      func() time.Time
}

type FetchOptions struct {
	// Force is a manual refresh: it ignores the cache and never notifies.
	Force bool
	// UseCache returns the stored bucket when it is younger than CacheTTL.
	UseCache bool
}

type Result struct {
	Category  github.Category      `json:"category"`
	PRs       []github.PullRequest `json:"prs"`
	New       []github.PullRequest `json:"new"`
	FromCache bool                 `json:"fromCache"`
}

type Fetcher struct {
	opts     Options
	source   Source
	extract  Extractor
	store    Store
	badge    Badge
	notifier Notifier
	pub      Publisher
	logger   *slog.Logger

	// one lock per category so overlapping cycles cannot clobber each other
	locks map[github.Category]*sync.Mutex
}

func New(
	opts Options,
	source Source,
	extract Extractor,
	st Store,
	badge Badge,
	notifier Notifier,
	pub Publisher,
	logger *slog.Logger,
) *Fetcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	locks := make(map[github.Category]*sync.Mutex, len(github.Categories))
	for _, c := range github.Categories {
		locks[c] = &sync.Mutex{}
	}
	return &Fetcher{
		opts:     opts,
		source:   source,
		extract:  extract,
		store:    st,
		badge:    badge,
		notifier: notifier,
		pub:      pub,
		logger:   logger,
		locks:    locks,
	}
}

// Fetch runs one cycle for category.
func (f *Fetcher) Fetch(ctx context.Context, category github.Category, opts FetchOptions) (*Result, error) {
	switch category {
	case github.CategoryAssigned:
		return f.FetchAssigned(ctx, opts)
	case github.CategoryAuthored:
		return f.FetchAuthored(ctx, opts)
	case github.CategoryMerged:
		return f.FetchMerged(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
}

// FetchAssigned reconciles the review queue. Only pending PRs are diffed,
// counted on the badge and notified; reviewed ones ride along for display.
func (f *Fetcher) FetchAssigned(ctx context.Context, opts FetchOptions) (*Result, error) {
	const category = github.CategoryAssigned
	unlock := f.lock(category)
	defer unlock()

	old, cached, err := f.begin(ctx, category, opts)
	if err != nil || cached != nil {
		return cached, err
	}
	f.badge.SetLoading()

	var pending, reviewed []github.PullRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pending, err = f.query(gctx, QueryAssignedPending)
		return err
	})
	g.Go(func() (err error) {
		reviewed, err = f.query(gctx, QueryAssignedReviewed)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, f.fail(category, err)
	}

	diff := reconcile.Diff(pendingOf(old), pending, reconcile.WithDefaultReviewStatus(github.ReviewPending))

	inPending := reconcile.Keys(diff.All)
	all := append([]github.PullRequest{}, diff.All...)
	for _, pr := range reviewed {
		if inPending[pr.Key()] || pr.Type == github.TypeMerged {
			continue
		}
		inPending[pr.Key()] = true
		pr.ReviewStatus = github.ReviewReviewed
		pr.IsNew = false
		all = append(all, pr)
	}

	now := f.opts.Now()
	if err := f.store.SaveBucket(ctx, category, store.Bucket{PRs: all, LastUpdated: now}); err != nil {
		return nil, f.fail(category, err)
	}
	if err := f.store.SetLastFetchTime(ctx, now); err != nil {
		f.logger.Error("record last fetch time", "err", err)
	}

	f.badge.SetCount(len(diff.All))
	f.logCycle(category, old, all, diff.New)

	if len(diff.New) > 0 && !opts.Force {
		if err := f.notifier.Notify(ctx, category, diff.New); err != nil {
			f.logger.Error("notify", "category", category, "err", err)
		}
	}
	f.publish(category)

	return &Result{Category: category, PRs: all, New: diff.New}, nil
}

// FetchAuthored reconciles the user's own open PRs and derives each one's
// review verdict from the sub-queries it appears in.
func (f *Fetcher) FetchAuthored(ctx context.Context, opts FetchOptions) (*Result, error) {
	const category = github.CategoryAuthored
	unlock := f.lock(category)
	defer unlock()

	old, cached, err := f.begin(ctx, category, opts)
	if err != nil || cached != nil {
		return cached, err
	}

	queries := []string{
		QueryAuthoredOpen,
		QueryAuthoredChangesRequested,
		QueryAuthoredApproved,
		QueryAuthoredCommented,
	}
	results := make([][]github.PullRequest, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() (err error) {
			results[i], err = f.query(gctx, q)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, f.fail(category, err)
	}

	changesRequested := reconcile.Keys(results[1])
	approved := reconcile.Keys(results[2])
	commented := reconcile.Keys(results[3])

	open := results[0]
	for i := range open {
		open[i].AuthorReviewStatus = authorStatus(open[i], changesRequested, approved, commented)
	}

	var previous []github.PullRequest
	if old != nil {
		previous = old.PRs
	}
	diff := reconcile.Diff(previous, open)

	if err := f.store.SaveBucket(ctx, category, store.Bucket{PRs: diff.All, LastUpdated: f.opts.Now()}); err != nil {
		return nil, f.fail(category, err)
	}
	f.logCycle(category, old, diff.All, diff.New)

	if changes := reconcile.StatusChanges(previous, diff.All); len(changes) > 0 && !opts.Force {
		if err := f.notifier.NotifyStatusChanges(ctx, changes); err != nil {
			f.logger.Error("notify", "category", category, "err", err)
		}
	}
	f.publish(category)

	return &Result{Category: category, PRs: diff.All, New: diff.New}, nil
}

func authorStatus(pr github.PullRequest, changesRequested, approved, commented map[string]bool) github.AuthorReviewStatus {
	key := pr.Key()
	switch {
	case pr.Type == github.TypeDraft:
		return github.AuthorDraft
	case changesRequested[key]:
		return github.AuthorChangesRequested
	case approved[key]:
		return github.AuthorApproved
	case commented[key]:
		return github.AuthorCommented
	default:
		return github.AuthorPending
	}
}

// FetchMerged reconciles recently merged PRs the user wrote or reviewed. A PR
// still pending in the review queue stays there and is left out here.
func (f *Fetcher) FetchMerged(ctx context.Context, opts FetchOptions) (*Result, error) {
	const category = github.CategoryMerged
	unlock := f.lock(category)
	defer unlock()

	old, cached, err := f.begin(ctx, category, opts)
	if err != nil || cached != nil {
		return cached, err
	}

	var authored, reviewed []github.PullRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		authored, err = f.query(gctx, QueryMergedAuthored)
		return err
	})
	g.Go(func() (err error) {
		reviewed, err = f.query(gctx, QueryMergedReviewed)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, f.fail(category, err)
	}

	assigned, err := f.store.GetBucket(ctx, github.CategoryAssigned)
	if err != nil {
		return nil, f.fail(category, fmt.Errorf("read assigned bucket: %w", err))
	}
	exclude := reconcile.Keys(pendingOf(assigned))

	merged := make([]github.PullRequest, 0, len(authored)+len(reviewed))
	for _, pr := range append(authored, reviewed...) {
		if exclude[pr.Key()] {
			continue
		}
		exclude[pr.Key()] = true
		pr.Type = github.TypeMerged
		merged = append(merged, pr)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	var previous []github.PullRequest
	if old != nil {
		previous = old.PRs
	}
	diff := reconcile.Diff(previous, merged)

	if err := f.store.SaveBucket(ctx, category, store.Bucket{PRs: diff.All, LastUpdated: f.opts.Now()}); err != nil {
		return nil, f.fail(category, err)
	}
	f.logCycle(category, old, diff.All, diff.New)

	// the first run would announce the whole history
	if len(diff.New) > 0 && !opts.Force && old != nil {
		if err := f.notifier.Notify(ctx, category, diff.New); err != nil {
			f.logger.Error("notify", "category", category, "err", err)
		}
	}
	f.publish(category)

	return &Result{Category: category, PRs: diff.All, New: diff.New}, nil
}

// begin reads the stored bucket and answers from it when the cache allows.
func (f *Fetcher) begin(ctx context.Context, category github.Category, opts FetchOptions) (*store.Bucket, *Result, error) {
	old, err := f.store.GetBucket(ctx, category)
	if err != nil {
		return nil, nil, f.fail(category, fmt.Errorf("read bucket: %w", err))
	}

	if opts.UseCache && !opts.Force && old != nil && old.Age(f.opts.Now()) < f.opts.CacheTTL {
		f.logger.Debug("serving cached bucket", "category", category, "count", len(old.PRs))
		return old, &Result{Category: category, PRs: old.PRs, New: []github.PullRequest{}, FromCache: true}, nil
	}
	return old, nil, nil
}

func (f *Fetcher) query(ctx context.Context, q string) ([]github.PullRequest, error) {
	url := f.source.SearchURL(q)
	page, err := f.source.FetchPage(ctx, url)
	if err != nil {
		return nil, err
	}
	prs, err := f.extract.Extract(page.Body)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}
	return prs, nil
}

// fail leaves the bucket alone. The badge turns to error for the review
// queue, and for any category when the session is gone.
func (f *Fetcher) fail(category github.Category, err error) error {
	err = fmt.Errorf("fetch %s: %w", category, err)

	auth := errors.Is(err, github.ErrAuthentication)
	if category == github.CategoryAssigned || auth {
		f.badge.SetError()
	}
	f.logger.Error("fetch cycle failed", "category", category, "auth", auth, "err", err)
	f.pub.Publish(bus.Event{Type: bus.EventFetchError, Category: string(category), Message: err.Error()})
	return err
}

func (f *Fetcher) publish(category github.Category) {
	f.pub.Publish(bus.Event{Type: bus.EventPRsUpdated, Category: string(category)})
}

func (f *Fetcher) lock(category github.Category) func() {
	mu := f.locks[category]
	mu.Lock()
	return mu.Unlock
}

func (f *Fetcher) logCycle(category github.Category, old *store.Bucket, all, fresh []github.PullRequest) {
	var previous []github.PullRequest
	if old != nil {
		previous = old.PRs
	}
	if gone := reconcile.Removed(previous, all); len(gone) > 0 {
		f.logger.Debug("pull requests dropped", "category", category, "keys", gone)
	}
	f.logger.Info("fetch cycle done", "category", category, "count", len(all), "new", len(fresh))
}

// pendingOf returns the assigned entries still waiting for review.
func pendingOf(b *store.Bucket) []github.PullRequest {
	if b == nil {
		return nil
	}
	out := make([]github.PullRequest, 0, len(b.PRs))
	for _, pr := range b.PRs {
		if pr.ReviewStatus != github.ReviewReviewed {
			out = append(out, pr)
		}
	}
	return out
}
