package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/review-radar/internal/badge"
	"github.com/marcin-skalski/review-radar/internal/bus"
	"github.com/marcin-skalski/review-radar/internal/github"
	"github.com/marcin-skalski/review-radar/internal/logging"
	"github.com/marcin-skalski/review-radar/internal/reconcile"
	"github.com/marcin-skalski/review-radar/internal/store"
)

var fixedNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeSource serves the query string itself as the page body so the fake
// extractor can map it back to canned results.
type fakeSource struct {
	mu       sync.Mutex
	errs     map[string]error
	calls    atomic.Int32
	inflight map[string]int
	maxIn    map[string]int
	delay    time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{errs: map[string]error{}, inflight: map[string]int{}, maxIn: map[string]int{}}
}

func (s *fakeSource) SearchURL(q string) string { return q }

func (s *fakeSource) FetchPage(ctx context.Context, url string) (*github.Page, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.inflight[url]++
	if s.inflight[url] > s.maxIn[url] {
		s.maxIn[url] = s.inflight[url]
	}
	err := s.errs[url]
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inflight[url]--
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &github.Page{Status: 200, URL: url, Body: url}, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string][]github.PullRequest
}

func (e *fakeExtractor) set(q string, prs ...github.PullRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pages[q] = prs
}

func (e *fakeExtractor) Extract(doc string) ([]github.PullRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]github.PullRequest{}, e.pages[doc]...), nil
}

type memStore struct {
	mu        sync.Mutex
	buckets   map[github.Category]store.Bucket
	lastFetch time.Time
	saveErr   error
}

func (m *memStore) GetBucket(ctx context.Context, c github.Category) (*store.Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[c]
	if !ok {
		return nil, nil
	}
	b.PRs = append([]github.PullRequest{}, b.PRs...)
	return &b, nil
}

func (m *memStore) SaveBucket(ctx context.Context, c github.Category, b store.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.buckets[c] = b
	return nil
}

func (m *memStore) SetLastFetchTime(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFetch = t
	return nil
}

func (m *memStore) bucket(c github.Category) store.Bucket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[c]
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, c github.Category, prs []github.PullRequest) error {
	return m.Called(ctx, c, prs).Error(0)
}

func (m *mockNotifier) NotifyStatusChanges(ctx context.Context, changes []reconcile.StatusChange) error {
	return m.Called(ctx, changes).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (p *recordingPublisher) Publish(e bus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	f        *Fetcher
	source   *fakeSource
	extract  *fakeExtractor
	store    *memStore
	badge    *badge.Badge
	notifier *mockNotifier
	pub      *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:   newFakeSource(),
		extract:  &fakeExtractor{pages: map[string][]github.PullRequest{}},
		store:    &memStore{buckets: map[github.Category]store.Bucket{}},
		badge:    badge.New("", logging.Discard()),
		notifier: &mockNotifier{},
		pub:      &recordingPublisher{},
	}
	h.f = New(
		Options{CacheTTL: time.Minute, Now: func() time.Time { return fixedNow }},
		h.source, h.extract, h.store, h.badge, h.notifier, h.pub, logging.Discard(),
	)
	t.Cleanup(func() { h.notifier.AssertExpectations(t) })
	return h
}

func mk(key string) github.PullRequest {
	url := "https://github.com/o/r/pull/" + key
	return github.PullRequest{ID: url, URL: url, Title: "PR " + key, RepoName: "o/r", Type: github.TypeOpen}
}

func stored(prs ...github.PullRequest) []github.PullRequest {
	out := make([]github.PullRequest, len(prs))
	for i, pr := range prs {
		pr.ReviewStatus = github.ReviewPending
		out[i] = pr
	}
	return out
}

func keys(prs []github.PullRequest) []string {
	out := make([]string, len(prs))
	for i, pr := range prs {
		out[i] = pr.Key()
	}
	return out
}

func newKeys(prs []github.PullRequest) []string {
	var out []string
	for _, pr := range prs {
		if pr.IsNew {
			out = append(out, pr.Key())
		}
	}
	return out
}

func keysAre(want ...string) interface{} {
	return mock.MatchedBy(func(prs []github.PullRequest) bool {
		got := keys(prs)
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != mk(want[i]).Key() {
				return false
			}
		}
		return true
	})
}

func TestFetchAssigned_FirstRun(t *testing.T) {
	h := newHarness(t)
	h.extract.set(QueryAssignedPending, mk("A"), mk("B"), mk("C"))
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, keysAre("A", "B", "C")).Return(nil).Once()

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.Len(t, res.PRs, 3)
	assert.Len(t, res.New, 3)
	b := h.store.bucket(github.CategoryAssigned)
	assert.Equal(t, keys(b.PRs), newKeys(b.PRs))
	for _, pr := range b.PRs {
		assert.Equal(t, github.ReviewPending, pr.ReviewStatus)
	}
	assert.True(t, b.LastUpdated.Equal(fixedNow))
	assert.True(t, h.store.lastFetch.Equal(fixedNow))
	assert.Equal(t, "3", h.badge.Current().Text)
	assert.Equal(t, []string{bus.EventPRsUpdated}, h.pub.types())
}

func TestFetchAssigned_SteadyState(t *testing.T) {
	h := newHarness(t)
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: stored(mk("A"), mk("B"), mk("C")), LastUpdated: fixedNow.Add(-time.Hour)}
	h.extract.set(QueryAssignedPending, mk("A"), mk("B"), mk("C"), mk("D"))
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, keysAre("D")).Return(nil).Once()

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{UseCache: true})

	require.NoError(t, err)
	assert.Equal(t, []string{mk("D").Key()}, keys(res.New))
	b := h.store.bucket(github.CategoryAssigned)
	assert.Len(t, b.PRs, 4)
	assert.Equal(t, []string{mk("D").Key()}, newKeys(b.PRs))
	assert.Equal(t, "4", h.badge.Current().Text)
}

func TestFetchAssigned_Removal(t *testing.T) {
	h := newHarness(t)
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: stored(mk("A"), mk("B"), mk("C")), LastUpdated: fixedNow.Add(-time.Hour)}
	h.extract.set(QueryAssignedPending, mk("A"), mk("C"))

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.Empty(t, res.New)
	assert.Equal(t, []string{mk("A").Key(), mk("C").Key()}, keys(h.store.bucket(github.CategoryAssigned).PRs))
	assert.Equal(t, "2", h.badge.Current().Text)
	h.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchAssigned_ForcedRefreshSuppressesNotification(t *testing.T) {
	h := newHarness(t)
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: stored(mk("A")), LastUpdated: fixedNow}
	h.extract.set(QueryAssignedPending, mk("A"), mk("B"))

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{Force: true, UseCache: true})

	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, []string{mk("B").Key()}, keys(res.New))
	assert.Equal(t, []string{mk("B").Key()}, newKeys(h.store.bucket(github.CategoryAssigned).PRs))
	h.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchAssigned_CacheShortCircuit(t *testing.T) {
	h := newHarness(t)
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: stored(mk("A")), LastUpdated: fixedNow.Add(-30 * time.Second)}
	h.extract.set(QueryAssignedPending, mk("A"), mk("B"))

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{UseCache: true})

	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, []string{mk("A").Key()}, keys(res.PRs))
	assert.Equal(t, int32(0), h.source.calls.Load())
	assert.Equal(t, badge.KindEmpty, h.badge.Current().Kind)
	assert.Empty(t, h.pub.types())
}

func TestFetchAssigned_StaleCacheFetches(t *testing.T) {
	h := newHarness(t)
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: stored(mk("A")), LastUpdated: fixedNow.Add(-2 * time.Minute)}
	h.extract.set(QueryAssignedPending, mk("A"))

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{UseCache: true})

	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(2), h.source.calls.Load())
}

func TestFetchAssigned_AuthFailureLeavesBucket(t *testing.T) {
	h := newHarness(t)
	before := store.Bucket{PRs: stored(mk("A")), LastUpdated: fixedNow.Add(-time.Hour)}
	h.store.buckets[github.CategoryAssigned] = before
	h.extract.set(QueryAssignedPending, mk("A"), mk("B"))
	h.source.errs[QueryAssignedReviewed] = fmt.Errorf("fetch listing: %w", github.ErrAuthentication)

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, github.ErrAuthentication)
	assert.Equal(t, before, h.store.bucket(github.CategoryAssigned))
	assert.Equal(t, badge.KindError, h.badge.Current().Kind)
	assert.Equal(t, []string{bus.EventFetchError}, h.pub.types())
}

func TestFetchAssigned_NetworkFailure(t *testing.T) {
	h := newHarness(t)
	h.source.errs[QueryAssignedPending] = &github.StatusError{Code: 502, URL: QueryAssignedPending}

	_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	var statusErr *github.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 502, statusErr.Code)
	assert.NotErrorIs(t, err, github.ErrAuthentication)
	assert.Equal(t, badge.KindError, h.badge.Current().Kind)
	_, ok := h.store.buckets[github.CategoryAssigned]
	assert.False(t, ok)
}

func TestFetchAssigned_SaveFailure(t *testing.T) {
	h := newHarness(t)
	h.store.saveErr = errors.New("disk full")
	h.extract.set(QueryAssignedPending, mk("A"))

	_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.Error(t, err)
	assert.Equal(t, badge.KindError, h.badge.Current().Kind)
	h.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchAssigned_ReviewedDedupe(t *testing.T) {
	h := newHarness(t)
	merged := mk("M")
	merged.Type = github.TypeMerged
	h.extract.set(QueryAssignedPending, mk("A"))
	h.extract.set(QueryAssignedReviewed, mk("A"), mk("B"), merged, mk("B"))
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, keysAre("A")).Return(nil).Once()

	_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.NoError(t, err)
	b := h.store.bucket(github.CategoryAssigned)
	require.Equal(t, []string{mk("A").Key(), mk("B").Key()}, keys(b.PRs))
	assert.Equal(t, github.ReviewPending, b.PRs[0].ReviewStatus)
	assert.Equal(t, github.ReviewReviewed, b.PRs[1].ReviewStatus)
	assert.False(t, b.PRs[1].IsNew)
	assert.Equal(t, "1", h.badge.Current().Text)
}

func TestFetchAssigned_OldReviewedIsNotCarriedOver(t *testing.T) {
	h := newHarness(t)
	oldReviewed := mk("R")
	oldReviewed.ReviewStatus = github.ReviewReviewed
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: append(stored(mk("A")), oldReviewed), LastUpdated: fixedNow.Add(-time.Hour)}
	h.extract.set(QueryAssignedPending, mk("A"))

	_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{mk("A").Key()}, keys(h.store.bucket(github.CategoryAssigned).PRs))
}

func TestFetchAssigned_BadgeCap(t *testing.T) {
	h := newHarness(t)
	prs := make([]github.PullRequest, 150)
	for i := range prs {
		prs[i] = mk(fmt.Sprint(i))
	}
	h.extract.set(QueryAssignedPending, prs...)
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, mock.Anything).Return(nil).Once()

	_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.Equal(t, "99+", h.badge.Current().Text)
}

func TestFetchAssigned_NotifyFailureKeepsPersistence(t *testing.T) {
	h := newHarness(t)
	h.extract.set(QueryAssignedPending, mk("A"))
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, mock.Anything).Return(errors.New("no dbus")).Once()

	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.Len(t, res.PRs, 1)
	assert.Len(t, h.store.bucket(github.CategoryAssigned).PRs, 1)
}

func TestFetchAssigned_SecondPassHasNoNewPRs(t *testing.T) {
	h := newHarness(t)
	h.extract.set(QueryAssignedPending, mk("A"), mk("B"))
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, keysAre("A", "B")).Return(nil).Once()

	_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})
	require.NoError(t, err)
	res, err := h.f.FetchAssigned(context.Background(), FetchOptions{})
	require.NoError(t, err)

	assert.Empty(t, res.New)
	assert.Empty(t, newKeys(h.store.bucket(github.CategoryAssigned).PRs))
}

func TestFetchAssigned_OverlappingCyclesAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.source.delay = 5 * time.Millisecond
	h.extract.set(QueryAssignedPending, mk("A"))
	h.notifier.On("Notify", mock.Anything, github.CategoryAssigned, mock.Anything).Return(nil).Maybe()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.f.FetchAssigned(context.Background(), FetchOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	h.source.mu.Lock()
	defer h.source.mu.Unlock()
	assert.Equal(t, 1, h.source.maxIn[QueryAssignedPending])
	h.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestFetchAuthored_DerivesStatuses(t *testing.T) {
	h := newHarness(t)
	draft := mk("1")
	draft.Type = github.TypeDraft
	h.extract.set(QueryAuthoredOpen, draft, mk("2"), mk("3"), mk("4"), mk("5"))
	h.extract.set(QueryAuthoredChangesRequested, mk("2"), draft)
	h.extract.set(QueryAuthoredApproved, mk("3"), mk("2"))
	h.extract.set(QueryAuthoredCommented, mk("4"), mk("3"))

	res, err := h.f.FetchAuthored(context.Background(), FetchOptions{})

	require.NoError(t, err)
	got := map[string]github.AuthorReviewStatus{}
	for _, pr := range res.PRs {
		got[pr.Title] = pr.AuthorReviewStatus
		assert.Empty(t, pr.ReviewStatus, "review status belongs to the assigned queue")
	}
	assert.Equal(t, map[string]github.AuthorReviewStatus{
		"PR 1": github.AuthorDraft,
		"PR 2": github.AuthorChangesRequested,
		"PR 3": github.AuthorApproved,
		"PR 4": github.AuthorCommented,
		"PR 5": github.AuthorPending,
	}, got)
	assert.Equal(t, badge.KindEmpty, h.badge.Current().Kind)
	h.notifier.AssertNotCalled(t, "NotifyStatusChanges", mock.Anything, mock.Anything)
}

func TestFetchAuthored_NotifiesVerdictChanges(t *testing.T) {
	h := newHarness(t)
	h.extract.set(QueryAuthoredOpen, mk("1"), mk("2"))
	_, err := h.f.FetchAuthored(context.Background(), FetchOptions{})
	require.NoError(t, err)

	h.extract.set(QueryAuthoredApproved, mk("2"))
	h.notifier.On("NotifyStatusChanges", mock.Anything, mock.MatchedBy(func(changes []reconcile.StatusChange) bool {
		return len(changes) == 1 &&
			changes[0].PR.Key() == mk("2").Key() &&
			changes[0].From == github.AuthorPending &&
			changes[0].PR.AuthorReviewStatus == github.AuthorApproved
	})).Return(nil).Once()

	res, err := h.f.FetchAuthored(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.Empty(t, res.New)
}

func TestFetchAuthored_FailureDoesNotTouchBadgeUnlessAuth(t *testing.T) {
	h := newHarness(t)
	h.badge.SetCount(2)
	h.source.errs[QueryAuthoredCommented] = errors.New("connection reset")

	_, err := h.f.FetchAuthored(context.Background(), FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, "2", h.badge.Current().Text)

	h.source.errs[QueryAuthoredCommented] = github.ErrAuthentication
	_, err = h.f.FetchAuthored(context.Background(), FetchOptions{})
	require.ErrorIs(t, err, github.ErrAuthentication)
	assert.Equal(t, badge.KindError, h.badge.Current().Kind)
}

func TestFetchMerged_PendingWinsAndFirstRunIsQuiet(t *testing.T) {
	h := newHarness(t)
	h.store.buckets[github.CategoryAssigned] = store.Bucket{PRs: stored(mk("X")), LastUpdated: fixedNow}
	h.extract.set(QueryMergedAuthored, mk("X"), mk("M1"))
	h.extract.set(QueryMergedReviewed, mk("M1"), mk("M2"))

	res, err := h.f.FetchMerged(context.Background(), FetchOptions{})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{mk("M1").Key(), mk("M2").Key()}, keys(res.PRs))
	for _, pr := range res.PRs {
		assert.Equal(t, github.TypeMerged, pr.Type)
		assert.Empty(t, pr.ReviewStatus)
	}
	h.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)

	h.extract.set(QueryMergedReviewed, mk("M1"), mk("M2"), mk("M3"))
	h.notifier.On("Notify", mock.Anything, github.CategoryMerged, keysAre("M3")).Return(nil).Once()

	res, err = h.f.FetchMerged(context.Background(), FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, res.PRs, 3)
}

func TestFetch_UnknownCategory(t *testing.T) {
	h := newHarness(t)

	_, err := h.f.Fetch(context.Background(), github.Category("starred"), FetchOptions{})

	assert.Error(t, err)
}

func TestFetch_DispatchesByCategory(t *testing.T) {
	h := newHarness(t)
	h.extract.set(QueryMergedAuthored, mk("M1"))

	res, err := h.f.Fetch(context.Background(), github.CategoryMerged, FetchOptions{})

	require.NoError(t, err)
	assert.Equal(t, github.CategoryMerged, res.Category)
}
