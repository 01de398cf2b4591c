// Package scrape turns GitHub pull request listing pages into PullRequest records.
//
// The extractor works on raw HTML text with prioritized regular expression chains
// rather than a DOM, so each concern (row containers, title link, author, timestamp,
// state) has several alternative patterns tried in order. Markup drift degrades to
// fewer fields or fewer rows, never to an error.
package scrape

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/marcin-skalski/review-radar/internal/github"
)

type Option func(*Extractor)

// WithClock replaces the clock used for missing or unparsable timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

type Extractor struct {
	base   *url.URL
	now    func() time.Time
	logger *slog.Logger
}

func New(baseURL string, logger *slog.Logger, opts ...Option) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	e := &Extractor{
		base:   base,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var signInMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<title>\s*Sign in to GitHub`),
	regexp.MustCompile(`\bid="login_field"`),
	regexp.MustCompile(`<form\b[^>]*\baction="(?:https://github\.com)?/session"`),
}

// Known empty-state strings. Their presence is positive evidence that zero rows
// really means zero pull requests.
var emptyMarkers = []string{
	"no results matched your search",
	"no pull requests to review",
	"there aren't any open pull requests",
	"there aren’t any open pull requests",
	"no open pull requests",
}

// Extract parses one listing page. A sign-in page yields github.ErrAuthentication;
// anything else yields a (possibly empty) list sorted newest first.
func (e *Extractor) Extract(doc string) ([]github.PullRequest, error) {
	if IsSignInPage(doc) {
		return nil, fmt.Errorf("listing page is a sign-in form: %w", github.ErrAuthentication)
	}

	now := e.now()
	rows, source := findRows(doc)

	prs := make([]github.PullRequest, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	skipped := 0
	for _, row := range rows {
		pr, ok := e.parseRow(row, now)
		if !ok {
			skipped++
			continue
		}
		if seen[pr.Key()] {
			continue
		}
		seen[pr.Key()] = true
		prs = append(prs, pr)
	}

	if skipped > 0 {
		e.logger.Debug("skipped rows without a pull request link", "skipped", skipped, "source", source)
	}
	if len(prs) == 0 {
		e.logEmpty(doc, len(rows))
	} else {
		e.logger.Debug("extracted pull requests", "count", len(prs), "source", source)
	}

	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].CreatedAt.After(prs[j].CreatedAt)
	})

	return prs, nil
}

// IsSignInPage reports whether the document is GitHub's login form.
func IsSignInPage(doc string) bool {
	for _, re := range signInMarkers {
		if re.MatchString(doc) {
			return true
		}
	}
	return false
}

// HasEmptyMarker reports whether the page says outright that nothing matched.
func HasEmptyMarker(doc string) bool {
	lower := strings.ToLower(doc)
	for _, m := range emptyMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (e *Extractor) logEmpty(doc string, candidates int) {
	if HasEmptyMarker(doc) {
		e.logger.Info("no pull requests on listing page")
		return
	}
	e.logger.Warn("listing page produced no pull requests and no empty-state marker, parser may be out of date",
		"candidates", candidates,
		"bytes", len(doc))
}
