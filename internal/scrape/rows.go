package scrape

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marcin-skalski/review-radar/internal/github"
)

const unknownAuthor = "unknown"

// Each title pattern captures the opening tag and the inner HTML of the anchor.
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(<a\b[^>]*\bid="issue_\d+_link"[^>]*>)([\s\S]*?)</a>`),
	regexp.MustCompile(`(<a\b[^>]*\bdata-testid="(?:issue-pr-title-link|listitem-title-link)"[^>]*>)([\s\S]*?)</a>`),
	regexp.MustCompile(`(<a\b[^>]*\bdata-hovercard-type="pull_request"[^>]*>)([\s\S]*?)</a>`),
	regexp.MustCompile(`(<a\b[^>]*\bclass="[^"]*\b(?:js-navigation-open|markdown-title)\b[^"]*"[^>]*>)([\s\S]*?)</a>`),
	regexp.MustCompile(`(<a\b[^>]*\bhref="[^"]*/pull/\d+"[^>]*>)([\s\S]*?)</a>`),
}

var authorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`class="[^"]*\bopened-by\b[^"]*"[\s\S]*?<a\b[^>]*>([\s\S]*?)</a>`),
	regexp.MustCompile(`<a\b[^>]*\bdata-testid="created-by-link"[^>]*>([\s\S]*?)</a>`),
	regexp.MustCompile(`\btitle="(?:Open |Merged |Closed )?pull requests created by ([^"]+)"`),
	regexp.MustCompile(`<a\b[^>]*\bdata-hovercard-type="user"[^>]*>([\s\S]*?)</a>`),
	regexp.MustCompile(`\bby\s+<a\b[^>]*>([\s\S]*?)</a>`),
}

var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<relative-time\b[^>]*\bdatetime="([^"]+)"`),
	regexp.MustCompile(`<time-ago\b[^>]*\bdatetime="([^"]+)"`),
	regexp.MustCompile(`<time\b[^>]*\bdatetime="([^"]+)"`),
	regexp.MustCompile(`\bdatetime="([^"]+)"`),
}

type stateSignal struct {
	re  *regexp.Regexp
	typ github.PRType
}

var stateLabelSignals = []stateSignal{
	{regexp.MustCompile(`(?i)\baria-label="[^"]*\bdraft\b[^"]*"`), github.TypeDraft},
	{regexp.MustCompile(`(?i)\baria-label="[^"]*\bmerged\b[^"]*"`), github.TypeMerged},
	{regexp.MustCompile(`(?i)\baria-label="[^"]*\bopen\b[^"]*pull request[^"]*"`), github.TypeOpen},
}

var stateIconSignals = []stateSignal{
	{regexp.MustCompile(`\bocticon-git-pull-request-draft\b`), github.TypeDraft},
	{regexp.MustCompile(`\bocticon-git-merge[\s"]`), github.TypeMerged},
	{regexp.MustCompile(`\bcolor-fg-done\b`), github.TypeMerged},
	{regexp.MustCompile(`\bocticon-git-pull-request[\s"]`), github.TypeOpen},
}

var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(<a\b[^>]*\bclass="[^"]*\bIssueLabel\b[^"]*"[^>]*>)([\s\S]*?)</a>`),
	regexp.MustCompile(`(<span\b[^>]*\bclass="[^"]*\bIssueLabel\b[^"]*"[^>]*>)([\s\S]*?)</span>`),
	regexp.MustCompile(`(<a\b[^>]*\bdata-testid="issue-label"[^>]*>)([\s\S]*?)</a>`),
}

var (
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	hrefRe     = regexp.MustCompile(`\bhref="([^"]*)"`)
	dataNameRe = regexp.MustCompile(`\bdata-name="([^"]*)"`)
	numberRe   = regexp.MustCompile(`/pull/(\d+)(?:[/?#]|$)`)
	loginRe    = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})(?:\[bot\])?$`)
)

func (e *Extractor) parseRow(row string, now time.Time) (github.PullRequest, bool) {
	href, title, ok := matchTitle(row)
	if !ok {
		return github.PullRequest{}, false
	}

	prURL := e.absolutize(href)
	pr := github.PullRequest{
		ID:        prURL,
		URL:       prURL,
		Title:     title,
		Number:    parseNumber(prURL),
		RepoName:  repoName(prURL),
		Author:    github.Author{Login: matchAuthor(row)},
		CreatedAt: matchTimestamp(row, now),
		Type:      matchState(row),
		Labels:    matchLabels(row),
	}
	return pr, true
}

func matchTitle(row string) (string, string, bool) {
	for _, re := range titlePatterns {
		for _, m := range re.FindAllStringSubmatch(row, -1) {
			href := attr(hrefRe, m[1])
			if href == "" || href == "#" {
				continue
			}
			title := cleanText(m[2])
			if title == "" {
				continue
			}
			return href, title, true
		}
	}
	return "", "", false
}

func matchAuthor(row string) string {
	for _, re := range authorPatterns {
		for _, m := range re.FindAllStringSubmatch(row, -1) {
			login := strings.TrimPrefix(cleanText(m[1]), "@")
			if loginRe.MatchString(login) {
				return login
			}
		}
	}
	return unknownAuthor
}

func matchTimestamp(row string, now time.Time) time.Time {
	for _, re := range timestampPatterns {
		m := re.FindStringSubmatch(row)
		if m == nil {
			continue
		}
		return parseTimestamp(m[1], now)
	}
	return now
}

// parseTimestamp accepts the ISO-8601 forms GitHub emits; anything else is now.
func parseTimestamp(v string, now time.Time) time.Time {
	v = strings.TrimSpace(html.UnescapeString(v))
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return now
}

func matchState(row string) github.PRType {
	for _, sig := range stateLabelSignals {
		if sig.re.MatchString(row) {
			return sig.typ
		}
	}
	for _, sig := range stateIconSignals {
		if sig.re.MatchString(row) {
			return sig.typ
		}
	}
	return github.TypeOpen
}

func matchLabels(row string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, re := range labelPatterns {
		for _, m := range re.FindAllStringSubmatch(row, -1) {
			name := html.UnescapeString(attr(dataNameRe, m[1]))
			if name == "" {
				name = cleanText(m[2])
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			labels = append(labels, name)
		}
		if len(labels) > 0 {
			return labels
		}
	}
	return labels
}

func (e *Extractor) absolutize(href string) string {
	ref, err := url.Parse(html.UnescapeString(href))
	if err != nil {
		return href
	}
	abs := e.base.ResolveReference(ref)
	abs.RawQuery = ""
	abs.Fragment = ""
	return abs.String()
}

func parseNumber(prURL string) *int {
	m := numberRe.FindStringSubmatch(prURL)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func repoName(prURL string) string {
	u, err := url.Parse(prURL)
	if err != nil {
		return github.UnknownRepo
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) < 4 || segs[2] != "pull" || segs[0] == "" || segs[1] == "" {
		return github.UnknownRepo
	}
	return segs[0] + "/" + segs[1]
}

func attr(re *regexp.Regexp, tag string) string {
	m := re.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanText(fragment string) string {
	text := html.UnescapeString(tagRe.ReplaceAllString(fragment, " "))
	return strings.Join(strings.Fields(text), " ")
}
