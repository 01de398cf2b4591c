package scrape

import (
	"regexp"
	"strings"
)

// maxTrailingRow bounds the last container, which has no following row start.
const maxTrailingRow = 16 * 1024

type containerPattern struct {
	name  string
	start *regexp.Regexp
}

// Ordered by specificity. Each matches the opening tag of one row.
var containerPatterns = []containerPattern{
	{"issue-id", regexp.MustCompile(`<div\b[^>]*\bid="issue_\d+"[^>]*>`)},
	{"js-issue-row", regexp.MustCompile(`<div\b[^>]*\bclass="[^"]*\bjs-issue-row\b[^"]*"[^>]*>`)},
	{"list-row", regexp.MustCompile(`<(?:li|div)\b[^>]*\bdata-testid="(?:list-row|list-view-item)[^"]*"[^>]*>`)},
	{"box-row", regexp.MustCompile(`<div\b[^>]*\bclass="[^"]*\bBox-row\b[^"]*"[^>]*>`)},
}

var (
	prAnchorRe = regexp.MustCompile(`<a\b[^>]*\bhref="((?:https?://[^"/]+)?/[\w.-]+/[\w.-]+/pull/\d+)"[^>]*>`)
	blockTagRe = regexp.MustCompile(`(?i)<(/?)(div|li|tr|article|td)\b[^>]*>`)
)

// findRows returns one text segment per candidate pull request plus the name of
// the strategy that produced them. The first container pattern with any match
// wins; results are never blended across patterns.
func findRows(doc string) ([]string, string) {
	for _, p := range containerPatterns {
		locs := p.start.FindAllStringIndex(doc, -1)
		if len(locs) == 0 {
			continue
		}
		return splitAt(doc, locs), p.name
	}

	if rows := linkFallbackRows(doc); len(rows) > 0 {
		return rows, "link-fallback"
	}
	return nil, "none"
}

// splitAt cuts the document into segments starting at each location and running
// up to the next one.
func splitAt(doc string, locs [][]int) []string {
	rows := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(doc)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		} else if loc[0]+maxTrailingRow < end {
			end = loc[0] + maxTrailingRow
		}
		rows = append(rows, doc[loc[0]:end])
	}
	return rows
}

type blockTag struct {
	start, end int
	name       string
	closing    bool
}

func scanBlockTags(doc string) []blockTag {
	matches := blockTagRe.FindAllStringSubmatchIndex(doc, -1)
	tags := make([]blockTag, 0, len(matches))
	for _, m := range matches {
		raw := doc[m[0]:m[1]]
		if strings.HasSuffix(raw, "/>") {
			continue
		}
		tags = append(tags, blockTag{
			start:   m[0],
			end:     m[1],
			name:    strings.ToLower(doc[m[4]:m[5]]),
			closing: m[3] > m[2],
		})
	}
	return tags
}

// linkFallbackRows finds anchors pointing at pull requests and pairs each with its
// smallest enclosing block element. An anchor whose container already belongs to a
// different pull request gets the text up to the next anchor instead.
func linkFallbackRows(doc string) []string {
	anchors := prAnchorRe.FindAllStringSubmatchIndex(doc, -1)
	if len(anchors) == 0 {
		return nil
	}
	tags := scanBlockTags(doc)

	claimed := make(map[int]string)
	var rows []string
	for i, a := range anchors {
		href := doc[a[2]:a[3]]

		start, end, ok := enclosingBlock(tags, a[0], len(doc))
		if ok {
			if owner, taken := claimed[start]; taken {
				if owner == href {
					continue
				}
				ok = false
			}
		}
		if !ok {
			start = a[0]
			end = len(doc)
			if i+1 < len(anchors) {
				end = anchors[i+1][0]
			} else if start+maxTrailingRow < end {
				end = start + maxTrailingRow
			}
		} else {
			claimed[start] = href
		}
		rows = append(rows, doc[start:end])
	}
	return rows
}

// enclosingBlock returns the span of the innermost open block tag around pos.
func enclosingBlock(tags []blockTag, pos, docLen int) (int, int, bool) {
	var stack []blockTag
	idx := 0
	for ; idx < len(tags) && tags[idx].start < pos; idx++ {
		t := tags[idx]
		if !t.closing {
			stack = append(stack, t)
			continue
		}
		for j := len(stack) - 1; j >= 0; j-- {
			if stack[j].name == t.name {
				stack = stack[:j]
				break
			}
		}
	}
	if len(stack) == 0 {
		return 0, 0, false
	}
	open := stack[len(stack)-1]

	depth := 0
	for ; idx < len(tags); idx++ {
		t := tags[idx]
		if t.name != open.name {
			continue
		}
		if !t.closing {
			depth++
			continue
		}
		if depth == 0 {
			return open.start, t.end, true
		}
		depth--
	}
	return open.start, docLen, true
}
