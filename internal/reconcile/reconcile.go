// Package reconcile compares a stored pull request list with a freshly fetched one.
// Everything here is pure: no I/O, no clocks, no shared state.
package reconcile

import "github.com/marcin-skalski/review-radar/internal/github"

type Result struct {
	// New holds fresh records whose key was not in the old list.
	New []github.PullRequest
	// All is the fresh list with IsNew and ReviewStatus set, ready to persist.
	All []github.PullRequest
}

type options struct {
	reviewDefault github.ReviewStatus
}

type Option func(*options)

// WithDefaultReviewStatus fills ReviewStatus on fresh records that carry none.
// Only the assigned queue has a review status.
func WithDefaultReviewStatus(s github.ReviewStatus) Option {
	return func(o *options) {
		o.reviewDefault = s
	}
}

// Diff classifies fresh against old by Key(). Fresh data wins for every field
// except IsNew, which is true only for keys the old list did not have. Keys that
// disappeared are dropped. Order follows fresh.
func Diff(old, fresh []github.PullRequest, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	known := keySet(old)

	res := Result{
		New: []github.PullRequest{},
		All: make([]github.PullRequest, 0, len(fresh)),
	}
	seen := make(map[string]bool, len(fresh))
	for _, pr := range fresh {
		key := pr.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		if pr.ReviewStatus == "" {
			pr.ReviewStatus = o.reviewDefault
		}
		pr.IsNew = !known[key]
		if pr.IsNew {
			res.New = append(res.New, pr)
		}
		res.All = append(res.All, pr)
	}
	return res
}

// Removed lists keys present in old but missing from fresh.
func Removed(old, fresh []github.PullRequest) []string {
	current := keySet(fresh)
	var gone []string
	for _, pr := range old {
		if !current[pr.Key()] {
			gone = append(gone, pr.Key())
		}
	}
	return gone
}

// StatusChange is an authored pull request whose review verdict moved.
type StatusChange struct {
	PR   github.PullRequest
	From github.AuthorReviewStatus
}

var notableAuthorStatuses = map[github.AuthorReviewStatus]bool{
	github.AuthorApproved:         true,
	github.AuthorChangesRequested: true,
	github.AuthorCommented:        true,
}

// StatusChanges returns fresh records already known in old whose
// AuthorReviewStatus changed to a verdict worth telling the author about.
func StatusChanges(old, fresh []github.PullRequest) []StatusChange {
	prev := make(map[string]github.AuthorReviewStatus, len(old))
	for _, pr := range old {
		prev[pr.Key()] = pr.AuthorReviewStatus
	}

	var changes []StatusChange
	for _, pr := range fresh {
		was, ok := prev[pr.Key()]
		if !ok || was == pr.AuthorReviewStatus {
			continue
		}
		if !notableAuthorStatuses[pr.AuthorReviewStatus] {
			continue
		}
		changes = append(changes, StatusChange{PR: pr, From: was})
	}
	return changes
}

// Keys returns the identity set of a list.
func Keys(prs []github.PullRequest) map[string]bool {
	return keySet(prs)
}

func keySet(prs []github.PullRequest) map[string]bool {
	set := make(map[string]bool, len(prs))
	for _, pr := range prs {
		set[pr.Key()] = true
	}
	return set
}
