package fetcher

// GitHub search queries behind each category. The listing pages are scraped,
// so these are the same strings a user would type in the PR search box.
const (
	QueryAssignedPending  = "is:open is:pr review-requested:@me archived:false sort:created-desc"
	QueryAssignedReviewed = "is:open is:pr reviewed-by:@me -author:@me -review-requested:@me archived:false sort:created-desc"

	QueryAuthoredOpen             = "is:open is:pr author:@me archived:false sort:created-desc"
	QueryAuthoredChangesRequested = "is:open is:pr author:@me review:changes_requested archived:false"
	QueryAuthoredApproved         = "is:open is:pr author:@me review:approved archived:false"
	QueryAuthoredCommented        = "is:open is:pr author:@me comments:>0 archived:false"

	QueryMergedAuthored = "is:pr is:merged author:@me archived:false sort:updated-desc"
	QueryMergedReviewed = "is:pr is:merged reviewed-by:@me -author:@me archived:false sort:updated-desc"
)
