package github

import (
	"strconv"
	"time"
)

// UnknownRepo is used when a PR URL does not have the owner/repo/pull/N shape.
const UnknownRepo = "Unknown Repo"

type Category string

const (
	CategoryAssigned Category = "assigned"
	CategoryAuthored Category = "authored"
	CategoryMerged   Category = "merged"
)

var Categories = []Category{CategoryAssigned, CategoryAuthored, CategoryMerged}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type PRType string

const (
	TypeDraft  PRType = "draft"
	TypeOpen   PRType = "open"
	TypeMerged PRType = "merged"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewReviewed ReviewStatus = "reviewed"
)

type AuthorReviewStatus string

const (
	AuthorChangesRequested AuthorReviewStatus = "changes_requested"
	AuthorApproved         AuthorReviewStatus = "approved"
	AuthorPending          AuthorReviewStatus = "pending"
	AuthorCommented        AuthorReviewStatus = "commented"
	AuthorDraft            AuthorReviewStatus = "draft"
)

type PullRequest struct {
	ID                 string             `json:"id"`
	URL                string             `json:"url"`
	Title              string             `json:"title"`
	Number             *int               `json:"number"`
	RepoName           string             `json:"repoName"`
	Author             Author             `json:"author"`
	CreatedAt          time.Time          `json:"createdAt"`
	Type               PRType             `json:"type"`
	ReviewStatus       ReviewStatus       `json:"reviewStatus,omitempty"`
	AuthorReviewStatus AuthorReviewStatus `json:"authorReviewStatus,omitempty"`
	IsNew              bool               `json:"isNew"`
	Labels             []string           `json:"labels,omitempty"`
}

type Author struct {
	Login string `json:"login"`
}

// Key is the identity used to match the same pull request across fetches.
func (pr PullRequest) Key() string {
	if pr.ID != "" {
		return pr.ID
	}
	return pr.URL
}

// Ref renders "owner/repo#N", or the repo alone when the number is unknown.
func (pr PullRequest) Ref() string {
	if pr.Number == nil {
		return pr.RepoName
	}
	return pr.RepoName + "#" + strconv.Itoa(*pr.Number)
}
