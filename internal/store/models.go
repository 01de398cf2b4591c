package store

import (
	"time"

	"github.com/marcin-skalski/review-radar/internal/github"
)

// Bucket is the persisted snapshot of one category.
type Bucket struct {
	PRs         []github.PullRequest `json:"prs"`
	LastUpdated time.Time            `json:"lastUpdated"`
}

// Age reports how old the bucket is relative to now.
func (b *Bucket) Age(now time.Time) time.Duration {
	return now.Sub(b.LastUpdated)
}

// BucketModel is the GORM model for the buckets table
type BucketModel struct {
	Category    string               `gorm:"primaryKey"`
	PRs         []github.PullRequest `gorm:"serializer:json;not null"`
	LastUpdated time.Time            `gorm:"not null"`
	UpdatedAt   time.Time
}

func (BucketModel) TableName() string { return "buckets" }

// KVModel holds scalar state such as settings and the last fetch time
type KVModel struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null;default:''"`
	UpdatedAt time.Time
}

func (KVModel) TableName() string { return "kv" }
