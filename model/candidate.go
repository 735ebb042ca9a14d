package model

import "time"

// Candidate is unadmitted video metadata as it arrives from the trending
// feed, a manual submission or a batch row.
type Candidate struct {
	VideoID    YoutubeVideoID
	Title      string
	Channel    string
	CategoryID string
	RegionCode string
	ViewCount  int64
	LikeCount  int64

	// Duration holds the feed encoding (ISO 8601, "PT58S"). When empty,
	// DurationSeconds is taken as given.
	Duration        string
	DurationSeconds int

	PublishedAt time.Time
	Source      Source
}

func (c *Candidate) AgeHours(now time.Time) float64 {
	return now.Sub(c.PublishedAt).Hours()
}

type FilterCriteria struct {
	RegionCode          string   `yaml:"region_code" json:"region_code"`
	MaxDurationSeconds  int      `yaml:"max_duration_seconds" json:"max_duration_seconds"`
	ExcludedCategoryIDs []string `yaml:"excluded_category_ids" json:"excluded_category_ids"`
	IncludedCategoryIDs []string `yaml:"included_category_ids" json:"included_category_ids"`
	MaxAgeHours         float64  `yaml:"max_age_hours" json:"max_age_hours"`
	MinViews            int64    `yaml:"min_views" json:"min_views"`
}

const (
	DefaultMaxDurationSeconds = 60
	DefaultMaxAgeHours        = 48
)

func DefaultCriteria() FilterCriteria {
	return FilterCriteria{
		MaxDurationSeconds: DefaultMaxDurationSeconds,
		MaxAgeHours:        DefaultMaxAgeHours,
	}
}
