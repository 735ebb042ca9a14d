package filter

import (
	"log/slog"
	"slices"
	"time"

	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/rank"
)

type ShortsClassifier struct{}

func (ShortsClassifier) Name() string { return "shorts" }

// Admit resolves the candidate's duration to seconds. A feed duration that
// does not parse is a malformed rejection, anything outside
// (0, MaxDurationSeconds] a duration rejection.
func (ShortsClassifier) Admit(c *model.Candidate, criteria model.FilterCriteria) Decision {
	if c.Duration != "" {
		secs, err := ParseDuration(c.Duration)
		if err != nil {
			return reject(ReasonMalformed, "malformed duration %q", c.Duration)
		}
		c.DurationSeconds = secs
	}

	limit := criteria.MaxDurationSeconds
	if limit <= 0 {
		limit = model.DefaultMaxDurationSeconds
	}
	if c.DurationSeconds <= 0 || c.DurationSeconds > limit {
		return reject(ReasonDuration, "%ds not in (0, %d]", c.DurationSeconds, limit)
	}

	return admit()
}

type CategoryFilter struct{}

func (CategoryFilter) Name() string { return "category" }

func (CategoryFilter) Admit(c *model.Candidate, criteria model.FilterCriteria) Decision {
	if slices.Contains(criteria.ExcludedCategoryIDs, c.CategoryID) {
		return reject(ReasonCategory, "category %s is excluded", c.CategoryID)
	}
	if len(criteria.IncludedCategoryIDs) > 0 && !slices.Contains(criteria.IncludedCategoryIDs, c.CategoryID) {
		return reject(ReasonCategory, "category %q is not included", c.CategoryID)
	}

	return admit()
}

type FreshnessFilter struct {
	now    func() time.Time
	logger *slog.Logger
}

func NewFreshnessFilter(now func() time.Time, logger *slog.Logger) *FreshnessFilter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FreshnessFilter{
		now:    now,
		logger: logger,
	}
}

func (f *FreshnessFilter) Name() string { return "freshness" }

func (f *FreshnessFilter) Admit(c *model.Candidate, criteria model.FilterCriteria) Decision {
	if c.PublishedAt.IsZero() {
		return reject(ReasonMalformed, "missing publish time")
	}

	maxAge := criteria.MaxAgeHours
	if maxAge <= 0 {
		maxAge = model.DefaultMaxAgeHours
	}
	age := c.AgeHours(f.now())
	if age < 0 {
		f.logger.Warn("publish time in the future",
			slog.String("videoid", string(c.VideoID)),
			slog.Time("publishedat", c.PublishedAt),
			slog.Float64("agehours", age),
		)
		return reject(ReasonFreshness, "negative age %.2fh", age)
	}
	if age > maxAge {
		return reject(ReasonFreshness, "age %.1fh exceeds %.1fh", age, maxAge)
	}

	return admit()
}

type PopularityFilter struct{}

func (PopularityFilter) Name() string { return "popularity" }

func (PopularityFilter) Admit(c *model.Candidate, criteria model.FilterCriteria) Decision {
	if c.ViewCount < criteria.MinViews {
		return reject(ReasonViews, "%d views below %d", c.ViewCount, criteria.MinViews)
	}

	return admit()
}

// VelocityFilter drops candidates that gather views too slowly to count as
// viral.
type VelocityFilter struct {
	now   func() time.Time
	floor float64
	min   float64
}

func NewVelocityFilter(now func() time.Time, ageFloorHours, minVPH float64) *VelocityFilter {
	if now == nil {
		now = time.Now
	}
	return &VelocityFilter{
		now:   now,
		floor: ageFloorHours,
		min:   minVPH,
	}
}

func (f *VelocityFilter) Name() string { return "velocity" }

func (f *VelocityFilter) Admit(c *model.Candidate, _ model.FilterCriteria) Decision {
	vph := rank.Velocity(c.ViewCount, c.PublishedAt, f.now(), f.floor)
	if vph < f.min {
		return reject(ReasonVelocity, "%.0f views/hour below %.0f", vph, f.min)
	}

	return admit()
}
