package filter_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"ewintr.nl/shortscout/filter"
	"ewintr.nl/shortscout/model"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseDuration(t *testing.T) {
	for _, tc := range []struct {
		in     string
		exp    int
		expErr bool
	}{
		{in: "PT59S", exp: 59},
		{in: "PT1M", exp: 60},
		{in: "PT1M1S", exp: 61},
		{in: "PT1H2M3S", exp: 3723},
		{in: "P1DT1S", exp: 86401},
		{in: "P0D", exp: 0},
		{in: "P1W", exp: 604800},
		{in: "", expErr: true},
		{in: "P", expErr: true},
		{in: "PT", expErr: true},
		{in: "P1DT", expErr: true},
		{in: "59", expErr: true},
		{in: "PT1.5S", expErr: true},
		{in: "pt59s", expErr: true},
		{in: "P99999999999999W", expErr: true},
		{in: "P213503982334601DT25246S", expErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			act, err := filter.ParseDuration(tc.in)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.exp, act)
		})
	}
}

func TestShortsClassifierBoundary(t *testing.T) {
	criteria := model.DefaultCriteria()
	for d := -1; d <= 120; d++ {
		c := &model.Candidate{DurationSeconds: d}
		act := filter.ShortsClassifier{}.Admit(c, criteria)
		assert.Equal(t, d > 0 && d <= 60, act.Admitted, "duration %d", d)
		if !act.Admitted {
			assert.Equal(t, filter.ReasonDuration, act.Reason)
		}
	}
}

func TestShortsClassifierFeedEncoding(t *testing.T) {
	criteria := model.DefaultCriteria()

	c := &model.Candidate{Duration: "PT58S"}
	assert.True(t, filter.ShortsClassifier{}.Admit(c, criteria).Admitted)
	assert.Equal(t, 58, c.DurationSeconds)

	c = &model.Candidate{Duration: "PT1M5S"}
	act := filter.ShortsClassifier{}.Admit(c, criteria)
	assert.False(t, act.Admitted)
	assert.Equal(t, filter.ReasonDuration, act.Reason)

	c = &model.Candidate{Duration: "P213503982334601DT25246S"}
	act = filter.ShortsClassifier{}.Admit(c, criteria)
	assert.False(t, act.Admitted, "days that wrap around to 30s")
	assert.Equal(t, filter.ReasonMalformed, act.Reason)

	c = &model.Candidate{Duration: "about a minute"}
	act = filter.ShortsClassifier{}.Admit(c, criteria)
	assert.False(t, act.Admitted)
	assert.Equal(t, filter.ReasonMalformed, act.Reason)

	criteria.MaxDurationSeconds = 180
	c = &model.Candidate{Duration: "PT2M"}
	assert.True(t, filter.ShortsClassifier{}.Admit(c, criteria).Admitted)
}

func TestCategoryFilter(t *testing.T) {
	for _, tc := range []struct {
		name     string
		category string
		excluded []string
		included []string
		exp      bool
	}{
		{name: "excluded", category: "10", excluded: []string{"10"}, exp: false},
		{name: "not excluded", category: "24", excluded: []string{"10"}, exp: true},
		{name: "empty lists", category: "24", exp: true},
		{name: "in allowlist", category: "24", included: []string{"24", "23"}, exp: true},
		{name: "not in allowlist", category: "22", included: []string{"24", "23"}, exp: false},
		{name: "exclusion wins", category: "24", excluded: []string{"24"}, included: []string{"24"}, exp: false},
		{name: "unknown category with allowlist", category: "", included: []string{"24"}, exp: false},
		{name: "unknown category without allowlist", category: "", excluded: []string{"10"}, exp: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			criteria := model.FilterCriteria{ExcludedCategoryIDs: tc.excluded, IncludedCategoryIDs: tc.included}
			act := filter.CategoryFilter{}.Admit(&model.Candidate{CategoryID: tc.category}, criteria)
			assert.Equal(t, tc.exp, act.Admitted)
			if !tc.exp {
				assert.Equal(t, filter.ReasonCategory, act.Reason)
			}
		})
	}
}

func TestFreshnessFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	f := filter.NewFreshnessFilter(func() time.Time { return now }, logger)
	criteria := model.FilterCriteria{MaxAgeHours: 48}

	for _, tc := range []struct {
		name   string
		pub    time.Time
		exp    bool
		reason filter.Reason
	}{
		{name: "just published", pub: now, exp: true},
		{name: "six hours", pub: now.Add(-6 * time.Hour), exp: true},
		{name: "on the boundary", pub: now.Add(-48 * time.Hour), exp: true},
		{name: "too old", pub: now.Add(-48*time.Hour - time.Second), reason: filter.ReasonFreshness},
		{name: "in the future", pub: now.Add(time.Minute), reason: filter.ReasonFreshness},
		{name: "missing", reason: filter.ReasonMalformed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act := f.Admit(&model.Candidate{VideoID: "abc", PublishedAt: tc.pub}, criteria)
			assert.Equal(t, tc.exp, act.Admitted)
			assert.Equal(t, tc.reason, act.Reason)
		})
	}
	assert.Contains(t, buf.String(), "publish time in the future")
}

func TestPopularityFilter(t *testing.T) {
	criteria := model.FilterCriteria{MinViews: 1000}
	assert.True(t, filter.PopularityFilter{}.Admit(&model.Candidate{ViewCount: 1000}, criteria).Admitted)
	act := filter.PopularityFilter{}.Admit(&model.Candidate{ViewCount: 999}, criteria)
	assert.False(t, act.Admitted)
	assert.Equal(t, filter.ReasonViews, act.Reason)
}

func TestFunnelShortCircuits(t *testing.T) {
	f := filter.NewDefaultFunnel(func() time.Time { return now }, slog.Default())
	criteria := model.FilterCriteria{
		MaxDurationSeconds:  60,
		ExcludedCategoryIDs: []string{"10"},
		MaxAgeHours:         48,
	}

	for _, tc := range []struct {
		name      string
		candidate model.Candidate
		expStage  string
		expReason filter.Reason
	}{
		{
			name:      "too long and wrong category reports duration",
			candidate: model.Candidate{Duration: "PT65S", CategoryID: "10", PublishedAt: now},
			expStage:  "shorts",
			expReason: filter.ReasonDuration,
		},
		{
			name:      "wrong category and too old reports category",
			candidate: model.Candidate{Duration: "PT45S", CategoryID: "10", PublishedAt: now.Add(-72 * time.Hour)},
			expStage:  "category",
			expReason: filter.ReasonCategory,
		},
		{
			name:      "too old",
			candidate: model.Candidate{Duration: "PT45S", CategoryID: "24", PublishedAt: now.Add(-72 * time.Hour)},
			expStage:  "freshness",
			expReason: filter.ReasonFreshness,
		},
		{
			name:      "admitted",
			candidate: model.Candidate{Duration: "PT45S", CategoryID: "24", PublishedAt: now.Add(-2 * time.Hour)},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.candidate
			act := f.Admit(&c, criteria)
			assert.Equal(t, tc.expStage == "", act.Admitted)
			assert.Equal(t, tc.expStage, act.Stage)
			assert.Equal(t, tc.expReason, act.Reason)
		})
	}

	assert.Equal(t, []string{"shorts", "category", "freshness", "popularity"}, f.Stages())
}

func TestVelocityFilter(t *testing.T) {
	f := filter.NewVelocityFilter(func() time.Time { return now }, 1, 10000)

	fast := &model.Candidate{ViewCount: 120000, PublishedAt: now.Add(-2 * time.Hour)}
	assert.True(t, f.Admit(fast, model.FilterCriteria{}).Admitted)

	slow := &model.Candidate{ViewCount: 15000, PublishedAt: now.Add(-2 * time.Hour)}
	act := f.Admit(slow, model.FilterCriteria{})
	assert.False(t, act.Admitted)
	assert.Equal(t, filter.ReasonVelocity, act.Reason)

	brandNew := &model.Candidate{ViewCount: 10000, PublishedAt: now.Add(-time.Minute)}
	assert.True(t, f.Admit(brandNew, model.FilterCriteria{}).Admitted, "age floor applies")
}
