package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"ewintr.nl/shortscout/config"
	"ewintr.nl/shortscout/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	doc := `
criteria:
  region_code: TW
  max_duration_seconds: 60
  excluded_category_ids: ["10"]
  max_age_hours: 24
  min_views: 5000
categories: ["24", "23"]
min_velocity: 1000
quota:
  daily_budget: 500
  costs:
    trending.page: 100
  timezone: Asia/Taipei
deadline: 90s
workers: 8
`
	act, err := config.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "TW", act.Criteria.RegionCode)
	assert.Equal(t, []string{"10"}, act.Criteria.ExcludedCategoryIDs)
	assert.Equal(t, 24.0, act.Criteria.MaxAgeHours)
	assert.Equal(t, int64(5000), act.Criteria.MinViews)
	assert.Equal(t, []string{"24", "23"}, act.Categories)
	assert.Equal(t, 1000.0, act.MinVelocity)
	assert.Equal(t, 90*time.Second, act.Deadline)
	assert.Equal(t, 8, act.Workers)
	assert.Equal(t, int64(500), act.Quota.DailyBudget)
	assert.Equal(t, quota.CostTable{quota.OpTrendingPage: 100, quota.OpVideoMetadata: 1}, act.CostTable())
	assert.Equal(t, "Asia/Taipei", act.Location().String())

	assert.Equal(t, 1.0, act.AgeFloorHours, "defaults stay when not set")
	assert.Equal(t, int64(50), act.PageSize)
	assert.Equal(t, time.Hour, act.Interval)
}

func TestDefault(t *testing.T) {
	act := config.Default()
	require.NoError(t, act.Validate())

	assert.Equal(t, []string{"10"}, act.Criteria.ExcludedCategoryIDs, "music is never a candidate")
	assert.Equal(t, []string{"15", "23", "20", "24", "17", "22"}, act.Categories)
	assert.Equal(t, 10000.0, act.MinVelocity)
	assert.Equal(t, 60, act.Criteria.MaxDurationSeconds)
	assert.Equal(t, 48.0, act.Criteria.MaxAgeHours)
}

func TestParseEmpty(t *testing.T) {
	act, err := config.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), act)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		exp  string
	}{
		{name: "duration over a minute", doc: "criteria:\n  max_duration_seconds: 61\n", exp: "max_duration_seconds"},
		{name: "zero duration", doc: "criteria:\n  max_duration_seconds: 0\n", exp: "max_duration_seconds"},
		{name: "region", doc: "criteria:\n  region_code: taiwan\n", exp: "region_code"},
		{name: "free calls", doc: "quota:\n  costs:\n    videos.metadata: 0\n", exp: "videos.metadata"},
		{name: "timezone", doc: "quota:\n  timezone: Mars/Olympus\n", exp: "timezone"},
		{name: "page size", doc: "page_size: 51\n", exp: "page_size"},
		{name: "workers", doc: "workers: 0\n", exp: "workers"},
		{name: "unknown field", doc: "max_videos: 10\n", exp: "max_videos"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.exp)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discovery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("criteria:\n  region_code: JP\n"), 0o644))

	act, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "JP", act.Criteria.RegionCode)

	def, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "US", def.Criteria.RegionCode)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
