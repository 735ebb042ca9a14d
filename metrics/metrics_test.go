package metrics_test

import (
	"strings"
	"testing"
	"time"

	"ewintr.nl/shortscout/metrics"
	"ewintr.nl/shortscout/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.CandidateOutcome(model.SourceAuto, "inserted")
	m.CandidateOutcome(model.SourceAuto, "inserted")
	m.CandidateOutcome(model.SourceBatch, "duplicate")
	m.Rejection("duration")

	exp := `
# HELP shortscout_candidates_total Candidates handled, by source and outcome
# TYPE shortscout_candidates_total counter
shortscout_candidates_total{outcome="duplicate",source="batch"} 1
shortscout_candidates_total{outcome="inserted",source="auto"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(exp), "shortscout_candidates_total"))

	exp = `
# HELP shortscout_rejections_total Candidates turned down, by reason
# TYPE shortscout_rejections_total counter
shortscout_rejections_total{reason="duration"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(exp), "shortscout_rejections_total"))
}

func TestRunFinished(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := model.NewRunReport(model.SourceAuto, "TW", started)
	r.FinishedAt = started.Add(30 * time.Second)
	r.Partial = true
	r.StopReason = model.StopQuota
	r.QuotaConsumed = 300
	r.QuotaRemaining = 0
	m.RunFinished(r)

	r2 := model.NewRunReport(model.SourceAuto, "TW", started)
	r2.FinishedAt = started.Add(2 * time.Second)
	r2.QuotaConsumed = 5
	r2.QuotaRemaining = 9695
	m.RunFinished(r2)

	exp := `
# HELP shortscout_runs_total Discovery runs, by whether they ended early and why
# TYPE shortscout_runs_total counter
shortscout_runs_total{partial="false",stop_reason=""} 1
shortscout_runs_total{partial="true",stop_reason="quota"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(exp), "shortscout_runs_total"))

	count, err := testutil.GatherAndCount(reg, "shortscout_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	exp = `
# HELP shortscout_quota_consumed_units_total Provider quota units spent by discovery runs
# TYPE shortscout_quota_consumed_units_total counter
shortscout_quota_consumed_units_total 305
# HELP shortscout_quota_remaining_units Provider quota units left in the current period after the last run
# TYPE shortscout_quota_remaining_units gauge
shortscout_quota_remaining_units 9695
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(exp), "shortscout_quota_consumed_units_total", "shortscout_quota_remaining_units"))
}
