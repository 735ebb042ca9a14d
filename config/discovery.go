package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/quota"
	"gopkg.in/yaml.v3"
)

var regionPattern = regexp.MustCompile(`^[A-Z]{2}$`)

type Quota struct {
	DailyBudget int64 `yaml:"daily_budget"`
	// Costs must mirror what the provider bills per call.
	Costs    map[quota.Operation]int64 `yaml:"costs"`
	Timezone string                    `yaml:"timezone"`
}

type Discovery struct {
	Criteria          model.FilterCriteria `yaml:"criteria"`
	Categories        []string             `yaml:"categories"`
	AgeFloorHours     float64              `yaml:"age_floor_hours"`
	MinVelocity       float64              `yaml:"min_velocity"`
	Quota             Quota                `yaml:"quota"`
	Deadline          time.Duration        `yaml:"deadline"`
	Interval          time.Duration        `yaml:"interval"`
	PageSize          int64                `yaml:"page_size"`
	MaxPages          int                  `yaml:"max_pages"`
	Workers           int                  `yaml:"workers"`
	RequestsPerSecond float64              `yaml:"requests_per_second"`
}

func Default() Discovery {
	criteria := model.DefaultCriteria()
	criteria.RegionCode = "US"
	criteria.ExcludedCategoryIDs = []string{"10"}
	return Discovery{
		Criteria: criteria,
		// Pets & Animals, Comedy, Gaming, Entertainment, Sports, People & Blogs.
		Categories:    []string{"15", "23", "20", "24", "17", "22"},
		AgeFloorHours: 1,
		MinVelocity:   10000,
		Quota: Quota{
			DailyBudget: 10000,
			Costs: map[quota.Operation]int64{
				quota.OpTrendingPage:  1,
				quota.OpVideoMetadata: 1,
			},
			Timezone: "America/Los_Angeles",
		},
		Deadline:          5 * time.Minute,
		Interval:          time.Hour,
		PageSize:          50,
		MaxPages:          4,
		Workers:           4,
		RequestsPerSecond: 5,
	}
}

// Load reads a discovery file on top of the defaults. An empty path gives
// the defaults.
func Load(path string) (Discovery, error) {
	if path == "" {
		d := Default()
		return d, d.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Discovery{}, fmt.Errorf("could not open discovery config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func Parse(r io.Reader) (Discovery, error) {
	d := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return Discovery{}, fmt.Errorf("could not parse discovery config: %w", err)
	}

	return d, d.Validate()
}

func (d Discovery) Validate() error {
	var errs []error
	c := d.Criteria
	if c.RegionCode != "" && !regionPattern.MatchString(c.RegionCode) {
		errs = append(errs, fmt.Errorf("criteria.region_code %q is not a two letter country code", c.RegionCode))
	}
	if c.MaxDurationSeconds < 1 || c.MaxDurationSeconds > model.DefaultMaxDurationSeconds {
		errs = append(errs, fmt.Errorf("criteria.max_duration_seconds must be between 1 and %d", model.DefaultMaxDurationSeconds))
	}
	if c.MaxAgeHours <= 0 {
		errs = append(errs, errors.New("criteria.max_age_hours must be positive"))
	}
	if c.MinViews < 0 {
		errs = append(errs, errors.New("criteria.min_views can not be negative"))
	}
	if d.AgeFloorHours <= 0 {
		errs = append(errs, errors.New("age_floor_hours must be positive"))
	}
	if d.MinVelocity < 0 {
		errs = append(errs, errors.New("min_velocity can not be negative"))
	}
	if d.Quota.DailyBudget < 0 {
		errs = append(errs, errors.New("quota.daily_budget can not be negative"))
	}
	for _, op := range []quota.Operation{quota.OpTrendingPage, quota.OpVideoMetadata} {
		if d.Quota.Costs[op] <= 0 {
			errs = append(errs, fmt.Errorf("quota.costs needs a positive cost for %s", op))
		}
	}
	if _, err := time.LoadLocation(d.Quota.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("quota.timezone: %w", err))
	}
	if d.Deadline < 0 {
		errs = append(errs, errors.New("deadline can not be negative"))
	}
	if d.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if d.PageSize < 1 || d.PageSize > 50 {
		errs = append(errs, errors.New("page_size must be between 1 and 50"))
	}
	if d.MaxPages < 0 {
		errs = append(errs, errors.New("max_pages can not be negative"))
	}
	if d.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if d.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests_per_second must be positive"))
	}

	return errors.Join(errs...)
}

// Location is where the daily quota resets at midnight.
func (d Discovery) Location() *time.Location {
	loc, err := time.LoadLocation(d.Quota.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (d Discovery) CostTable() quota.CostTable {
	costs := quota.CostTable{}
	for op, cost := range d.Quota.Costs {
		costs[op] = cost
	}
	return costs
}
