package filter

import (
	"fmt"
	"log/slog"
	"time"

	"ewintr.nl/shortscout/model"
)

type Reason string

const (
	ReasonDuration  Reason = "duration"
	ReasonCategory  Reason = "category"
	ReasonFreshness Reason = "freshness"
	ReasonMalformed Reason = "malformed"
	ReasonViews     Reason = "views"
	ReasonVelocity  Reason = "velocity"
)

type Decision struct {
	Admitted bool
	Stage    string
	Reason   Reason
	Detail   string
}

func admit() Decision {
	return Decision{Admitted: true}
}

func reject(reason Reason, format string, args ...any) Decision {
	return Decision{
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
	}
}

type Stage interface {
	Name() string
	Admit(c *model.Candidate, criteria model.FilterCriteria) Decision
}

// Funnel runs its stages in order and stops at the first rejection.
type Funnel struct {
	stages []Stage
}

func NewFunnel(stages ...Stage) *Funnel {
	return &Funnel{stages: stages}
}

func NewDefaultFunnel(now func() time.Time, logger *slog.Logger) *Funnel {
	return NewFunnel(
		ShortsClassifier{},
		CategoryFilter{},
		NewFreshnessFilter(now, logger),
		PopularityFilter{},
	)
}

func (f *Funnel) Admit(c *model.Candidate, criteria model.FilterCriteria) Decision {
	for _, stage := range f.stages {
		d := stage.Admit(c, criteria)
		if !d.Admitted {
			d.Stage = stage.Name()
			return d
		}
	}

	return admit()
}

func (f *Funnel) Stages() []string {
	names := make([]string, 0, len(f.stages))
	for _, s := range f.stages {
		names = append(names, s.Name())
	}
	return names
}

func (f *Funnel) Append(stages ...Stage) *Funnel {
	f.stages = append(f.stages, stages...)
	return f
}
