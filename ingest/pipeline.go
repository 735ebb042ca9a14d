package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/filter"
	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/quota"
	"ewintr.nl/shortscout/rank"
	"ewintr.nl/shortscout/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type TrendingFetcher interface {
	FetchAll(ctx context.Context, region string) fetcher.Result
}

type PipelineConfig struct {
	Region string
	// Deadline bounds a whole run. Zero means no deadline.
	Deadline time.Duration
}

type Pipeline struct {
	fetcher  TrendingFetcher
	budget   *quota.Budget
	ingestor *Ingestor
	runs     storage.RunRepository
	config   PipelineConfig
}

func NewPipeline(f TrendingFetcher, budget *quota.Budget, ingestor *Ingestor, runs storage.RunRepository, config PipelineConfig) *Pipeline {
	return &Pipeline{
		fetcher:  f,
		budget:   budget,
		ingestor: ingestor,
		runs:     runs,
		config:   config,
	}
}

// Run does one discovery pass over the trending chart. It only returns an
// error when the budget lease cannot be taken. Everything else, quota and
// deadline included, ends up in the report.
//
// When the deadline passes, no new page is fetched and no new candidate is
// taken in. A candidate already in the funnel finishes on a context that
// outlives the deadline.
func (p *Pipeline) Run(ctx context.Context) (*model.RunReport, error) {
	release, err := p.budget.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	logger := p.ingestor.logger
	report := model.NewRunReport(model.SourceAuto, p.config.Region, p.ingestor.now())
	ctx, span := tracer.Start(ctx, "ingest.Run", trace.WithAttributes(
		attribute.String("runid", report.RunID.String()),
		attribute.String("region", p.config.Region),
	))
	defer span.End()

	runCtx := ctx
	if p.config.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.config.Deadline)
		defer cancel()
	}
	detached := context.WithoutCancel(ctx)

	logger.Info("starting discovery run", slog.String("runid", report.RunID.String()), slog.String("region", p.config.Region))
	res := p.fetcher.FetchAll(runCtx, p.config.Region)
	report.Discovered = len(res.Candidates) + len(res.Malformed)
	report.QuotaConsumed = res.Cost
	for _, m := range res.Malformed {
		report.Reject(m.VideoID, string(filter.ReasonMalformed), m.Error())
		p.ingestor.observer.Rejection(string(filter.ReasonMalformed))
	}
	for _, w := range res.Warnings {
		report.Warn(w)
	}
	if res.Stop != "" {
		report.Partial = true
		report.StopReason = res.Stop
	}

	for n, c := range res.Candidates {
		if runCtx.Err() != nil {
			report.Partial = true
			if report.StopReason == "" {
				report.StopReason = model.StopDeadline
			}
			report.Unattempted = len(res.Candidates) - n
			logger.Info("deadline reached, leaving candidates unattempted", slog.Int("unattempted", report.Unattempted))
			break
		}
		c.Source = model.SourceAuto
		p.record(report, c, p.ingestor.Admit(detached, c))
	}
	rank.Sort(report.InsertedRecords)

	if remaining, err := p.budget.Remaining(detached); err != nil {
		logger.Error("could not read remaining quota", slog.String("error", err.Error()))
	} else {
		report.QuotaRemaining = remaining
	}
	report.FinishedAt = p.ingestor.now()

	if p.runs != nil {
		if err := p.runs.SaveRun(detached, report); err != nil {
			logger.Error("could not save run report", slog.String("runid", report.RunID.String()), slog.String("error", err.Error()))
		}
	}
	if err := p.ingestor.publisher.RunCompleted(detached, report); err != nil {
		logger.Error("could not publish run report", slog.String("runid", report.RunID.String()), slog.String("error", err.Error()))
	}
	p.ingestor.observer.RunFinished(report)

	span.SetAttributes(
		attribute.Int("inserted", report.Inserted),
		attribute.Int("duplicates", report.Duplicates),
		attribute.Bool("partial", report.Partial),
	)
	logger.Info("finished discovery run",
		slog.String("runid", report.RunID.String()),
		slog.Int("discovered", report.Discovered),
		slog.Int("inserted", report.Inserted),
		slog.Int("duplicates", report.Duplicates),
		slog.Bool("partial", report.Partial),
	)

	return report, nil
}

func (p *Pipeline) record(report *model.RunReport, c model.Candidate, res Result) {
	switch res.Outcome {
	case OutcomeInserted:
		report.Inserted++
		report.InsertedRecords = append(report.InsertedRecords, res.Video)
	case OutcomeDuplicate:
		report.Duplicates++
		report.DuplicateIDs = append(report.DuplicateIDs, c.VideoID)
	case OutcomeRejected:
		report.Reject(c.VideoID, string(res.Decision.Reason), res.Decision.Detail)
	case OutcomeErrored:
		report.Errored++
		report.Warn(fmt.Sprintf("video %s: %v", c.VideoID, res.Err))
	}
}
