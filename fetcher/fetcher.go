package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/quota"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ewintr.nl/shortscout/fetcher")

type Config struct {
	PageSize int64
	MaxPages int
	// Categories are fetched one after the other. An empty list fetches the
	// chart without a category.
	Categories []string
	Retry      RetryPolicy
}

type Result struct {
	Candidates []model.Candidate
	Malformed  []*MalformedMetadataError
	Pages      int
	Cost       int64
	Stop       model.StopReason
	Warnings   []string
}

// Fetcher pages through the trending chart. Every provider call, retries
// included, is paid for with a reservation on the budget first.
type Fetcher struct {
	source Source
	budget *quota.Budget
	config Config
	logger *slog.Logger
}

func NewFetcher(source Source, budget *quota.Budget, config Config, logger *slog.Logger) *Fetcher {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetry
	}
	return &Fetcher{
		source: source,
		budget: budget,
		config: config,
		logger: logger,
	}
}

func (f *Fetcher) reserve(ctx context.Context, op quota.Operation) (int64, error) {
	granted, cost, err := f.budget.ReserveOp(ctx, op)
	if err != nil {
		return 0, err
	}
	if !granted {
		return 0, ErrQuotaExceeded
	}
	return cost, nil
}

func (f *Fetcher) FetchPage(ctx context.Context, region, category, pageToken string) (Page, error) {
	ctx, span := tracer.Start(ctx, "fetcher.FetchPage", trace.WithAttributes(
		attribute.String("region", region),
		attribute.String("category", category),
	))
	defer span.End()

	var charged int64
	page, err := Retry(ctx, f.config.Retry, func(ctx context.Context) (Page, error) {
		cost, err := f.reserve(ctx, quota.OpTrendingPage)
		if err != nil {
			return Page{}, err
		}
		charged += cost
		return f.source.Trending(ctx, TrendingQuery{
			Region:    region,
			Category:  category,
			PageToken: pageToken,
			PageSize:  f.config.PageSize,
		})
	})
	page.Cost = charged
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return page, err
	}
	span.SetAttributes(attribute.Int("candidates", len(page.Candidates)))

	return page, nil
}

// FetchAll collects every page it can get within the budget and the
// deadline on ctx. It stops rather than fails when either runs out, and a
// category whose pages keep failing is skipped with a warning.
func (f *Fetcher) FetchAll(ctx context.Context, region string) Result {
	res := Result{}
	seen := map[model.YoutubeVideoID]bool{}

	categories := f.config.Categories
	if len(categories) == 0 {
		categories = []string{""}
	}

	for _, category := range categories {
		token := ""
		for pages := 0; ; pages++ {
			if ctx.Err() != nil {
				res.Stop = model.StopDeadline
				return res
			}
			if f.config.MaxPages > 0 && pages >= f.config.MaxPages {
				break
			}

			f.logger.Info("fetching trending page", slog.String("region", region), slog.String("category", category), slog.String("pagetoken", token))
			page, err := f.FetchPage(ctx, region, category, token)
			res.Cost += page.Cost
			if err == nil {
				res.Pages++
				res.Malformed = append(res.Malformed, page.Malformed...)
				for _, c := range page.Candidates {
					if seen[c.VideoID] {
						continue
					}
					seen[c.VideoID] = true
					res.Candidates = append(res.Candidates, c)
				}
				f.logger.Info("fetched trending page", slog.String("category", category), slog.Int("count", len(page.Candidates)))
			}

			switch {
			case errors.Is(err, ErrQuotaExceeded):
				f.logger.Info("quota exhausted, stopping fetch", slog.Int("pages", res.Pages))
				res.Stop = model.StopQuota
				return res
			case ctx.Err() != nil:
				res.Stop = model.StopDeadline
				return res
			case err != nil:
				f.logger.Error("failed to fetch trending page", slog.String("category", category), slog.String("error", err.Error()))
				res.Warnings = append(res.Warnings, fmt.Sprintf("category %q page %d: %v", category, pages+1, err))
			}
			if err != nil {
				break
			}

			token = page.NextPageToken
			if token == "" {
				break
			}
		}
	}

	return res
}

// FetchVideo looks up the metadata of a single video, charged as one
// metadata call.
func (f *Fetcher) FetchVideo(ctx context.Context, id model.YoutubeVideoID) (model.Candidate, int64, error) {
	ctx, span := tracer.Start(ctx, "fetcher.FetchVideo", trace.WithAttributes(attribute.String("videoid", string(id))))
	defer span.End()

	var charged int64
	c, err := Retry(ctx, f.config.Retry, func(ctx context.Context) (model.Candidate, error) {
		cost, err := f.reserve(ctx, quota.OpVideoMetadata)
		if err != nil {
			return model.Candidate{}, err
		}
		charged += cost
		return f.source.Video(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return c, charged, err
}
