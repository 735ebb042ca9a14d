package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ewintr.nl/shortscout/filter"
	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/rank"
	"ewintr.nl/shortscout/storage"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ewintr.nl/shortscout/ingest")

type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeErrored   Outcome = "errored"
)

type Result struct {
	Outcome  Outcome
	Video    *model.Video
	Decision filter.Decision
	Err      error
}

type Publisher interface {
	VideoDiscovered(ctx context.Context, v *model.Video) error
	RunCompleted(ctx context.Context, r *model.RunReport) error
}

type Indexer interface {
	Index(ctx context.Context, v *model.Video) error
}

type Observer interface {
	CandidateOutcome(source model.Source, outcome string)
	Rejection(reason string)
	RunFinished(r *model.RunReport)
}

type nopPublisher struct{}

func (nopPublisher) VideoDiscovered(context.Context, *model.Video) error   { return nil }
func (nopPublisher) RunCompleted(context.Context, *model.RunReport) error { return nil }

type nopObserver struct{}

func (nopObserver) CandidateOutcome(model.Source, string) {}
func (nopObserver) Rejection(string)                      {}
func (nopObserver) RunFinished(*model.RunReport)          {}

type Deps struct {
	Videos storage.VideoRepository
	Funnel *filter.Funnel
	// Optional
	Indexer   Indexer
	Publisher Publisher
	Observer  Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

type Config struct {
	Criteria      model.FilterCriteria
	AgeFloorHours float64
}

// Ingestor is the one admission path for every entry point: funnel,
// velocity, then an insert that lets the store decide between a new record
// and a duplicate.
type Ingestor struct {
	videos    storage.VideoRepository
	funnel    *filter.Funnel
	indexer   Indexer
	publisher Publisher
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
	config    Config
}

func NewIngestor(deps Deps, config Config) *Ingestor {
	if config.AgeFloorHours <= 0 {
		config.AgeFloorHours = rank.DefaultAgeFloorHours
	}
	i := &Ingestor{
		videos:    deps.Videos,
		funnel:    deps.Funnel,
		indexer:   deps.Indexer,
		publisher: deps.Publisher,
		observer:  deps.Observer,
		logger:    deps.Logger,
		now:       deps.Now,
		config:    config,
	}
	if i.publisher == nil {
		i.publisher = nopPublisher{}
	}
	if i.observer == nil {
		i.observer = nopObserver{}
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.now == nil {
		i.now = time.Now
	}
	if i.funnel == nil {
		i.funnel = filter.NewDefaultFunnel(i.now, i.logger)
	}

	return i
}

func (i *Ingestor) Criteria() model.FilterCriteria {
	return i.config.Criteria
}

func (i *Ingestor) Admit(ctx context.Context, c model.Candidate) Result {
	ctx, span := tracer.Start(ctx, "ingest.Admit", trace.WithAttributes(
		attribute.String("videoid", string(c.VideoID)),
		attribute.String("source", string(c.Source)),
	))
	defer span.End()

	if c.Source == "" {
		c.Source = model.SourceAuto
	}
	res := i.admit(ctx, c)
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	i.observer.CandidateOutcome(c.Source, string(res.Outcome))

	return res
}

func (i *Ingestor) admit(ctx context.Context, c model.Candidate) Result {
	if c.VideoID == "" {
		d := filter.Decision{Stage: string(filter.ReasonMalformed), Reason: filter.ReasonMalformed, Detail: "missing video id"}
		i.observer.Rejection(string(d.Reason))
		return Result{Outcome: OutcomeRejected, Decision: d}
	}

	d := i.funnel.Admit(&c, i.config.Criteria)
	if !d.Admitted {
		i.logger.Debug("candidate rejected", slog.String("videoid", string(c.VideoID)), slog.String("stage", d.Stage), slog.String("detail", d.Detail))
		i.observer.Rejection(string(d.Reason))
		return Result{Outcome: OutcomeRejected, Decision: d}
	}

	now := i.now()
	v := &model.Video{
		ID:              uuid.New(),
		VideoID:         c.VideoID,
		URL:             model.ShortsURL(c.VideoID),
		Title:           c.Title,
		Channel:         c.Channel,
		CategoryID:      c.CategoryID,
		RegionCode:      c.RegionCode,
		ViewCount:       c.ViewCount,
		LikeCount:       c.LikeCount,
		DurationSeconds: c.DurationSeconds,
		PublishedAt:     c.PublishedAt,
		DiscoveredAt:    now,
		Velocity:        rank.Velocity(c.ViewCount, c.PublishedAt, now, i.config.AgeFloorHours),
		Source:          c.Source,
		Status:          model.StatusPending,
		UpdatedAt:       now,
	}

	stored, inserted, err := i.videos.Insert(ctx, v)
	switch {
	case errors.Is(err, storage.ErrInvalidRecord):
		i.observer.Rejection(string(filter.ReasonMalformed))
		return Result{Outcome: OutcomeRejected, Decision: filter.Decision{Stage: string(filter.ReasonMalformed), Reason: filter.ReasonMalformed, Detail: err.Error()}}
	case err != nil:
		i.logger.Error("could not store video", slog.String("videoid", string(c.VideoID)), slog.String("error", err.Error()))
		return Result{Outcome: OutcomeErrored, Decision: d, Err: err}
	case !inserted:
		i.logger.Info("video already known", slog.String("videoid", string(c.VideoID)))
		return Result{Outcome: OutcomeDuplicate, Video: stored, Decision: d}
	}

	i.logger.Info("stored new video", slog.String("videoid", string(stored.VideoID)), slog.String("source", string(stored.Source)))
	if i.indexer != nil {
		if err := i.indexer.Index(ctx, stored); err != nil {
			i.logger.Error("could not index video", slog.String("videoid", string(stored.VideoID)), slog.String("error", err.Error()))
		}
	}
	if err := i.publisher.VideoDiscovered(ctx, stored); err != nil {
		i.logger.Error("could not publish video", slog.String("videoid", string(stored.VideoID)), slog.String("error", err.Error()))
	}

	return Result{Outcome: OutcomeInserted, Video: stored, Decision: d}
}
