package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/storage"
)

type VideoFetcher interface {
	FetchVideo(ctx context.Context, id model.YoutubeVideoID) (model.Candidate, int64, error)
}

// Metadata is what a caller may know about a video up front. A zero
// PublishedAt is read as "just published".
type Metadata struct {
	Title           string    `json:"title"`
	Channel         string    `json:"channel"`
	CategoryID      string    `json:"category_id"`
	Views           int64     `json:"views"`
	Likes           int64     `json:"likes"`
	DurationSeconds int       `json:"duration"`
	PublishedAt     time.Time `json:"published_at"`
}

func (m *Metadata) IsZero() bool {
	return m == nil || *m == Metadata{}
}

func (m *Metadata) candidate(id model.YoutubeVideoID, source model.Source, now time.Time) model.Candidate {
	published := m.PublishedAt
	if published.IsZero() {
		published = now
	}
	return model.Candidate{
		VideoID:         id,
		Title:           m.Title,
		Channel:         m.Channel,
		CategoryID:      m.CategoryID,
		ViewCount:       m.Views,
		LikeCount:       m.Likes,
		DurationSeconds: m.DurationSeconds,
		PublishedAt:     published,
		Source:          source,
	}
}

// ManualImport adds single videos by url. Without metadata from the caller
// the video is looked up once, charged against the budget.
type ManualImport struct {
	ingestor *Ingestor
	fetcher  VideoFetcher
	videos   storage.VideoRepository
}

func NewManualImport(ingestor *Ingestor, f VideoFetcher) *ManualImport {
	return &ManualImport{
		ingestor: ingestor,
		fetcher:  f,
		videos:   ingestor.videos,
	}
}

// Add returns the stored record, new or existing. A url without a video id
// and a video the funnel turns down both fail with a ValidationError.
func (m *ManualImport) Add(ctx context.Context, rawURL string, meta *Metadata) (Result, error) {
	res := m.resolve(ctx, rawURL, meta, model.SourceManual)
	switch res.Outcome {
	case OutcomeRejected:
		return res, &ValidationError{
			Field:  res.Decision.Stage,
			Value:  rawURL,
			Reason: res.Decision.Detail,
		}
	case OutcomeErrored:
		return res, res.Err
	}

	return res, nil
}

func (m *ManualImport) resolve(ctx context.Context, rawURL string, meta *Metadata, source model.Source) Result {
	logger := m.ingestor.logger
	id, err := ExtractVideoID(rawURL)
	if err != nil {
		return Result{Outcome: OutcomeErrored, Err: err}
	}

	existing, err := m.videos.FindByVideoID(ctx, id)
	switch {
	case err == nil:
		logger.Info("video already known", slog.String("videoid", string(id)))
		m.ingestor.observer.CandidateOutcome(source, string(OutcomeDuplicate))
		return Result{Outcome: OutcomeDuplicate, Video: existing}
	case !errors.Is(err, storage.ErrNotFound):
		return Result{Outcome: OutcomeErrored, Err: fmt.Errorf("could not look up video %s: %w", id, err)}
	}

	var c model.Candidate
	switch {
	case !meta.IsZero():
		c = meta.candidate(id, source, m.ingestor.now())
	case m.fetcher == nil:
		return Result{Outcome: OutcomeErrored, Err: &ValidationError{Field: "metadata", Value: string(id), Reason: "no metadata given and lookups are disabled"}}
	default:
		fetched, cost, err := m.fetcher.FetchVideo(ctx, id)
		logger.Info("looked up video metadata", slog.String("videoid", string(id)), slog.Int64("cost", cost))
		var mErr *fetcher.MalformedMetadataError
		switch {
		case errors.Is(err, fetcher.ErrVideoNotFound):
			return Result{Outcome: OutcomeErrored, Err: &ValidationError{Field: "url", Value: rawURL, Reason: "video does not exist", Err: err}}
		case errors.As(err, &mErr):
			return Result{Outcome: OutcomeErrored, Err: &ValidationError{Field: mErr.Field, Value: string(id), Reason: "malformed metadata", Err: err}}
		case err != nil:
			return Result{Outcome: OutcomeErrored, Err: fmt.Errorf("could not fetch video %s: %w", id, err)}
		}
		c = fetched
		c.Source = source
	}

	return m.ingestor.Admit(ctx, c)
}
