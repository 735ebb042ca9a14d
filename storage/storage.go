package storage

import (
	"context"
	"errors"
	"time"

	"ewintr.nl/shortscout/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRecord     = errors.New("record violates store constraints")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Query struct {
	Status     model.VideoStatus
	CategoryID string
	Search     string
	Page       int
	Limit      int
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

type VideoRepository interface {
	// Insert stores v unless its video id is already known. On conflict the
	// stored record is returned with inserted false.
	Insert(ctx context.Context, v *model.Video) (stored *model.Video, inserted bool, err error)
	FindByVideoID(ctx context.Context, id model.YoutubeVideoID) (*model.Video, error)
	Find(ctx context.Context, q Query) ([]*model.Video, int, error)
	CountByStatus(ctx context.Context) (map[model.VideoStatus]int, error)
	UpdateStatus(ctx context.Context, id model.YoutubeVideoID, to model.VideoStatus) (*model.Video, error)
	RecentViral(ctx context.Context, since time.Time, minViews int64, limit int) ([]*model.Video, error)
}

type RunRepository interface {
	SaveRun(ctx context.Context, r *model.RunReport) error
	LatestRuns(ctx context.Context, limit int) ([]*model.RunReport, error)
}

type VideoVecRepository interface {
	Index(ctx context.Context, v *model.Video) error
	Similar(ctx context.Context, text string, limit int) ([]model.YoutubeVideoID, error)
}
