package ingest

import (
	"context"
	"io"
	"log/slog"
	"runtime"

	"ewintr.nl/shortscout/model"
	"golang.org/x/sync/errgroup"
)

type RowResult struct {
	Row     int                  `json:"row"`
	URL     string               `json:"url"`
	VideoID model.YoutubeVideoID `json:"video_id,omitempty"`
	Outcome Outcome              `json:"outcome"`
	Reason  string               `json:"reason,omitempty"`
	Video   *model.Video         `json:"video,omitempty"`
}

type Totals struct {
	Inserted  int `json:"inserted"`
	Duplicate int `json:"duplicate"`
	Rejected  int `json:"rejected"`
	Errored   int `json:"errored"`
}

type BatchReport struct {
	Format      Format      `json:"format"`
	Rows        []RowResult `json:"rows"`
	Totals      Totals      `json:"totals"`
	Unattempted int         `json:"unattempted"`
	Partial     bool        `json:"partial"`
}

// BatchImport runs every row of a document through the same path as a
// manual add. Rows are independent: a bad row is reported and the rest go
// on.
type BatchImport struct {
	manual  *ManualImport
	workers int
}

func NewBatchImport(manual *ManualImport, workers int) *BatchImport {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchImport{
		manual:  manual,
		workers: workers,
	}
}

// Import fails as a whole only when the document cannot be read at all.
// When ctx is done, rows not yet started are left out and counted as
// unattempted. Rows already running finish.
func (b *BatchImport) Import(ctx context.Context, r io.Reader, format Format) (*BatchReport, error) {
	ctx, span := tracer.Start(ctx, "ingest.Import")
	defer span.End()

	rows, err := decode(r, format)
	if err != nil {
		return nil, err
	}

	logger := b.manual.ingestor.logger
	logger.Info("importing batch", slog.String("format", string(format)), slog.Int("rows", len(rows)), slog.Int("workers", b.workers))

	detached := context.WithoutCancel(ctx)
	results := make([]RowResult, len(rows))
	report := &BatchReport{Format: format}

	var g errgroup.Group
	g.SetLimit(b.workers)
	attempted := len(rows)
	for n, rw := range rows {
		if ctx.Err() != nil {
			attempted = n
			break
		}
		g.Go(func() error {
			results[n] = b.process(detached, rw)
			return nil
		})
	}
	g.Wait()

	report.Rows = results[:attempted]
	if attempted < len(rows) {
		report.Unattempted = len(rows) - attempted
		report.Partial = true
	}
	for _, res := range report.Rows {
		switch res.Outcome {
		case OutcomeInserted:
			report.Totals.Inserted++
		case OutcomeDuplicate:
			report.Totals.Duplicate++
		case OutcomeRejected:
			report.Totals.Rejected++
		case OutcomeErrored:
			report.Totals.Errored++
		}
	}

	logger.Info("imported batch",
		slog.Int("inserted", report.Totals.Inserted),
		slog.Int("duplicate", report.Totals.Duplicate),
		slog.Int("rejected", report.Totals.Rejected),
		slog.Int("errored", report.Totals.Errored),
	)

	return report, nil
}

func (b *BatchImport) process(ctx context.Context, rw row) RowResult {
	rr := RowResult{Row: rw.line, URL: rw.url}
	if rw.err != nil {
		rr.Outcome = OutcomeErrored
		rr.Reason = rw.err.Error()
		return rr
	}
	if rw.url == "" {
		rr.Outcome = OutcomeErrored
		rr.Reason = (&ValidationError{Field: "url", Reason: "missing"}).Error()
		return rr
	}

	res := b.manual.resolve(ctx, rw.url, rw.meta, model.SourceBatch)
	rr.Outcome = res.Outcome
	rr.Video = res.Video
	if res.Video != nil {
		rr.VideoID = res.Video.VideoID
	} else if id, err := ExtractVideoID(rw.url); err == nil {
		rr.VideoID = id
	}
	switch res.Outcome {
	case OutcomeRejected:
		rr.Reason = string(res.Decision.Reason)
		if res.Decision.Detail != "" {
			rr.Reason += ": " + res.Decision.Detail
		}
	case OutcomeErrored:
		rr.Reason = res.Err.Error()
	}

	return rr
}
