package ingest

import (
	"context"
	"errors"
	"log/slog"

	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/model"
)

// Subscriptions picks up new uploads from followed channels through a feed
// reader. Each entry is looked up and funneled like a manual add.
type Subscriptions struct {
	reader fetcher.FeedReader
	manual *ManualImport
}

func NewSubscriptions(reader fetcher.FeedReader, manual *ManualImport) *Subscriptions {
	return &Subscriptions{
		reader: reader,
		manual: manual,
	}
}

// Poll handles all unread entries. Entries that failed for a reason that
// may pass, like a timeout or an empty budget, stay unread for the next
// poll. Polling stops at the first quota failure.
func (s *Subscriptions) Poll(ctx context.Context) (Totals, error) {
	logger := s.manual.ingestor.logger
	var totals Totals

	entries, err := s.reader.Unread()
	if err != nil {
		return totals, err
	}
	logger.Info("polling subscriptions", slog.Int("entries", len(entries)))

	var done []int64
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		res := s.manual.resolve(ctx, entry.URL, nil, model.SourceAuto)
		switch res.Outcome {
		case OutcomeInserted:
			totals.Inserted++
		case OutcomeDuplicate:
			totals.Duplicate++
		case OutcomeRejected:
			totals.Rejected++
		case OutcomeErrored:
			totals.Errored++
			logger.Error("could not handle feed entry", slog.Int64("entry", entry.EntryID), slog.String("url", entry.URL), slog.String("error", res.Err.Error()))
		}

		if res.Outcome == OutcomeErrored && !IsValidation(res.Err) {
			if errors.Is(res.Err, fetcher.ErrQuotaExceeded) {
				break
			}
			continue
		}
		done = append(done, entry.EntryID)
	}

	if err := s.reader.MarkRead(done...); err != nil {
		return totals, err
	}

	return totals, nil
}
