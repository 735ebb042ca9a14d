package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/ingest"
	"ewintr.nl/shortscout/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	entries []fetcher.FeedEntry
	read    []int64
}

func (f *fakeReader) Unread() ([]fetcher.FeedEntry, error) {
	return f.entries, nil
}

func (f *fakeReader) MarkRead(ids ...int64) error {
	f.read = append(f.read, ids...)
	return nil
}

func TestSubscriptionsPoll(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		videos: map[model.YoutubeVideoID]model.Candidate{
			vid("a"): {VideoID: vid("a"), Duration: "PT40S", CategoryID: "24", ViewCount: 100, PublishedAt: now.Add(-time.Hour)},
			vid("c"): {VideoID: vid("c"), Duration: "PT12M", CategoryID: "24", PublishedAt: now.Add(-time.Hour)},
		},
		errs: map[model.YoutubeVideoID]error{
			vid("b"): errors.New("not transient but not final either"),
		},
	}
	f := fetcher.NewFetcher(src, newBudget(100), fetcher.Config{}, logger)
	reader := &fakeReader{entries: []fetcher.FeedEntry{
		{EntryID: 1, URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
		{EntryID: 2, URL: "https://www.youtube.com/watch?v=bbbbbbbbbbb"},
		{EntryID: 3, URL: "https://www.youtube.com/watch?v=ccccccccccc"},
		{EntryID: 4, URL: "https://blog.example.com/post"},
	}}
	subs := ingest.NewSubscriptions(reader, ingest.NewManualImport(newIngestor(store, twCriteria(), nil), f))

	totals, err := subs.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ingest.Totals{Inserted: 1, Rejected: 1, Errored: 2}, totals)
	assert.Equal(t, []int64{1, 3, 4}, reader.read)

	v, err := store.FindByVideoID(context.Background(), vid("a"))
	require.NoError(t, err)
	assert.Equal(t, model.SourceAuto, v.Source)
}

func TestSubscriptionsPollStopsOnQuota(t *testing.T) {
	src := &fakeSource{videos: map[model.YoutubeVideoID]model.Candidate{
		vid("a"): {VideoID: vid("a"), Duration: "PT40S", PublishedAt: now.Add(-time.Hour)},
		vid("b"): {VideoID: vid("b"), Duration: "PT40S", PublishedAt: now.Add(-time.Hour)},
	}}
	f := fetcher.NewFetcher(src, newBudget(1), fetcher.Config{}, logger)
	reader := &fakeReader{entries: []fetcher.FeedEntry{
		{EntryID: 1, URL: "https://youtu.be/aaaaaaaaaaa"},
		{EntryID: 2, URL: "https://youtu.be/bbbbbbbbbbb"},
		{EntryID: 3, URL: "https://youtu.be/ccccccccccc"},
	}}
	subs := ingest.NewSubscriptions(reader, ingest.NewManualImport(newIngestor(newStore(t), twCriteria(), nil), f))

	totals, err := subs.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ingest.Totals{Inserted: 1, Errored: 1}, totals)
	assert.Equal(t, []int64{1}, reader.read)
}
