package fetcher_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

func newYoutube(t *testing.T, handler http.HandlerFunc) *fetcher.Youtube {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := youtube.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return fetcher.NewYoutube(svc, nil, 2*time.Second)
}

const trendingBody = `{
  "nextPageToken": "CDIQAA",
  "items": [
    {
      "id": "aaaaaaaaaaa",
      "snippet": {"title": "Dance", "channelTitle": "Chan", "categoryId": "24", "publishedAt": "2026-03-01T06:00:00Z"},
      "contentDetails": {"duration": "PT58S"},
      "statistics": {"viewCount": "1000000", "likeCount": "5000"}
    },
    {
      "id": "bbbbbbbbbbb",
      "snippet": {"title": "Broken", "channelTitle": "Chan", "categoryId": "24", "publishedAt": "yesterday"},
      "contentDetails": {"duration": "PT30S"}
    },
    {
      "id": "ccccccccccc",
      "snippet": {"title": "Hidden stats", "channelTitle": "Chan", "categoryId": "10", "publishedAt": "2026-03-01T10:00:00Z"},
      "contentDetails": {"duration": "PT45S"}
    }
  ]
}`

func TestYoutubeTrending(t *testing.T) {
	var query map[string][]string
	yt := newYoutube(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(trendingBody))
	})

	page, err := yt.Trending(context.Background(), fetcher.TrendingQuery{
		Region:    "TW",
		Category:  "24",
		PageToken: "CBQQAA",
		PageSize:  50,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"mostPopular"}, query["chart"])
	assert.Equal(t, []string{"TW"}, query["regionCode"])
	assert.Equal(t, []string{"24"}, query["videoCategoryId"])
	assert.Equal(t, []string{"CBQQAA"}, query["pageToken"])
	assert.Equal(t, []string{"50"}, query["maxResults"])

	assert.Equal(t, "CDIQAA", page.NextPageToken)
	require.Len(t, page.Candidates, 2)
	assert.Equal(t, model.Candidate{
		VideoID:     "aaaaaaaaaaa",
		Title:       "Dance",
		Channel:     "Chan",
		CategoryID:  "24",
		RegionCode:  "TW",
		ViewCount:   1000000,
		LikeCount:   5000,
		Duration:    "PT58S",
		PublishedAt: time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		Source:      model.SourceAuto,
	}, page.Candidates[0])
	assert.Equal(t, int64(0), page.Candidates[1].ViewCount)

	require.Len(t, page.Malformed, 1)
	assert.Equal(t, model.YoutubeVideoID("bbbbbbbbbbb"), page.Malformed[0].VideoID)
	assert.Equal(t, "publishedAt", page.Malformed[0].Field)
}

func TestYoutubeErrors(t *testing.T) {
	for _, tc := range []struct {
		name         string
		status       int
		reason       string
		expQuota     bool
		expTransient bool
	}{
		{name: "quota", status: http.StatusForbidden, reason: "quotaExceeded", expQuota: true},
		{name: "rate limit", status: http.StatusForbidden, reason: "rateLimitExceeded", expTransient: true},
		{name: "too many requests", status: http.StatusTooManyRequests, reason: "", expTransient: true},
		{name: "backend", status: http.StatusServiceUnavailable, reason: "backendError", expTransient: true},
		{name: "bad request", status: http.StatusBadRequest, reason: "invalidParameter"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			yt := newYoutube(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				fmt.Fprintf(w, `{"error": {"code": %d, "message": "nope", "errors": [{"reason": %q}]}}`, tc.status, tc.reason)
			})

			_, err := yt.Trending(context.Background(), fetcher.TrendingQuery{Region: "TW"})
			require.Error(t, err)
			assert.Equal(t, tc.expQuota, errors.Is(err, fetcher.ErrQuotaExceeded))
			assert.Equal(t, tc.expTransient, fetcher.IsTransient(err))
		})
	}
}

func TestYoutubeTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	svc, err := youtube.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	yt := fetcher.NewYoutube(svc, nil, 50*time.Millisecond)

	_, err = yt.Trending(context.Background(), fetcher.TrendingQuery{Region: "TW"})
	assert.True(t, fetcher.IsTransient(err))
}

func TestYoutubeVideo(t *testing.T) {
	yt := newYoutube(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("id") != "aaaaaaaaaaa" {
			w.Write([]byte(`{"items": []}`))
			return
		}
		w.Write([]byte(trendingBody))
	})

	c, err := yt.Video(context.Background(), "aaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "PT58S", c.Duration)
	assert.Equal(t, "", c.RegionCode)

	_, err = yt.Video(context.Background(), "zzzzzzzzzzz")
	assert.ErrorIs(t, err, fetcher.ErrVideoNotFound)
}
