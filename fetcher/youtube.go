package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"ewintr.nl/shortscout/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	DefaultCallTimeout = 10 * time.Second
	DefaultPageSize    = 50
)

var videoParts = []string{"snippet", "contentDetails", "statistics"}

type TrendingQuery struct {
	Region    string
	Category  string
	PageToken string
	PageSize  int64
}

type Page struct {
	Candidates    []model.Candidate
	Malformed     []*MalformedMetadataError
	NextPageToken string
	Cost          int64
}

type Source interface {
	Trending(ctx context.Context, q TrendingQuery) (Page, error)
	Video(ctx context.Context, id model.YoutubeVideoID) (model.Candidate, error)
}

type keyTransport struct {
	key  string
	base http.RoundTripper
}

func (k *keyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	q := r.URL.Query()
	q.Set("key", k.key)
	r.URL.RawQuery = q.Encode()
	return k.base.RoundTrip(r)
}

// NewYoutubeService builds a traced Data API client. The api key is added
// by the transport, since option.WithAPIKey is ignored once a custom http
// client is given.
func NewYoutubeService(ctx context.Context, apiKey string) (*youtube.Service, error) {
	client := &http.Client{
		Transport: otelhttp.NewTransport(&keyTransport{key: apiKey, base: http.DefaultTransport}),
	}
	return youtube.NewService(ctx, option.WithHTTPClient(client))
}

type Youtube struct {
	Client  *youtube.Service
	limiter *rate.Limiter
	timeout time.Duration
}

func NewYoutube(client *youtube.Service, limiter *rate.Limiter, timeout time.Duration) *Youtube {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Youtube{
		Client:  client,
		limiter: limiter,
		timeout: timeout,
	}
}

func (y *Youtube) Trending(ctx context.Context, q TrendingQuery) (Page, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	call := y.Client.Videos.
		List(videoParts).
		Chart("mostPopular").
		RegionCode(q.Region).
		MaxResults(pageSize)
	if q.Category != "" {
		call = call.VideoCategoryId(q.Category)
	}
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	response, err := y.do(ctx, "videos.list chart", call)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		Candidates:    make([]model.Candidate, 0, len(response.Items)),
		NextPageToken: response.NextPageToken,
	}
	for _, item := range response.Items {
		c, err := toCandidate(item, q.Region)
		if err != nil {
			var me *MalformedMetadataError
			if errors.As(err, &me) {
				page.Malformed = append(page.Malformed, me)
				continue
			}
			return Page{}, err
		}
		page.Candidates = append(page.Candidates, c)
	}

	return page, nil
}

func (y *Youtube) Video(ctx context.Context, id model.YoutubeVideoID) (model.Candidate, error) {
	call := y.Client.Videos.
		List(videoParts).
		Id(string(id))

	response, err := y.do(ctx, "videos.list id", call)
	if err != nil {
		return model.Candidate{}, err
	}
	if len(response.Items) == 0 {
		return model.Candidate{}, fmt.Errorf("%w: %s", ErrVideoNotFound, id)
	}

	return toCandidate(response.Items[0], "")
}

func (y *Youtube) do(ctx context.Context, op string, call *youtube.VideosListCall) (*youtube.VideoListResponse, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	response, err := call.Context(callCtx).Do()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(op, err)
	}

	return response, nil
}

func classify(op string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		reasons := map[string]bool{}
		for _, item := range gErr.Errors {
			reasons[item.Reason] = true
		}
		switch {
		case reasons["quotaExceeded"], reasons["dailyLimitExceeded"]:
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, gErr.Message)
		case gErr.Code == http.StatusTooManyRequests,
			gErr.Code >= http.StatusInternalServerError,
			reasons["rateLimitExceeded"], reasons["userRateLimitExceeded"]:
			return &TransientFetchError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransientFetchError{Op: op, Err: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func toCandidate(item *youtube.Video, region string) (model.Candidate, error) {
	id := model.YoutubeVideoID(item.Id)
	if item.Snippet == nil {
		return model.Candidate{}, &MalformedMetadataError{VideoID: id, Field: "snippet"}
	}
	if item.ContentDetails == nil {
		return model.Candidate{}, &MalformedMetadataError{VideoID: id, Field: "contentDetails"}
	}
	published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	if err != nil {
		return model.Candidate{}, &MalformedMetadataError{VideoID: id, Field: "publishedAt", Err: err}
	}

	c := model.Candidate{
		VideoID:     id,
		Title:       item.Snippet.Title,
		Channel:     item.Snippet.ChannelTitle,
		CategoryID:  item.Snippet.CategoryId,
		RegionCode:  region,
		Duration:    item.ContentDetails.Duration,
		PublishedAt: published.UTC(),
		Source:      model.SourceAuto,
	}
	if item.Statistics != nil {
		c.ViewCount = int64(item.Statistics.ViewCount)
		c.LikeCount = int64(item.Statistics.LikeCount)
	}

	return c, nil
}
