package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/ingest"
	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultViralDays  = 7
	defaultSimilarMax = 10
)

type VideoAPI struct {
	videos  storage.VideoRepository
	vectors storage.VideoVecRepository
	manual  *ingest.ManualImport
	logger  *slog.Logger
	now     func() time.Time
}

func NewVideoAPI(videos storage.VideoRepository, vectors storage.VideoVecRepository, manual *ingest.ManualImport, logger *slog.Logger) *VideoAPI {
	return &VideoAPI{
		videos:  videos,
		vectors: vectors,
		manual:  manual,
		logger:  logger,
		now:     time.Now,
	}
}

type listResponse struct {
	Videos []*model.Video `json:"videos"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

func (v *VideoAPI) List(c *gin.Context) {
	q := storage.Query{
		CategoryID: c.Query("category"),
		Search:     c.Query("search"),
	}
	if s := c.Query("status"); s != "" {
		status, err := model.ParseStatus(s)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid status", err)
			return
		}
		q.Status = status
	}
	var err error
	if q.Page, err = intParam(c, "page", 1); err != nil {
		Error(c, http.StatusBadRequest, "invalid page", err)
		return
	}
	if q.Limit, err = intParam(c, "limit", storage.DefaultPageSize); err != nil {
		Error(c, http.StatusBadRequest, "invalid limit", err)
		return
	}
	if q.Limit > storage.MaxPageSize {
		q.Limit = storage.MaxPageSize
	}

	videos, total, err := v.videos.Find(c.Request.Context(), q)
	if err != nil {
		returnErr(c, v.logger, http.StatusInternalServerError, "could not list videos", err)
		return
	}
	if videos == nil {
		videos = []*model.Video{}
	}

	c.JSON(http.StatusOK, listResponse{
		Videos: videos,
		Total:  total,
		Page:   q.Page,
		Limit:  q.Limit,
	})
}

func (v *VideoAPI) Get(c *gin.Context) {
	id := model.YoutubeVideoID(c.Param("videoId"))
	video, err := v.videos.FindByVideoID(c.Request.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(c, http.StatusNotFound, "video not found", err, id)
		return
	case err != nil:
		returnErr(c, v.logger, http.StatusInternalServerError, "could not get video", err)
		return
	}

	c.JSON(http.StatusOK, video)
}

func (v *VideoAPI) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid status", err)
		return
	}

	id := model.YoutubeVideoID(c.Param("videoId"))
	video, err := v.videos.UpdateStatus(c.Request.Context(), id, status)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		Error(c, http.StatusNotFound, "video not found", err, id)
		return
	case errors.Is(err, storage.ErrInvalidTransition):
		Error(c, http.StatusConflict, "status can not change that way", err)
		return
	case err != nil:
		returnErr(c, v.logger, http.StatusInternalServerError, "could not update status", err)
		return
	}

	c.JSON(http.StatusOK, video)
}

func (v *VideoAPI) Viral(c *gin.Context) {
	days, err := intParam(c, "days", defaultViralDays)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid days", err)
		return
	}
	minViews, err := intParam(c, "min_views", 0)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid min_views", err)
		return
	}
	limit, err := intParam(c, "limit", storage.DefaultPageSize)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid limit", err)
		return
	}

	since := v.now().Add(-time.Duration(days) * 24 * time.Hour)
	videos, err := v.videos.RecentViral(c.Request.Context(), since, int64(minViews), limit)
	if err != nil {
		returnErr(c, v.logger, http.StatusInternalServerError, "could not list viral videos", err)
		return
	}
	if videos == nil {
		videos = []*model.Video{}
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

func (v *VideoAPI) Similar(c *gin.Context) {
	if v.vectors == nil {
		Error(c, http.StatusNotImplemented, "similarity search is not configured", errors.New("no vector index"))
		return
	}
	text := c.Query("q")
	if text == "" {
		Error(c, http.StatusBadRequest, "missing query", errors.New("q is required"))
		return
	}
	limit, err := intParam(c, "limit", defaultSimilarMax)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid limit", err)
		return
	}

	ids, err := v.vectors.Similar(c.Request.Context(), text, limit)
	if err != nil {
		returnErr(c, v.logger, http.StatusInternalServerError, "could not search similar videos", err)
		return
	}
	videos := make([]*model.Video, 0, len(ids))
	for _, id := range ids {
		video, err := v.videos.FindByVideoID(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			returnErr(c, v.logger, http.StatusInternalServerError, "could not load similar video", err)
			return
		}
		videos = append(videos, video)
	}

	c.JSON(http.StatusOK, gin.H{"videos": videos})
}

type addRequest struct {
	URL string `json:"url" binding:"required"`
	ingest.Metadata
}

func (v *VideoAPI) Add(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := v.manual.Add(c.Request.Context(), req.URL, &req.Metadata)
	switch {
	case ingest.IsValidation(err):
		Error(c, http.StatusUnprocessableEntity, "video not accepted", err)
		return
	case errors.Is(err, fetcher.ErrQuotaExceeded):
		Error(c, http.StatusTooManyRequests, "quota exhausted, add metadata or try again after the reset", err)
		return
	case fetcher.IsTransient(err):
		returnErr(c, v.logger, http.StatusBadGateway, "video lookup failed", err)
		return
	case err != nil:
		returnErr(c, v.logger, http.StatusInternalServerError, "could not add video", err)
		return
	}

	status := http.StatusOK
	if res.Outcome == ingest.OutcomeInserted {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"outcome": res.Outcome,
		"video":   res.Video,
	})
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	s := c.Query(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a whole number, got %q", name, s)
	}
	return n, nil
}
