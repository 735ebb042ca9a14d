package handler

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"ewintr.nl/shortscout/ingest"
	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/quota"
	"ewintr.nl/shortscout/storage"
	"github.com/gin-gonic/gin"
)

const defaultRunsListed = 10

type RunAPI struct {
	videos   storage.VideoRepository
	runs     storage.RunRepository
	pipeline Runner
	batch    *ingest.BatchImport
	pinger   Pinger
	logger   *slog.Logger
}

func NewRunAPI(videos storage.VideoRepository, runs storage.RunRepository, pipeline Runner, batch *ingest.BatchImport, pinger Pinger, logger *slog.Logger) *RunAPI {
	return &RunAPI{
		videos:   videos,
		runs:     runs,
		pipeline: pipeline,
		batch:    batch,
		pinger:   pinger,
		logger:   logger,
	}
}

func (r *RunAPI) Health(c *gin.Context) {
	if r.pinger != nil {
		if err := r.pinger.Ping(c.Request.Context()); err != nil {
			returnErr(c, r.logger, http.StatusServiceUnavailable, "database unreachable", err)
			return
		}
	}
	Message(c, http.StatusOK, "healthy")
}

func (r *RunAPI) Stats(c *gin.Context) {
	counts, err := r.videos.CountByStatus(c.Request.Context())
	if err != nil {
		returnErr(c, r.logger, http.StatusInternalServerError, "could not count videos", err)
		return
	}
	total := 0
	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"by_status": byStatus,
	})
}

func (r *RunAPI) List(c *gin.Context) {
	limit, err := intParam(c, "limit", defaultRunsListed)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid limit", err)
		return
	}
	runs, err := r.runs.LatestRuns(c.Request.Context(), limit)
	if err != nil {
		returnErr(c, r.logger, http.StatusInternalServerError, "could not list runs", err)
		return
	}
	if runs == nil {
		runs = []*model.RunReport{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Trigger runs discovery and answers with the report. The run is not tied
// to the request, a client that goes away does not cut it short.
func (r *RunAPI) Trigger(c *gin.Context) {
	if r.pipeline == nil {
		Error(c, http.StatusNotImplemented, "discovery is not configured", errors.New("no trending source"))
		return
	}

	report, err := r.pipeline.Run(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, quota.ErrBudgetHeld):
		Error(c, http.StatusConflict, "a discovery run is already in progress", err)
		return
	case err != nil:
		returnErr(c, r.logger, http.StatusInternalServerError, "discovery run failed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Import takes a document either as the "file" field of a multipart form or
// as the raw request body.
func (r *RunAPI) Import(c *gin.Context) {
	var (
		body        io.Reader = c.Request.Body
		name        string
		contentType = c.ContentType()
	)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			Error(c, http.StatusBadRequest, "could not read upload", err)
			return
		}
		defer f.Close()
		body, name, contentType = f, fh.Filename, fh.Header.Get("Content-Type")
	}

	br := bufio.NewReader(body)
	format := ingest.DetectFormat(name, contentType, peek(br))
	if f := c.Query("format"); f != "" {
		var err error
		if format, err = ingest.ParseFormat(f); err != nil {
			Error(c, http.StatusBadRequest, "invalid format", err)
			return
		}
	}

	report, err := r.batch.Import(c.Request.Context(), br, format)
	switch {
	case ingest.IsValidation(err):
		Error(c, http.StatusUnprocessableEntity, "document not readable", err, format)
		return
	case err != nil:
		returnErr(c, r.logger, http.StatusInternalServerError, "import failed", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func peek(br *bufio.Reader) []byte {
	b, _ := br.Peek(512)
	return b
}
