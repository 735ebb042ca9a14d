package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"ewintr.nl/shortscout/ingest"
	"ewintr.nl/shortscout/model"
	"ewintr.nl/shortscout/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Runner interface {
	Run(ctx context.Context) (*model.RunReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Videos   storage.VideoRepository
	Runs     storage.RunRepository
	Manual   *ingest.ManualImport
	Batch    *ingest.BatchImport
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// Optional
	Vectors  storage.VideoVecRepository
	Pipeline Runner
	Pinger   Pinger
}

func NewServer(deps Deps) http.Handler {
	return otelhttp.NewHandler(NewRouter(deps), "shortscout")
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))
	r.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not found", fmt.Errorf("%s %s is not a valid path", c.Request.Method, c.Request.URL.Path))
	})

	videos := NewVideoAPI(deps.Videos, deps.Vectors, deps.Manual, deps.Logger)
	runs := NewRunAPI(deps.Videos, deps.Runs, deps.Pipeline, deps.Batch, deps.Pinger, deps.Logger)

	r.GET("/health", runs.Health)
	r.GET("/stats", runs.Stats)

	r.GET("/videos", videos.List)
	r.POST("/videos", videos.Add)
	r.GET("/videos/viral", videos.Viral)
	r.GET("/videos/similar", videos.Similar)
	r.GET("/videos/:videoId", videos.Get)
	r.PATCH("/videos/:videoId/status", videos.UpdateStatus)

	r.POST("/imports", runs.Import)
	r.GET("/runs", runs.List)
	r.POST("/runs", runs.Trigger)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
