package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"ewintr.nl/shortscout/config"
	"ewintr.nl/shortscout/events"
	"ewintr.nl/shortscout/fetcher"
	"ewintr.nl/shortscout/filter"
	"ewintr.nl/shortscout/ingest"
	"ewintr.nl/shortscout/metrics"
	"ewintr.nl/shortscout/quota"
	"ewintr.nl/shortscout/storage"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type options struct {
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	Discovery string `long:"discovery" env:"DISCOVERY_CONFIG" description:"Path to the discovery YAML file, defaults are used when empty"`

	Database         string `long:"database" env:"DATABASE" default:"sqlite" choice:"sqlite" choice:"postgres" description:"Store for video records"`
	SQLitePath       string `long:"sqlite-path" env:"SQLITE_PATH" default:"shortscout.db" description:"SQLite database file"`
	PostgresHost     string `long:"postgres-host" env:"POSTGRES_HOST" default:"localhost" description:"Postgres host"`
	PostgresPort     string `long:"postgres-port" env:"POSTGRES_PORT" default:"5432" description:"Postgres port"`
	PostgresUser     string `long:"postgres-user" env:"POSTGRES_USER" default:"shortscout" description:"Postgres user"`
	PostgresPassword string `long:"postgres-password" env:"POSTGRES_PASSWORD" default:"shortscout" description:"Postgres password"`
	PostgresDB       string `long:"postgres-db" env:"POSTGRES_DB" default:"shortscout" description:"Postgres database"`
	PostgresSSLMode  string `long:"postgres-sslmode" env:"POSTGRES_SSLMODE" default:"disable" description:"Postgres sslmode"`

	YoutubeAPIKey string `long:"youtube-api-key" env:"YOUTUBE_API_KEY" description:"YouTube Data API key, discovery and lookups are off without it"`
	RedisURL      string `long:"redis-url" env:"REDIS_URL" description:"Share the quota ledger and run lease through Redis, e.g. redis://localhost:6379/0"`
	NATSURL       string `long:"nats-url" env:"NATS_URL" description:"Publish discovery events to NATS"`

	WeaviateScheme       string `long:"weaviate-scheme" env:"WEAVIATE_SCHEME" default:"http" description:"Weaviate scheme"`
	WeaviateHost         string `long:"weaviate-host" env:"WEAVIATE_HOST" description:"Mirror records into Weaviate for similarity search"`
	WeaviateApiKey       string `long:"weaviate-api-key" env:"WEAVIATE_API_KEY" description:"Weaviate API key"`
	WeaviateOpenAIApiKey string `long:"weaviate-openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI key Weaviate uses to vectorize"`

	MinifluxEndpoint string `long:"miniflux-endpoint" env:"MINIFLUX_ENDPOINT" description:"Poll followed channels through Miniflux, e.g. http://localhost/v1"`
	MinifluxApiKey   string `long:"miniflux-api-key" env:"MINIFLUX_APIKEY" description:"Miniflux API key"`
	MinifluxCategory int64  `long:"miniflux-category" env:"MINIFLUX_CATEGORY" default:"0" description:"Miniflux category holding the channel feeds, 0 for all"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	for _, c := range []struct {
		name, short, long string
		cmd               any
	}{
		{"serve", "Serve the API and run discovery on a schedule", "Serve the HTTP API and run discovery every interval until interrupted.", &serveCmd{opts: &opts}},
		{"discover", "Run discovery once", "Run one discovery pass over the trending chart and print the report.", &discoverCmd{opts: &opts}},
		{"add", "Add a single video by url", "Add one video. Without metadata flags its metadata is looked up, charged against the quota.", &addCmd{opts: &opts}},
		{"import", "Import a CSV, JSON or url list", "Import a document of videos. The format is taken from the extension unless --format is given.", &importCmd{opts: &opts}},
		{"index", "Recreate the vector index schema", "Drop and recreate the Weaviate class that mirrors discovered videos.", &indexCmd{opts: &opts}},
	} {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.cmd); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// app holds everything the commands share. Optional parts are nil when
// they are not configured.
type app struct {
	logger    *slog.Logger
	discovery config.Discovery
	store     *storage.SQL
	budget    *quota.Budget
	registry  *prometheus.Registry
	ingestor  *ingest.Ingestor
	manual    *ingest.ManualImport
	batch     *ingest.BatchImport
	fetcher   *fetcher.Fetcher
	pipeline  *ingest.Pipeline
	subs      *ingest.Subscriptions
	vectors   *storage.Weaviate
	closers   []func() error
}

func newApp(ctx context.Context, opts *options) (_ *app, err error) {
	a := &app{logger: newLogger(opts.LogLevel)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	disc, err := config.Load(opts.Discovery)
	if err != nil {
		return nil, err
	}
	a.discovery = disc

	switch opts.Database {
	case "postgres":
		a.store, err = storage.NewPostgres(storage.PostgresInfo{
			Host:     opts.PostgresHost,
			Port:     opts.PostgresPort,
			User:     opts.PostgresUser,
			Password: opts.PostgresPassword,
			Database: opts.PostgresDB,
			SSLMode:  opts.PostgresSSLMode,
		})
	default:
		a.store, err = storage.NewSQLite(opts.SQLitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open %s store: %w", opts.Database, err)
	}
	a.closers = append(a.closers, a.store.Close)

	budgetOpts := []quota.Option{quota.WithPeriod(quota.DailyPeriod(disc.Location()))}
	if opts.RedisURL != "" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("unable to reach redis: %w", err)
		}
		budgetOpts = append(budgetOpts,
			quota.WithLedger(quota.NewRedisLedger(client, "shortscout", 48*time.Hour)),
			quota.WithLocker(quota.NewRedisLock(client, "shortscout:run-lease", disc.Deadline+time.Minute)),
		)
		a.logger.Info("sharing quota through redis")
	}
	a.budget = quota.NewBudget(disc.Quota.DailyBudget, disc.CostTable(), budgetOpts...)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var publisher ingest.Publisher
	if opts.NATSURL != "" {
		nc, err := events.Connect(opts.NATSURL, "shortscout")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, nc.Close)
		publisher = nc
	}

	var indexer ingest.Indexer
	if opts.WeaviateHost != "" {
		a.vectors, err = storage.NewWeaviate(storage.WeaviateInfo{
			Scheme:       opts.WeaviateScheme,
			Host:         opts.WeaviateHost,
			ApiKey:       opts.WeaviateApiKey,
			OpenAIApiKey: opts.WeaviateOpenAIApiKey,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to create weaviate client: %w", err)
		}
		indexer = a.vectors
	}

	funnel := filter.NewDefaultFunnel(time.Now, a.logger)
	if disc.MinVelocity > 0 {
		funnel.Append(filter.NewVelocityFilter(time.Now, disc.AgeFloorHours, disc.MinVelocity))
	}
	a.ingestor = ingest.NewIngestor(ingest.Deps{
		Videos:    a.store,
		Funnel:    funnel,
		Indexer:   indexer,
		Publisher: publisher,
		Observer:  metrics.New(a.registry),
		Logger:    a.logger,
	}, ingest.Config{
		Criteria:      disc.Criteria,
		AgeFloorHours: disc.AgeFloorHours,
	})

	var videoFetcher ingest.VideoFetcher
	if opts.YoutubeAPIKey != "" {
		svc, err := fetcher.NewYoutubeService(ctx, opts.YoutubeAPIKey)
		if err != nil {
			return nil, fmt.Errorf("unable to create youtube service: %w", err)
		}
		yt := fetcher.NewYoutube(svc, rate.NewLimiter(rate.Limit(disc.RequestsPerSecond), 1), fetcher.DefaultCallTimeout)
		a.fetcher = fetcher.NewFetcher(yt, a.budget, fetcher.Config{
			PageSize:   disc.PageSize,
			MaxPages:   disc.MaxPages,
			Categories: disc.Categories,
		}, a.logger)
		videoFetcher = a.fetcher
		a.pipeline = ingest.NewPipeline(a.fetcher, a.budget, a.ingestor, a.store, ingest.PipelineConfig{
			Region:   disc.Criteria.RegionCode,
			Deadline: disc.Deadline,
		})
	} else {
		a.logger.Warn("no youtube api key, discovery and metadata lookups are off")
	}

	a.manual = ingest.NewManualImport(a.ingestor, videoFetcher)
	a.batch = ingest.NewBatchImport(a.manual, disc.Workers)

	if opts.MinifluxEndpoint != "" {
		a.subs = ingest.NewSubscriptions(fetcher.NewMiniflux(fetcher.MinifluxInfo{
			Endpoint: opts.MinifluxEndpoint,
			ApiKey:   opts.MinifluxApiKey,
			Category: opts.MinifluxCategory,
		}), a.manual)
	}

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("could not close", slog.String("error", err.Error()))
		}
	}
}
