package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ewintr.nl/shortscout/handler"
	"ewintr.nl/shortscout/ingest"
)

const shutdownTimeout = 15 * time.Second

type serveCmd struct {
	opts   *options
	Listen string `long:"listen" env:"LISTEN" default:":8080" description:"Address the API listens on"`
}

func (c *serveCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := handler.Deps{
		Videos:   a.store,
		Runs:     a.store,
		Manual:   a.manual,
		Batch:    a.batch,
		Gatherer: a.registry,
		Logger:   a.logger,
		Pinger:   a.store,
	}
	if a.vectors != nil {
		deps.Vectors = a.vectors
	}
	if a.pipeline != nil {
		deps.Pipeline = a.pipeline
	}

	srv := &http.Server{
		Addr:              c.Listen,
		Handler:           handler.NewServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.pipeline != nil || a.subs != nil {
		go ingest.NewScheduler(a.pipeline, a.subs, a.discovery.Interval, a.logger).Run(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("service started", slog.String("address", c.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down: %w", err)
	}
	a.logger.Info("service stopped")

	return nil
}

type discoverCmd struct {
	opts *options
}

func (c *discoverCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.pipeline == nil {
		return errors.New("discovery needs --youtube-api-key")
	}

	report, err := a.pipeline.Run(ctx)
	if err != nil {
		return err
	}

	return printJSON(report)
}

type addCmd struct {
	opts     *options
	Title    string `long:"title" description:"Video title"`
	Channel  string `long:"channel" description:"Channel title"`
	Category string `long:"category" description:"Category id"`
	Views    int64  `long:"views" description:"View count"`
	Likes    int64  `long:"likes" description:"Like count"`
	Duration int    `long:"duration" description:"Duration in seconds"`
	Args     struct {
		URL string `positional-arg-name:"url" required:"yes"`
	} `positional-args:"yes"`
}

func (c *addCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.manual.Add(ctx, c.Args.URL, &ingest.Metadata{
		Title:           c.Title,
		Channel:         c.Channel,
		CategoryID:      c.Category,
		Views:           c.Views,
		Likes:           c.Likes,
		DurationSeconds: c.Duration,
	})
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"outcome": res.Outcome,
		"video":   res.Video,
	})
}

type importCmd struct {
	opts   *options
	Format string `long:"format" choice:"csv" choice:"json" choice:"urls" description:"Document format, detected when empty"`
	Args   struct {
		Path string `positional-arg-name:"path" required:"yes"`
	} `positional-args:"yes"`
}

func (c *importCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(c.Args.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(512)
	format := ingest.DetectFormat(filepath.Base(c.Args.Path), "", head)
	if c.Format != "" {
		if format, err = ingest.ParseFormat(c.Format); err != nil {
			return err
		}
	}

	report, err := a.batch.Import(ctx, br, format)
	if err != nil {
		return err
	}

	return printJSON(report)
}

type indexCmd struct {
	opts *options
}

func (c *indexCmd) Execute([]string) error {
	ctx := context.Background()
	a, err := newApp(ctx, c.opts)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.vectors == nil {
		return errors.New("indexing needs --weaviate-host")
	}
	if err := a.vectors.ResetSchema(ctx); err != nil {
		return err
	}
	a.logger.Info("vector schema recreated")

	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
