package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"github.com/taoi11/somenewsfound/internal/config"
	"github.com/taoi11/somenewsfound/internal/infrastructure/feed"
	"github.com/taoi11/somenewsfound/internal/infrastructure/llm"
	"github.com/taoi11/somenewsfound/internal/infrastructure/scheduler"
	"github.com/taoi11/somenewsfound/internal/infrastructure/scraper"
	"github.com/taoi11/somenewsfound/internal/infrastructure/storage"
	"github.com/taoi11/somenewsfound/internal/logging"
	"github.com/taoi11/somenewsfound/internal/scrape"
	"github.com/taoi11/somenewsfound/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	db      *sql.DB
	sources *storage.SourceRegistry
	runner  *usecase.Runner
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Environment)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	scrapeClient := &http.Client{Timeout: 30 * time.Second}
	registry := scrape.NewRegistry()
	registry.Register("cbc.ca", scraper.NewCBC(scrapeClient))
	registry.Register("globalnews.ca", scraper.NewGlobalNews(scrapeClient))
	registry.Register("ctvnews.ca", scraper.NewCTVNews(scrapeClient))

	sources := storage.NewSourceRegistry(db)

	feedURLs := make([]string, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		feedURLs = append(feedURLs, f.URL)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    feed.NewFetcher(nil),
		Sources:    sources,
		Articles:   storage.NewArticleStore(db),
		Scrapers:   registry,
		Normalizer: llm.NewOllamaClient(cfg.Ollama),
		FeedURLs:   feedURLs,
		BatchLimit: cfg.Enrichment.BatchLimit,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:     cfg,
		db:      db,
		sources: sources,
		runner:  usecase.NewRunner(driver, pipeline),
	}, nil
}

// Run prepares the schema, starts the scheduling loop and blocks until the
// context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.sources.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("start runner: %w", err)
	}

	<-ctx.Done()
	_ = a.runner.Stop(context.Background())
	return a.db.Close()
}
