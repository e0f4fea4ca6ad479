package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taoi11/somenewsfound/internal/domain"
	"github.com/taoi11/somenewsfound/internal/ports"
	"github.com/taoi11/somenewsfound/internal/scrape"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Fetcher    ports.FeedFetcher
	Sources    ports.SourceRegistry
	Articles   ports.ArticleStore
	Scrapers   *scrape.Registry
	Normalizer ports.Normalizer
	FeedURLs   []string
	BatchLimit int
	Logger     *slog.Logger
}

// Pipeline implements the ingest-then-enrich workflow: pull each configured
// feed into its source table, then walk every known table and fill in body
// content for articles still missing it.
type Pipeline struct {
	fetcher    ports.FeedFetcher
	sources    ports.SourceRegistry
	articles   ports.ArticleStore
	scrapers   *scrape.Registry
	normalizer ports.Normalizer
	feedURLs   []string
	batchLimit int
	logger     *slog.Logger
	now        func() time.Time
}

const defaultBatchLimit = 25

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	limit := deps.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:    deps.Fetcher,
		sources:    deps.Sources,
		articles:   deps.Articles,
		scrapers:   deps.Scrapers,
		normalizer: deps.Normalizer,
		feedURLs:   deps.FeedURLs,
		batchLimit: limit,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one full pass. A failing feed aborts only that feed's
// ingestion; a failing article aborts only that article. The run itself
// completes even if every item failed, leaving diagnosis to the logs.
func (p *Pipeline) Run(ctx context.Context) error {
	metaByTable := make(map[string]map[string]domain.ItemMeta)

	for _, feedURL := range p.feedURLs {
		tableID, meta, err := p.ingestFeed(ctx, feedURL)
		if err != nil {
			p.logger.Error("feed ingestion failed", "feed", feedURL, "error", err)
			continue
		}
		metaByTable[tableID] = meta
		p.logger.Info("feed ingested", "feed", feedURL, "table", tableID, "items", len(meta))
	}

	sources, err := p.sources.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	for _, src := range sources {
		p.enrichSource(ctx, src, metaByTable[src.TableID])
	}
	return nil
}

// ingestFeed fetches one feed, resolves its source record and upserts article
// stubs. It returns the per-URL metadata needed by the enrichment stage.
func (p *Pipeline) ingestFeed(ctx context.Context, feedURL string) (string, map[string]domain.ItemMeta, error) {
	fetched, err := p.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return "", nil, err
	}

	src, err := p.sources.Resolve(ctx, feedURL, fetched.ChannelTitle)
	if err != nil {
		return "", nil, err
	}

	if err := p.articles.EnsureTable(ctx, src.TableID); err != nil {
		return "", nil, err
	}

	fetchedAt := p.now().UTC()
	stubs := make([]domain.Article, 0, len(fetched.Items))
	meta := make(map[string]domain.ItemMeta, len(fetched.Items))
	for _, item := range fetched.Items {
		dateAdded := fetchedAt
		if item.PublishedAt != nil {
			dateAdded = item.PublishedAt.UTC()
		}
		stubs = append(stubs, domain.Article{
			URL:       item.URL,
			Title:     item.Title,
			DateAdded: dateAdded,
		})
		meta[item.URL] = domain.ItemMeta{Title: item.Title, Categories: item.Categories}
	}

	if err := p.articles.UpsertArticles(ctx, src.TableID, stubs); err != nil {
		return "", nil, err
	}
	return src.TableID, meta, nil
}

// enrichSource processes one bounded batch of pending articles for a source.
// Items classified as non-text media store a sentinel without any network
// fetch; items with no registered strategy are skipped and stay pending.
func (p *Pipeline) enrichSource(ctx context.Context, src domain.Source, meta map[string]domain.ItemMeta) {
	logger := p.logger.With("table", src.TableID)

	pending, err := p.articles.FetchPending(ctx, src.TableID, p.batchLimit)
	if err != nil {
		logger.Error("fetch pending failed", "error", err)
		return
	}

	for _, article := range pending {
		p.enrichArticle(ctx, logger, src.TableID, article, meta[article.URL])
	}
}

func (p *Pipeline) enrichArticle(ctx context.Context, logger *slog.Logger, tableID string, article domain.Article, meta domain.ItemMeta) {
	if sentinel, ok := domain.MediaSentinel(meta.Categories); ok {
		if err := p.articles.WriteContent(ctx, tableID, article.ID, sentinel); err != nil {
			logger.Error("store media sentinel failed", "url", article.URL, "error", err)
		}
		return
	}

	strategy, ok := p.scrapers.Resolve(article.URL)
	if !ok {
		logger.Debug("no scraper for host, skipping", "url", article.URL)
		return
	}

	raw, err := strategy.Extract(ctx, article.URL, meta)
	if err != nil {
		logger.Warn("extraction failed", "url", article.URL, "scraper", strategy.Name(), "error", err)
		return
	}

	content, err := p.normalizer.Normalize(ctx, raw)
	if err != nil {
		logger.Warn("normalization failed, keeping raw content", "url", article.URL, "error", err)
		content = raw
	}

	if err := p.articles.WriteContent(ctx, tableID, article.ID, content); err != nil {
		logger.Error("store content failed", "url", article.URL, "error", err)
	}
}
