package ports

import (
	"context"
	"time"

	"github.com/taoi11/somenewsfound/internal/domain"
)

// FeedFetcher retrieves and parses one syndication feed document.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (domain.Feed, error)
}

// SourceRegistry owns Source records and the mapping from a feed endpoint to
// its storage-table identifier.
type SourceRegistry interface {
	Resolve(ctx context.Context, feedURL, channelTitle string) (domain.Source, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
}

// ArticleStore owns the per-source article tables.
type ArticleStore interface {
	EnsureTable(ctx context.Context, tableID string) error
	UpsertArticles(ctx context.Context, tableID string, articles []domain.Article) error
	FetchPending(ctx context.Context, tableID string, limit int) ([]domain.Article, error)
	WriteContent(ctx context.Context, tableID string, articleID int64, content string) error
}

// Normalizer turns raw extracted content into clean text via an external
// inference call. Callers must fall back to the raw content on error.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) (string, error)
}

// Scheduler controls when pipeline runs execute. Implementations must not
// start a new run while one is in flight.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
