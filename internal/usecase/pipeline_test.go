package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taoi11/somenewsfound/internal/domain"
	"github.com/taoi11/somenewsfound/internal/infrastructure/storage"
	"github.com/taoi11/somenewsfound/internal/scrape"
)

// ---- fakes ----

type fakeFetcher struct {
	feeds map[string]domain.Feed
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, feedURL string) (domain.Feed, error) {
	if err := f.errs[feedURL]; err != nil {
		return domain.Feed{}, err
	}
	feed, ok := f.feeds[feedURL]
	if !ok {
		return domain.Feed{}, &domain.FetchError{URL: feedURL, Err: errors.New("unknown feed")}
	}
	return feed, nil
}

// fakeSources mirrors the registry's conflict behavior: identifiers are
// assigned once per URL and a derived identifier already taken by another
// URL fails like a unique constraint would.
type fakeSources struct {
	byURL map[string]*domain.Source
	order []string
	next  int64
}

func newFakeSources() *fakeSources {
	return &fakeSources{byURL: map[string]*domain.Source{}}
}

func (s *fakeSources) Resolve(_ context.Context, feedURL, channelTitle string) (domain.Source, error) {
	if existing, ok := s.byURL[feedURL]; ok {
		existing.ChannelName = channelTitle
		return *existing, nil
	}
	tableID := storage.DeriveTableID(channelTitle, feedURL)
	for _, other := range s.byURL {
		if other.TableID == tableID {
			return domain.Source{}, &domain.StorageError{Op: "resolve source", Err: errors.New("duplicate table_identifier")}
		}
	}
	s.next++
	src := &domain.Source{ID: s.next, URL: feedURL, ChannelName: channelTitle, TableID: tableID}
	s.byURL[feedURL] = src
	s.order = append(s.order, feedURL)
	return *src, nil
}

func (s *fakeSources) ListSources(context.Context) ([]domain.Source, error) {
	out := make([]domain.Source, 0, len(s.order))
	for _, url := range s.order {
		out = append(out, *s.byURL[url])
	}
	return out, nil
}

// fakeStore keeps per-table rows in memory with upsert semantics matching the
// real store: conflicts refresh title/date_added only, content writes are
// one-way.
type fakeStore struct {
	tables map[string]map[string]*domain.Article
	next   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: map[string]map[string]*domain.Article{}}
}

func (s *fakeStore) EnsureTable(_ context.Context, tableID string) error {
	if !storage.ValidTableID(tableID) {
		return &domain.StorageError{Op: "ensure table", Err: fmt.Errorf("invalid identifier %q", tableID)}
	}
	if s.tables[tableID] == nil {
		s.tables[tableID] = map[string]*domain.Article{}
	}
	return nil
}

func (s *fakeStore) UpsertArticles(_ context.Context, tableID string, articles []domain.Article) error {
	table, ok := s.tables[tableID]
	if !ok {
		return &domain.StorageError{Op: "upsert", Err: fmt.Errorf("missing table %s", tableID)}
	}
	for _, a := range articles {
		if existing, ok := table[a.URL]; ok {
			existing.Title = a.Title
			existing.DateAdded = a.DateAdded
			continue
		}
		s.next++
		row := a
		row.ID = s.next
		table[a.URL] = &row
	}
	return nil
}

func (s *fakeStore) FetchPending(_ context.Context, tableID string, limit int) ([]domain.Article, error) {
	table, ok := s.tables[tableID]
	if !ok {
		return nil, &domain.StorageError{Op: "fetch pending", Err: fmt.Errorf("missing table %s", tableID)}
	}
	var out []domain.Article
	for _, row := range table {
		if row.Content == nil {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateAdded.Equal(out[j].DateAdded) {
			return out[i].DateAdded.After(out[j].DateAdded)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) WriteContent(_ context.Context, tableID string, articleID int64, content string) error {
	for _, row := range s.tables[tableID] {
		if row.ID == articleID && row.Content == nil {
			c := content
			row.Content = &c
			row.ScrapeCheck = 1
		}
	}
	return nil
}

type stubStrategy struct {
	calls   int
	body    string
	errURLs map[string]error
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Extract(_ context.Context, articleURL string, _ domain.ItemMeta) (string, error) {
	s.calls++
	if err := s.errURLs[articleURL]; err != nil {
		return "", err
	}
	return s.body, nil
}

type stubNormalizer struct {
	err    error
	prefix string
}

func (n *stubNormalizer) Normalize(_ context.Context, raw string) (string, error) {
	if n.err != nil {
		return "", n.err
	}
	return n.prefix + raw, nil
}

// ---- helpers ----

func timePtr(t time.Time) *time.Time { return &t }

type testPipeline struct {
	pipeline *Pipeline
	fetcher  *fakeFetcher
	sources  *fakeSources
	store    *fakeStore
	strategy *stubStrategy
	norm     *stubNormalizer
	now      time.Time
}

func newTestPipeline(t *testing.T, feedURLs []string) *testPipeline {
	t.Helper()

	tp := &testPipeline{
		fetcher:  &fakeFetcher{feeds: map[string]domain.Feed{}, errs: map[string]error{}},
		sources:  newFakeSources(),
		store:    newFakeStore(),
		strategy: &stubStrategy{body: "raw body"},
		norm:     &stubNormalizer{prefix: "clean: "},
		now:      time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC),
	}

	registry := scrape.NewRegistry()
	registry.Register("example.com", tp.strategy)

	tp.pipeline = NewPipeline(PipelineDeps{
		Fetcher:    tp.fetcher,
		Sources:    tp.sources,
		Articles:   tp.store,
		Scrapers:   registry,
		Normalizer: tp.norm,
		FeedURLs:   feedURLs,
		BatchLimit: 10,
		Logger:     slog.Default(),
	})
	tp.pipeline.now = func() time.Time { return tp.now }
	return tp
}

func (tp *testPipeline) row(t *testing.T, tableID, url string) *domain.Article {
	t.Helper()
	row, ok := tp.tablesRow(tableID, url)
	require.True(t, ok, "missing row %s in %s", url, tableID)
	return row
}

func (tp *testPipeline) tablesRow(tableID, url string) (*domain.Article, bool) {
	table, ok := tp.store.tables[tableID]
	if !ok {
		return nil, false
	}
	row, ok := table[url]
	return row, ok
}

// ---- tests ----

func TestRunIngestsAndEnriches(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	published := time.Date(2025, 1, 5, 8, 0, 0, 0, time.UTC)
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items: []domain.FeedItem{
			{URL: "https://example.com/a", Title: "A", PublishedAt: timePtr(published)},
			{URL: "https://example.com/b", Title: "B"}, // no publish date
		},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	a := tp.row(t, tableID, "https://example.com/a")
	b := tp.row(t, tableID, "https://example.com/b")

	require.Equal(t, published, a.DateAdded)
	require.Equal(t, tp.now, b.DateAdded, "dateless items fall back to the fetch timestamp")

	require.NotNil(t, a.Content)
	require.Equal(t, "clean: raw body", *a.Content)
	require.Equal(t, 1, a.ScrapeCheck)
	require.NotNil(t, b.Content)
}

func TestMediaItemsBypassScraper(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items: []domain.FeedItem{
			{URL: "https://example.com/clip", Title: "Clip", Categories: []string{"News", "Videos"}},
		},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	row := tp.row(t, tableID, "https://example.com/clip")
	require.NotNil(t, row.Content)
	require.Equal(t, domain.VideoContent, *row.Content)
	require.Zero(t, tp.strategy.calls, "media items must never hit the scraper")
}

func TestNormalizerFailureKeepsRawContent(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	tp.norm.err = errors.New("inference endpoint returned 500")
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items:        []domain.FeedItem{{URL: "https://example.com/a", Title: "A"}},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	row := tp.row(t, tableID, "https://example.com/a")
	require.NotNil(t, row.Content)
	require.Equal(t, "raw body", *row.Content, "raw content must survive normalization failure unchanged")
}

func TestReingestNeverClobbersContent(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items:        []domain.FeedItem{{URL: "https://example.com/a", Title: "A"}},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	first := *tp.row(t, tableID, "https://example.com/a").Content

	// Second pass over the same feed with different scrape output.
	tp.strategy.body = "different body"
	require.NoError(t, tp.pipeline.Run(context.Background()))

	row := tp.row(t, tableID, "https://example.com/a")
	require.Equal(t, first, *row.Content, "re-ingest must not change stored content")
}

func TestPerArticleFailureIsolation(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	tp.strategy.errURLs = map[string]error{
		"https://example.com/broken": &domain.ExtractionError{URL: "https://example.com/broken", Err: domain.ErrNoContent},
	}
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items: []domain.FeedItem{
			{URL: "https://example.com/broken", Title: "Broken"},
			{URL: "https://example.com/fine", Title: "Fine"},
		},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	broken := tp.row(t, tableID, "https://example.com/broken")
	fine := tp.row(t, tableID, "https://example.com/fine")

	require.Nil(t, broken.Content, "failed article stays pending for the next run")
	require.NotNil(t, fine.Content, "one failure must not halt the batch")
}

func TestUnmatchedHostIsSkippedNotFailed(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items:        []domain.FeedItem{{URL: "https://unregistered.org/story", Title: "S"}},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	row := tp.row(t, tableID, "https://unregistered.org/story")
	require.Nil(t, row.Content)
	require.Zero(t, tp.strategy.calls)
}

func TestFeedFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://down.example.com/rss", "https://feed.example.com/rss"})
	tp.fetcher.errs["https://down.example.com/rss"] = &domain.FetchError{URL: "https://down.example.com/rss", Err: errors.New("refused")}
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items:        []domain.FeedItem{{URL: "https://example.com/a", Title: "A"}},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))

	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	require.NotNil(t, tp.row(t, tableID, "https://example.com/a").Content)
}

func TestDuplicateIdentifierSurfacesAsStorageError(t *testing.T) {
	t.Parallel()

	tp := newTestPipeline(t, []string{"https://one.example.com/rss", "https://two.example.com/rss"})
	tp.fetcher.feeds["https://one.example.com/rss"] = domain.Feed{
		ChannelTitle: "Same Name",
		Items:        []domain.FeedItem{{URL: "https://example.com/a", Title: "A"}},
	}
	tp.fetcher.feeds["https://two.example.com/rss"] = domain.Feed{
		ChannelTitle: "Same! Name?",
		Items:        []domain.FeedItem{{URL: "https://example.com/b", Title: "B"}},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()), "a conflicting source aborts only its own ingestion")

	sources, err := tp.sources.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1, "the colliding source must not be registered")
	require.Equal(t, "https://one.example.com/rss", sources[0].URL)
}

func TestEnrichmentDrainsPendingFromEarlierRuns(t *testing.T) {
	t.Parallel()

	// First run has no scraper match; second run, same pipeline state, the
	// article shows up again via FetchPending and gets enriched once a
	// strategy matches.
	tp := newTestPipeline(t, []string{"https://feed.example.com/rss"})
	tp.fetcher.feeds["https://feed.example.com/rss"] = domain.Feed{
		ChannelTitle: "Example News",
		Items:        []domain.FeedItem{{URL: "https://pendinglater.org/a", Title: "A"}},
	}

	require.NoError(t, tp.pipeline.Run(context.Background()))
	tableID := storage.DeriveTableID("Example News", "https://feed.example.com/rss")
	require.Nil(t, tp.row(t, tableID, "https://pendinglater.org/a").Content)

	tp.pipeline.scrapers.Register("pendinglater.org", tp.strategy)
	require.NoError(t, tp.pipeline.Run(context.Background()))
	require.NotNil(t, tp.row(t, tableID, "https://pendinglater.org/a").Content)
}
