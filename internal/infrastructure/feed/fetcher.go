package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/taoi11/somenewsfound/internal/domain"
	"github.com/taoi11/somenewsfound/internal/ports"
)

const userAgent = "somenewsfound/1.0 (+https://github.com/taoi11/somenewsfound)"

// Fetcher retrieves syndication feeds over HTTP and normalizes them.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

var _ ports.FeedFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; a nil client gets a 30s-timeout default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, parser: gofeed.NewParser()}
}

// Fetch downloads and parses one feed document. Transport problems come back
// as FetchError, malformed feed syntax as ParseError; no retry happens here.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (domain.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return domain.Feed{}, &domain.FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Feed{}, &domain.FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Feed{}, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return domain.Feed{}, &domain.ParseError{URL: feedURL, Err: err}
	}

	out := domain.Feed{
		ChannelTitle: CleanTitle(parsed.Title),
		Items:        make([]domain.FeedItem, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item.Link == "" {
			continue
		}
		out.Items = append(out.Items, domain.FeedItem{
			URL:         item.Link,
			Title:       CleanTitle(item.Title),
			PublishedAt: item.PublishedParsed,
			RawBody:     itemBody(item),
			Categories:  item.Categories,
		})
	}
	return out, nil
}

// itemBody prefers the full-content extension over the plain description.
func itemBody(item *gofeed.Item) string {
	if body := strings.TrimSpace(item.Content); body != "" {
		return body
	}
	return strings.TrimSpace(item.Description)
}

// CleanTitle strips CDATA escape wrappers and the pipe delimiter that breaks
// table-name derivation downstream, then collapses surrounding whitespace.
func CleanTitle(title string) string {
	title = strings.ReplaceAll(title, "<![CDATA[", "")
	title = strings.ReplaceAll(title, "]]>", "")
	title = strings.ReplaceAll(title, "|", "")
	return strings.Join(strings.Fields(title), " ")
}
