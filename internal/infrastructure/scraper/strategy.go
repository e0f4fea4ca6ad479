package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/taoi11/somenewsfound/internal/domain"
	"github.com/taoi11/somenewsfound/internal/scrape"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	noiseSelectors = "script, style, nav, aside, figure, .related-posts, .social-share, .comments, .advertisement"
	textTags       = "p, h2, h3, li, blockquote"

	minParagraphLength = 20
)

// SiteStrategy is the shared shape of all concrete strategies: they differ
// only in request headers and in the ordered selector chain used to locate
// the content container.
type SiteStrategy struct {
	name      string
	client    *http.Client
	headers   map[string]string
	selectors []string
}

var _ scrape.Strategy = (*SiteStrategy)(nil)

func newStrategy(name string, client *http.Client, headers map[string]string, selectors []string) *SiteStrategy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SiteStrategy{name: name, client: client, headers: headers, selectors: selectors}
}

// Name identifies the strategy inside the registry.
func (s *SiteStrategy) Name() string {
	return s.name
}

// Extract fetches the article page and isolates its body text. Selectors are
// tried in order; goquery's First() keeps the outermost container when the
// same kind nests. Finding no usable region is an ExtractionError.
func (s *SiteStrategy) Extract(ctx context.Context, articleURL string, meta domain.ItemMeta) (string, error) {
	doc, err := s.fetchDocument(ctx, articleURL)
	if err != nil {
		return "", err
	}

	for _, sel := range s.selectors {
		region := doc.Find(sel).First()
		if region.Length() == 0 {
			continue
		}
		if text := regionText(region); text != "" {
			return text, nil
		}
	}
	return "", &domain.ExtractionError{URL: articleURL, Err: domain.ErrNoContent}
}

func (s *SiteStrategy) fetchDocument(ctx context.Context, articleURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: articleURL, Err: err}
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: articleURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: articleURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &domain.ParseError{URL: articleURL, Err: err}
	}
	return doc, nil
}

// regionText flattens a content container to plain paragraphs.
func regionText(region *goquery.Selection) string {
	region.Find(noiseSelectors).Remove()

	var parts []string
	region.Find(textTags).Each(func(_ int, sel *goquery.Selection) {
		text := normalizeText(sel.Text())
		if text == "" {
			return
		}
		if sel.Is("li") || sel.Is("h2, h3") || len(text) > minParagraphLength {
			parts = append(parts, text)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	// No paragraph structure; fall back to the container's own text.
	return normalizeText(region.Text())
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
