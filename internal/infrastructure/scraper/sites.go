package scraper

import "net/http"

// Concrete strategies. Each pairs the headers a site tolerates with the
// selector chain its markup needs, most specific container first.

// NewCBC extracts CBC News article bodies.
func NewCBC(client *http.Client) *SiteStrategy {
	return newStrategy("cbc", client,
		map[string]string{
			"User-Agent": browserUserAgent,
			"Accept":     "text/html,application/xhtml+xml",
		},
		[]string{
			"div.story",
			"div[data-cy='storyWrapper']",
			"article",
			"main",
		})
}

// NewGlobalNews extracts Global News article bodies.
func NewGlobalNews(client *http.Client) *SiteStrategy {
	return newStrategy("globalnews", client,
		map[string]string{
			"User-Agent": browserUserAgent,
		},
		[]string{
			"article .l-article__text",
			"div.l-article__body",
			"article",
			"main",
		})
}

// NewCTVNews extracts CTV News article bodies.
func NewCTVNews(client *http.Client) *SiteStrategy {
	return newStrategy("ctvnews", client,
		map[string]string{
			"User-Agent":      browserUserAgent,
			"Accept-Language": "en-CA,en;q=0.9",
		},
		[]string{
			"div.c-text",
			"div.article-text",
			"article",
			"main",
		})
}
