package domain

import (
	"strings"
	"time"
)

// Source is a registered feed endpoint plus the identifier of the table its
// articles land in. TableID is derived from ChannelName once, at creation
// time, and never recomputed afterwards.
type Source struct {
	ID          int64
	URL         string
	ChannelName string
	TableID     string
}

// Feed is the normalized in-memory form of a fetched syndication document.
type Feed struct {
	ChannelTitle string
	Items        []FeedItem
}

// FeedItem is one entry of a fetched feed. PublishedAt is nil when the feed
// omits a publish date. RawBody carries the full-content extension when the
// feed provides one, otherwise the plain description.
type FeedItem struct {
	URL         string
	Title       string
	PublishedAt *time.Time
	RawBody     string
	Categories  []string
}

// ItemMeta is the per-article metadata handed to extraction strategies.
type ItemMeta struct {
	Title      string
	Categories []string
}

// Article is one row of a per-source table. Content stays nil until the
// enrichment stage writes it, and is never reset afterwards.
type Article struct {
	ID          int64
	URL         string
	Title       string
	DateAdded   time.Time
	ScrapeCheck int
	Content     *string
	Summary     *string
}

// Sentinel content values stored for items classified as non-text media from
// their feed categories. These bypass the scrape entirely.
const (
	VideoContent   = "video content"
	PodcastContent = "podcast content"
)

// MediaSentinel classifies an item from its feed categories. The returned
// sentinel replaces scraped content when ok is true.
func MediaSentinel(categories []string) (string, bool) {
	for _, c := range categories {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "video", "videos":
			return VideoContent, true
		case "podcast", "podcasts":
			return PodcastContent, true
		}
	}
	return "", false
}
