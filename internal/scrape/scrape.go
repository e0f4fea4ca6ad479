package scrape

import (
	"context"
	"net/url"
	"strings"

	"github.com/taoi11/somenewsfound/internal/domain"
)

// Strategy captures a single site-specific extraction implementation.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, articleURL string, meta domain.ItemMeta) (string, error)
}

type entry struct {
	suffix   string
	strategy Strategy
}

// Registry maps article-URL hosts to extraction strategies. Entries are
// matched in registration order, first match wins, so no registered domain
// should be a suffix of another.
type Registry struct {
	entries []entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds a domain suffix (e.g. "cbc.ca") to a strategy.
func (r *Registry) Register(domainSuffix string, s Strategy) {
	r.entries = append(r.entries, entry{
		suffix:   strings.ToLower(strings.TrimPrefix(domainSuffix, ".")),
		strategy: s,
	})
}

// Resolve returns the strategy registered for the URL's host, or false when
// no registered domain matches. Callers treat a miss as "skip", not an error.
func (r *Registry) Resolve(articleURL string) (Strategy, bool) {
	u, err := url.Parse(articleURL)
	if err != nil {
		return nil, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, false
	}
	for _, e := range r.entries {
		if host == e.suffix || strings.HasSuffix(host, "."+e.suffix) {
			return e.strategy, true
		}
	}
	return nil, false
}
