package parser

import (
	"context"
	"fmt"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/scanner"
)

// RSSScanner fetches generic RSS/Atom feeds, one target per configured category.
type RSSScanner struct {
	feeds *FeedFetcher
}

// NewRSSScanner wraps a shared feed fetcher.
func NewRSSScanner(feeds *FeedFetcher) *RSSScanner {
	return &RSSScanner{feeds: feeds}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Targets keeps the configured order of feed URLs.
func (r *RSSScanner) Targets(req scanner.Request) []scanner.Target {
	return categoryTargets(req)
}

// Fetch downloads a single feed.
func (r *RSSScanner) Fetch(ctx context.Context, target scanner.Target, _ domain.ProgressSink) ([]domain.Entry, error) {
	feed, err := r.feeds.Fetch(ctx, target.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", target.URL, err)
	}
	return toEntries(feed, fallbackLabel(target.Name, "rss")), nil
}

func categoryTargets(req scanner.Request) []scanner.Target {
	targets := make([]scanner.Target, 0, len(req.Categories))
	for _, cat := range req.Categories {
		if cat.URL == "" {
			continue
		}
		name := cat.Name
		if name == "" {
			name = req.SiteName
		}
		targets = append(targets, scanner.Target{Name: name, URL: cat.URL})
	}
	return targets
}

func fallbackLabel(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
