package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/infrastructure/ratelimit"
)

// DefaultUserAgent mimics a desktop browser; several publishers reject bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15"

const maxBodyBytes = 10 << 20

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FeedFetcher downloads and parses RSS/Atom documents.
type FeedFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *ratelimit.HostLimiter
	logger    *slog.Logger
}

// NewFeedFetcher wires an HTTP client; nil values fall back to sane defaults.
func NewFeedFetcher(client *http.Client, userAgent string, limiter *ratelimit.HostLimiter, logger *slog.Logger) *FeedFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedFetcher{client: client, userAgent: userAgent, limiter: limiter, logger: logger}
}

// Fetch returns the parsed feed at feedURL. Transport and HTTP status failures
// are returned; a body gofeed cannot parse is logged and yields an empty feed.
func (f *FeedFetcher) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		f.logger.Warn("feed parse error", "url", feedURL, "error", err)
		return &gofeed.Feed{}, nil
	}
	return feed, nil
}

func (f *FeedFetcher) get(ctx context.Context, rawURL string) (string, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return "", fmt.Errorf("rate limit %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s", rawURL, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(raw), nil
}

// toEntries normalizes gofeed items. The source label is the feed title, or
// fallbackSource when the feed has none.
func toEntries(feed *gofeed.Feed, fallbackSource string) []domain.Entry {
	if feed == nil {
		return nil
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = fallbackSource
	}

	entries := make([]domain.Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		description := item.Description
		if strings.TrimSpace(description) == "" {
			description = item.Content
		}
		entries = append(entries, domain.Entry{
			Title:       strings.TrimSpace(item.Title),
			URL:         strings.TrimSpace(item.Link),
			Description: strings.TrimSpace(description),
			PublishedAt: itemTime(item),
			Source:      source,
		})
	}
	return entries
}

// itemTime tries parsed timestamps first, then the raw strings as RFC-822 and
// ISO-8601. The first success wins.
func itemTime(item *gofeed.Item) *time.Time {
	for _, t := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if t != nil && !t.IsZero() {
			v := domain.NormalizeTime(*t)
			return &v
		}
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if t, ok := ParseTimestamp(raw); ok {
			return &t
		}
	}
	return nil
}

// ParseTimestamp accepts the RFC-822 family and common ISO-8601 layouts.
// Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(raw); err == nil {
		return domain.NormalizeTime(t), true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.NormalizeTime(t), true
		}
	}
	return time.Time{}, false
}
