package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/infrastructure/ratelimit"
	"NewsAgent/internal/scanner"
)

const (
	hnSource      = "Hacker News"
	hnUserAgent   = "ai-news-agent/1.0"
	hnHitsPerPage = 50
	hnItemURL     = "https://news.ycombinator.com/item?id="
)

// DefaultHNTerms is used when neither the request, the site nor config name any.
var DefaultHNTerms = []string{
	"AI", "LLM", "machine learning", "deep learning", "NLP", "OpenAI", "人工智能", "大模型",
}

// HNScanner queries the Algolia Hacker News API: one search per term, then the
// front page.
type HNScanner struct {
	client    *http.Client
	limiter   *ratelimit.HostLimiter
	baseURL   string
	terms     []string
	minPoints int
}

// NewHNScanner builds the strategy from the hn config section.
func NewHNScanner(client *http.Client, limiter *ratelimit.HostLimiter, cfg config.HNConfig) *HNScanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://hn.algolia.com/api/v1"
	}
	return &HNScanner{
		client:    client,
		limiter:   limiter,
		baseURL:   base,
		terms:     cfg.QueryTerms,
		minPoints: cfg.MinPointsFloor(),
	}
}

// Name identifies the strategy inside the registry.
func (h *HNScanner) Name() string {
	return "hn"
}

// Targets carries the minimum points floor on each target so Fetch stays
// stateless across concurrent refreshes.
func (h *HNScanner) Targets(req scanner.Request) []scanner.Target {
	minPoints := h.minPoints
	if req.HNMinPoints != nil {
		minPoints = *req.HNMinPoints
	}

	terms := h.resolveTerms(req)
	targets := make([]scanner.Target, 0, len(terms)+1)
	for _, term := range terms {
		q := url.Values{}
		q.Set("query", term)
		q.Set("tags", "story")
		q.Set("hitsPerPage", strconv.Itoa(hnHitsPerPage))
		q.Set("page", "0")
		targets = append(targets, scanner.Target{Name: term, URL: h.baseURL + "/search_by_date?" + q.Encode(), MinScore: minPoints})
	}

	q := url.Values{}
	q.Set("tags", "front_page")
	q.Set("hitsPerPage", strconv.Itoa(hnHitsPerPage))
	q.Set("page", "0")
	targets = append(targets, scanner.Target{Name: "front_page", URL: h.baseURL + "/search?" + q.Encode(), MinScore: minPoints})
	return targets
}

func (h *HNScanner) resolveTerms(req scanner.Request) []string {
	if len(req.HNTerms) > 0 {
		return req.HNTerms
	}
	if raw := req.Options["terms"]; raw != "" {
		if terms := config.SplitTerms(raw); len(terms) > 0 {
			return terms
		}
	}
	if len(h.terms) > 0 {
		return h.terms
	}
	return DefaultHNTerms
}

type hnResponse struct {
	Hits []hnHit `json:"hits"`
}

type hnHit struct {
	ObjectID   string `json:"objectID"`
	Title      string `json:"title"`
	StoryTitle string `json:"story_title"`
	URL        string `json:"url"`
	StoryURL   string `json:"story_url"`
	CreatedAt  string `json:"created_at"`
	CreatedAtI *int64 `json:"created_at_i"`
	Points     *int   `json:"points"`
}

// Fetch queries one endpoint and maps hits to entries.
func (h *HNScanner) Fetch(ctx context.Context, target scanner.Target, _ domain.ProgressSink) ([]domain.Entry, error) {
	if err := h.limiter.Wait(ctx, target.URL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", hnUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hn %s: %w", target.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn %s returned %s", target.Name, resp.Status)
	}

	var decoded hnResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode hn response: %w", err)
	}

	entries := make([]domain.Entry, 0, len(decoded.Hits))
	for _, hit := range decoded.Hits {
		if hit.Points != nil && *hit.Points < target.MinScore {
			continue
		}
		entries = append(entries, hit.toEntry())
	}
	return entries, nil
}

func (hit hnHit) toEntry() domain.Entry {
	title := hit.Title
	if title == "" {
		title = hit.StoryTitle
	}
	link := hit.URL
	if link == "" {
		link = hit.StoryURL
	}
	if link == "" && hit.ObjectID != "" {
		link = hnItemURL + hit.ObjectID
	}

	return domain.Entry{
		Title:       strings.TrimSpace(title),
		URL:         link,
		PublishedAt: hit.publishedAt(),
		Source:      hnSource,
	}
}

func (hit hnHit) publishedAt() *time.Time {
	if hit.CreatedAtI != nil {
		t := domain.NormalizeTime(time.Unix(*hit.CreatedAtI, 0))
		return &t
	}
	if t, ok := ParseTimestamp(hit.CreatedAt); ok {
		return &t
	}
	return nil
}
