package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/scanner"
)

const (
	arxivBaseURL     = "https://arxiv.org"
	arxivAPIURL      = "https://export.arxiv.org/api/query"
	arxivSource      = "arXiv"
	defaultCategory  = "cs.AI"
	apiMaxResults    = 100
	listingPageSize  = 200
	listingMaxPages  = 3
	listingUserAgent = "NewsAgent/1.0"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner reads arXiv RSS feeds. When a feed comes back empty it tries,
// in order, the plain-http variant, the query API and the listing page.
type ArxivScanner struct {
	feeds    *FeedFetcher
	client   *http.Client
	apiURL   string
	baseURL  string
	pageSize int
}

// NewArxivScanner wires the shared feed fetcher; apiClient serves the query API
// and listing page and defaults to a 15s timeout.
func NewArxivScanner(feeds *FeedFetcher, apiClient *http.Client) *ArxivScanner {
	if apiClient == nil {
		apiClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ArxivScanner{
		feeds:    feeds,
		client:   apiClient,
		apiURL:   arxivAPIURL,
		baseURL:  arxivBaseURL,
		pageSize: listingPageSize,
	}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Targets keeps the configured order of feed URLs.
func (a *ArxivScanner) Targets(req scanner.Request) []scanner.Target {
	return categoryTargets(req)
}

// Fetch never fails outright once any stage produced entries; stage failures
// are reported as progress events.
func (a *ArxivScanner) Fetch(ctx context.Context, target scanner.Target, report domain.ProgressSink) ([]domain.Entry, error) {
	feed, primaryErr := a.feeds.Fetch(ctx, target.URL)
	if primaryErr != nil {
		report.Emit(domain.Progress{Kind: domain.ProgressError, Message: fmt.Sprintf("%s: %v", target.URL, primaryErr)})
	}
	if entries := toEntries(feed, arxivSource); len(entries) > 0 {
		return entries, nil
	}

	if insecure, ok := insecureVariant(target.URL); ok {
		feed, err := a.feeds.Fetch(ctx, insecure)
		if err == nil {
			if entries := toEntries(feed, arxivSource); len(entries) > 0 {
				report.Emit(domain.Progress{Kind: domain.ProgressInfo, Message: fmt.Sprintf("http entries %d", len(entries))})
				return entries, nil
			}
		}
	}

	category := categoryFromURL(target.URL)

	apiEntries, err := a.fetchAPI(ctx, category)
	if err != nil {
		report.Emit(domain.Progress{Kind: domain.ProgressError, Message: fmt.Sprintf("api fallback error: %v", err)})
	} else {
		report.Emit(domain.Progress{Kind: domain.ProgressInfo, Message: fmt.Sprintf("api entries %d", len(apiEntries))})
		if len(apiEntries) > 0 {
			return apiEntries, nil
		}
	}

	listed, err := a.fetchListing(ctx, category)
	if err != nil {
		report.Emit(domain.Progress{Kind: domain.ProgressError, Message: fmt.Sprintf("listing fallback error: %v", err)})
	} else {
		report.Emit(domain.Progress{Kind: domain.ProgressInfo, Message: fmt.Sprintf("listing entries %d", len(listed))})
	}
	return listed, nil
}

func (a *ArxivScanner) fetchAPI(ctx context.Context, category string) ([]domain.Entry, error) {
	apiURL := fmt.Sprintf("%s?search_query=cat:%s&sortBy=submittedDate&sortOrder=descending&max_results=%d",
		a.apiURL, url.QueryEscape(category), apiMaxResults)

	body, err := a.get(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse api response: %w", err)
	}
	// The API feed title is the query string, not a useful label.
	feed.Title = ""
	return toEntries(feed, arxivSource), nil
}

// fetchListing walks /list/<category>/pastweek pages until a short page.
func (a *ArxivScanner) fetchListing(ctx context.Context, category string) ([]domain.Entry, error) {
	listURL := fmt.Sprintf("%s/list/%s/pastweek", strings.TrimSuffix(a.baseURL, "/"), category)

	var results []domain.Entry
	seen := map[string]struct{}{}
	for page, skip := 0, 0; page < listingMaxPages; page, skip = page+1, skip+a.pageSize {
		pageURL, err := buildPageURL(listURL, skip, a.pageSize)
		if err != nil {
			return nil, err
		}

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return results, err
		}

		entries, processed := a.extractEntries(doc)
		for _, e := range entries {
			if _, ok := seen[e.URL]; ok {
				continue
			}
			seen[e.URL] = struct{}{}
			results = append(results, e)
		}
		if processed < a.pageSize {
			break
		}
	}
	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := a.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (a *ArxivScanner) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := a.feeds.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", listingUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}
	return resp.Body, nil
}

// extractEntries returns parsed entries and how many <dt> rows the page held.
func (a *ArxivScanner) extractEntries(doc *goquery.Document) ([]domain.Entry, int) {
	var (
		collected []domain.Entry
		processed int
	)

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		heading := strings.TrimSpace(dl.PrevAllFiltered("h3").First().Text())
		dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			processed++
			entry, ok := parseEntry(dt, dt.Next(), heading)
			if ok {
				collected = append(collected, entry)
			}
		})
	})

	return collected, processed
}

// parseEntry reads one listing row. Dates come from the row itself or the
// day heading above its list; rows without either stay undated.
func parseEntry(dt, dd *goquery.Selection, heading string) (domain.Entry, bool) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := link.Attr("href")
	if href == "" {
		return domain.Entry{}, false
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}
	if dateText == "" {
		dateText = heading
	}

	var publishedAt *time.Time
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = &parsed
		}
	}

	return domain.Entry{
		Title:       title,
		URL:         href,
		Description: abstract,
		PublishedAt: publishedAt,
		Source:      arxivSource,
	}, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// categoryFromURL takes the path segment after /rss/; cs.AI otherwise.
func categoryFromURL(feedURL string) string {
	_, after, found := strings.Cut(feedURL, "/rss/")
	if !found {
		return defaultCategory
	}
	after, _, _ = strings.Cut(after, "?")
	after = strings.Trim(after, "/")
	if after == "" {
		return defaultCategory
	}
	return after
}

func insecureVariant(feedURL string) (string, bool) {
	parsed, err := url.Parse(feedURL)
	if err != nil || parsed.Scheme != "https" || !strings.HasSuffix(parsed.Hostname(), "arxiv.org") {
		return "", false
	}
	parsed.Scheme = "http"
	return parsed.String(), true
}
