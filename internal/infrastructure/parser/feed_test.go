package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAgent/internal/scanner"
)

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 11, 8, 10, 30, 0, 0, time.UTC)
	for _, raw := range []string{
		"Sat, 08 Nov 2025 10:30:00 +0000",
		"Sat, 08 Nov 2025 11:30:00 +0100",
		"8 Nov 2025 10:30:00 GMT",
		"2025-11-08T10:30:00Z",
		"2025-11-08T10:30:00.123Z",
		"2025-11-08T12:30:00+02:00",
		"2025-11-08T10:30:00",
		"2025-11-08 10:30:00",
	} {
		got, ok := ParseTimestamp(raw)
		require.True(t, ok, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
	}

	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)
	_, ok = ParseTimestamp("")
	assert.False(t, ok)
}

func TestItemTimePrefersParsedFields(t *testing.T) {
	t.Parallel()

	updated := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	item := &gofeed.Item{UpdatedParsed: &updated, Published: "2025-01-01T00:00:00Z"}
	got := itemTime(item)
	require.NotNil(t, got)
	assert.True(t, updated.Equal(*got))

	item = &gofeed.Item{Updated: "2025-01-03"}
	got = itemTime(item)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Day())

	assert.Nil(t, itemTime(&gofeed.Item{}))
}

func TestToEntriesLabels(t *testing.T) {
	t.Parallel()

	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: " A ", Link: "https://example.com/a", Content: "<p>body</p>"},
		nil,
	}}
	entries := toEntries(feed, "fallback")
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Title)
	assert.Equal(t, "fallback", entries[0].Source)
	assert.Equal(t, "<p>body</p>", entries[0].Description)

	feed.Title = "Example Blog"
	assert.Equal(t, "Example Blog", toEntries(feed, "fallback")[0].Source)
	assert.Nil(t, toEntries(nil, "x"))
}

func TestRSSScannerFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.xml":
			assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
			_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Lab Blog</title>
<item><title>New model</title><link>https://lab.example.com/post</link>
<description>We trained a model.</description><pubDate>Mon, 03 Nov 2025 09:00:00 GMT</pubDate></item>
<item><title>Undated</title><link>https://lab.example.com/undated</link></item>
</channel></rss>`))
		case "/garbage":
			_, _ = w.Write([]byte("not a feed"))
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	defer server.Close()

	rss := NewRSSScanner(newTestFetcher(server.Client()))
	req := scanner.Request{SiteName: "news-rss", Categories: []scanner.Category{
		{Name: "Lab", URL: server.URL + "/feed.xml"},
		{URL: ""},
		{URL: server.URL + "/garbage"},
	}}

	targets := rss.Targets(req)
	require.Len(t, targets, 2)
	assert.Equal(t, "news-rss", targets[1].Name)

	entries, err := rss.Fetch(context.Background(), targets[0], nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Lab Blog", entries[0].Source)
	assert.Equal(t, "We trained a model.", entries[0].Description)
	require.NotNil(t, entries[0].PublishedAt)
	assert.Nil(t, entries[1].PublishedAt)

	entries, err = rss.Fetch(context.Background(), targets[1], nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = rss.Fetch(context.Background(), scanner.Target{URL: server.URL + "/missing"}, nil)
	require.Error(t, err)
}
