package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time {
	t = domain.NormalizeTime(t)
	return &t
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.Migrate(context.Background()))
}

func TestInsertAndFindByURL(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	published := timePtr(time.Date(2025, 11, 8, 10, 30, 0, 0, time.UTC))
	saved, err := repo.Insert(ctx, domain.KindPaper, domain.Item{
		Title:       "Sample Title",
		URL:         "https://arxiv.org/abs/1234.56789",
		Source:      "arxiv",
		PublishedAt: published,
		Description: strPtr("Sample abstract."),
		ContentHash: "abc",
	})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	found, err := repo.FindByURL(ctx, domain.KindPaper, saved.URL)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)
	assert.Equal(t, "Sample Title", found.Title)
	require.NotNil(t, found.PublishedAt)
	assert.True(t, published.Equal(*found.PublishedAt))
	assert.Equal(t, "Sample abstract.", found.DescriptionText())
	assert.Nil(t, found.Summary)

	_, err = repo.FindByURL(ctx, domain.KindNews, saved.URL)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertDuplicateURLFails(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	item := domain.Item{Title: "a", URL: "https://example.com/a", Source: "s"}
	_, err := repo.Insert(ctx, domain.KindNews, item)
	require.NoError(t, err)

	_, err = repo.Insert(ctx, domain.KindNews, item)
	require.Error(t, err)

	items, err := repo.List(ctx, domain.KindNews, domain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUpdateKeepsSummary(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	saved, err := repo.Insert(ctx, domain.KindArticle, domain.Item{Title: "old", URL: "https://example.com/x", Source: "s", ContentHash: "h1"})
	require.NoError(t, err)

	changed, err := repo.SetSummary(ctx, domain.KindArticle, saved.ID, "kept summary")
	require.NoError(t, err)
	require.True(t, changed)

	saved.Title = "new"
	saved.Description = strPtr("fresh")
	saved.ContentHash = "h2"
	saved.UpdatedAt = domain.NormalizeTime(time.Now().Add(time.Hour))
	require.NoError(t, repo.Update(ctx, domain.KindArticle, saved))

	found, err := repo.FindByURL(ctx, domain.KindArticle, saved.URL)
	require.NoError(t, err)
	assert.Equal(t, "new", found.Title)
	assert.Equal(t, "h2", found.ContentHash)
	require.NotNil(t, found.Summary)
	assert.Equal(t, "kept summary", *found.Summary)
}

func TestUpdateMissingRow(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.Update(context.Background(), domain.KindNews, domain.Item{ID: 42, Title: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetSummaryOnlyOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	saved, err := repo.Insert(ctx, domain.KindNews, domain.Item{Title: "t", URL: "https://example.com/t", Source: "s"})
	require.NoError(t, err)

	changed, err := repo.SetSummary(ctx, domain.KindNews, saved.ID, "first")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetSummary(ctx, domain.KindNews, saved.ID, "second")
	require.NoError(t, err)
	assert.False(t, changed)

	found, err := repo.FindByURL(ctx, domain.KindNews, saved.URL)
	require.NoError(t, err)
	assert.Equal(t, "first", *found.Summary)
}

func TestListUnsummarizedOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	insert := func(url string, published *time.Time) domain.Item {
		item, err := repo.Insert(ctx, domain.KindNews, domain.Item{Title: url, URL: url, Source: "s", PublishedAt: published})
		require.NoError(t, err)
		return item
	}

	undated := insert("undated", nil)
	older := insert("older", timePtr(base))
	newer := insert("newer", timePtr(base.Add(24*time.Hour)))
	done := insert("done", timePtr(base.Add(48*time.Hour)))
	_, err := repo.SetSummary(ctx, domain.KindNews, done.ID, "x")
	require.NoError(t, err)

	queue, err := repo.ListUnsummarized(ctx, domain.KindNews, 10)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, []string{newer.URL, older.URL, undated.URL}, []string{queue[0].URL, queue[1].URL, queue[2].URL})

	limited, err := repo.ListUnsummarized(ctx, domain.KindNews, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.URL, limited[0].URL)
}

func TestListFiltersAndSources(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		source := "hn"
		if i%2 == 0 {
			source = "rss"
		}
		item, err := repo.Insert(ctx, domain.KindNews, domain.Item{
			Title:       fmt.Sprintf("OpenAI Update %d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			Source:      source,
			PublishedAt: timePtr(base.Add(time.Duration(i) * time.Hour)),
		})
		require.NoError(t, err)
		if i == 4 {
			_, err = repo.SetSummary(ctx, domain.KindNews, item.ID, "s")
			require.NoError(t, err)
		}
	}

	all, err := repo.List(ctx, domain.KindNews, domain.ListFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "https://example.com/4", all[0].URL)

	page, err := repo.List(ctx, domain.KindNews, domain.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "https://example.com/3", page[0].URL)

	rss, err := repo.List(ctx, domain.KindNews, domain.ListFilter{Source: "rss"})
	require.NoError(t, err)
	assert.Len(t, rss, 3)

	byTitle, err := repo.List(ctx, domain.KindNews, domain.ListFilter{Title: "openai update 2"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "https://example.com/2", byTitle[0].URL)

	summarized, err := repo.List(ctx, domain.KindNews, domain.ListFilter{OnlySummarized: true})
	require.NoError(t, err)
	require.Len(t, summarized, 1)

	sources, err := repo.Sources(ctx, domain.KindNews)
	require.NoError(t, err)
	assert.Equal(t, []string{"hn", "rss"}, sources)

	empty, err := repo.Sources(ctx, domain.KindPaper)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListTitleSearchNonASCII(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i, title := range []string{"Über neue Modelle", "GPT News"} {
		_, err := repo.Insert(ctx, domain.KindNews, domain.Item{
			Title:  title,
			URL:    fmt.Sprintf("https://example.com/ü/%d", i),
			Source: "rss",
		})
		require.NoError(t, err)
	}

	umlaut, err := repo.List(ctx, domain.KindNews, domain.ListFilter{Title: "Über"})
	require.NoError(t, err)
	require.Len(t, umlaut, 1)
	assert.Equal(t, "Über neue Modelle", umlaut[0].Title)

	for _, q := range []string{"GPT", "gpt"} {
		rows, err := repo.List(ctx, domain.KindNews, domain.ListFilter{Title: q})
		require.NoError(t, err)
		require.Len(t, rows, 1, q)
		assert.Equal(t, "GPT News", rows[0].Title)
	}

	byURL, err := repo.List(ctx, domain.KindNews, domain.ListFilter{URL: "/ü/1"})
	require.NoError(t, err)
	require.Len(t, byURL, 1)
	assert.Equal(t, "GPT News", byURL[0].Title)
}

func TestListSearchTreatsWildcardsLiterally(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	titles := []string{"100% accurate", "1000 tokens", "snake_case api", "snakeXcase api", `C:\models`}
	for i, title := range titles {
		_, err := repo.Insert(ctx, domain.KindArticle, domain.Item{
			Title:  title,
			URL:    fmt.Sprintf("https://example.com/%d", i),
			Source: "rss",
		})
		require.NoError(t, err)
	}

	cases := map[string]string{
		"0%":     "100% accurate",
		"e_c":    "snake_case api",
		`:\m`:    `C:\models`,
		"100% A": "100% accurate",
	}
	for q, want := range cases {
		rows, err := repo.List(ctx, domain.KindArticle, domain.ListFilter{Title: q})
		require.NoError(t, err)
		require.Len(t, rows, 1, q)
		assert.Equal(t, want, rows[0].Title, q)
	}

	percent, err := repo.List(ctx, domain.KindArticle, domain.ListFilter{Title: "%"})
	require.NoError(t, err)
	require.Len(t, percent, 1)
	assert.Equal(t, "100% accurate", percent[0].Title)
}
