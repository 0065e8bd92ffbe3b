package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/infrastructure/storage"
	"NewsAgent/internal/logging"
)

// scriptedRemote answers per title and tracks how many calls overlap.
type scriptedRemote struct {
	delay   time.Duration
	replies map[string]string
	panicOn string

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (s *scriptedRemote) Summarize(ctx context.Context, title, _ string) (string, error) {
	s.calls.Add(1)
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if cur <= peak || s.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	if title == s.panicOn {
		panic("remote exploded")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if reply, ok := s.replies[title]; ok {
		return reply, nil
	}
	return "", errors.New("model unavailable")
}

func seedItems(t *testing.T, repo *storage.Repository, kind domain.Kind, n int) []domain.Item {
	t.Helper()
	base := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	items := make([]domain.Item, 0, n)
	for i := 0; i < n; i++ {
		published := base.Add(time.Duration(i) * time.Hour)
		item, err := repo.Insert(context.Background(), kind, domain.Item{
			Title:       fmt.Sprintf("item %d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			Source:      "test",
			PublishedAt: &published,
			Description: strPtr(fmt.Sprintf("Sentence one of item %d. Sentence two. Sentence three.", i)),
		})
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func TestSummarizeSequentialKeepsQueueOrder(t *testing.T) {
	repo := newRepo(t)
	seedItems(t, repo, domain.KindNews, 3)

	remote := &scriptedRemote{replies: map[string]string{"item 1": "remote summary"}}
	s := NewSummarizer(SummarizeDeps{Repository: repo, Remote: remote, RemoteTimeout: time.Second, Logger: logging.Discard()})

	var titles []string
	written, err := s.Run(context.Background(), domain.KindNews, SummarizeOptions{Limit: 10}, func(p domain.Progress) {
		if p.Kind == domain.ProgressSummarized {
			titles = append(titles, p.Message)
		}
	})
	require.NoError(t, err)
	require.Len(t, written, 3)
	assert.Equal(t, []string{"item 2", "item 1", "item 0"}, titles)

	assert.Equal(t, "remote summary", *written[1].Summary)
	assert.Equal(t, "Sentence one of item 2. Sentence two.", *written[0].Summary)

	again, err := s.Run(context.Background(), domain.KindNews, SummarizeOptions{Limit: 10}, nil)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSummarizeRespectsLimit(t *testing.T) {
	repo := newRepo(t)
	seedItems(t, repo, domain.KindPaper, 5)

	s := NewSummarizer(SummarizeDeps{Repository: repo, Logger: logging.Discard()})
	written, err := s.Run(context.Background(), domain.KindPaper, SummarizeOptions{Limit: 2}, nil)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	pending, err := repo.ListUnsummarized(context.Background(), domain.KindPaper, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestSummarizeConcurrentWithTimingOutRemote(t *testing.T) {
	repo := newRepo(t)
	seedItems(t, repo, domain.KindArticle, 7)

	remote := &scriptedRemote{delay: time.Second}
	s := NewSummarizer(SummarizeDeps{Repository: repo, Remote: remote, RemoteTimeout: 30 * time.Millisecond, Logger: logging.Discard()})

	var (
		mu     sync.Mutex
		events int
	)
	written, err := s.Run(context.Background(), domain.KindArticle, SummarizeOptions{Limit: 10, Concurrency: 3}, func(p domain.Progress) {
		mu.Lock()
		defer mu.Unlock()
		if p.Kind == domain.ProgressSummarized {
			events++
		}
	})
	require.NoError(t, err)
	assert.Len(t, written, 7)
	assert.Equal(t, 7, events)
	assert.Equal(t, int32(7), remote.calls.Load())
	assert.LessOrEqual(t, remote.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, remote.peak.Load(), int32(2))

	for _, item := range written {
		require.NotNil(t, item.Summary)
		assert.Contains(t, *item.Summary, "Sentence one of")
	}

	pending, err := repo.ListUnsummarized(context.Background(), domain.KindArticle, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSummarizeConcurrentContainsPanics(t *testing.T) {
	repo := newRepo(t)
	seedItems(t, repo, domain.KindNews, 4)

	remote := &scriptedRemote{panicOn: "item 2", replies: map[string]string{"item 0": "a", "item 1": "b", "item 3": "c"}}
	s := NewSummarizer(SummarizeDeps{Repository: repo, Remote: remote, Logger: logging.Discard()})

	var errorsSeen atomic.Int32
	written, err := s.Run(context.Background(), domain.KindNews, SummarizeOptions{Limit: 10, Concurrency: 2}, func(p domain.Progress) {
		if p.Kind == domain.ProgressError {
			errorsSeen.Add(1)
		}
	})
	require.NoError(t, err)
	assert.Len(t, written, 3)
	assert.Equal(t, int32(1), errorsSeen.Load())

	pending, err := repo.ListUnsummarized(context.Background(), domain.KindNews, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "item 2", pending[0].Title)
}

func TestSummarizeSkipsAlreadySummarized(t *testing.T) {
	repo := newRepo(t)
	items := seedItems(t, repo, domain.KindNews, 1)

	// Another writer gets there between queue load and commit.
	racer := &racingRemote{repo: repo, id: items[0].ID}
	s := NewSummarizer(SummarizeDeps{Repository: repo, Remote: racer, Logger: logging.Discard()})

	written, err := s.Run(context.Background(), domain.KindNews, SummarizeOptions{Limit: 1}, nil)
	require.NoError(t, err)
	assert.Empty(t, written)

	stored, err := repo.FindByURL(context.Background(), domain.KindNews, items[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "first writer", *stored.Summary)
}

type racingRemote struct {
	repo *storage.Repository
	id   int64
}

func (r *racingRemote) Summarize(ctx context.Context, _, _ string) (string, error) {
	if _, err := r.repo.SetSummary(ctx, domain.KindNews, r.id, "first writer"); err != nil {
		return "", err
	}
	return "second writer", nil
}

func TestSummarizeEmptyRowSkipped(t *testing.T) {
	repo := newRepo(t)
	_, err := repo.Insert(context.Background(), domain.KindNews, domain.Item{URL: "https://example.com/blank", Source: "s"})
	require.NoError(t, err)

	s := NewSummarizer(SummarizeDeps{Repository: repo, Logger: logging.Discard()})
	written, err := s.Run(context.Background(), domain.KindNews, SummarizeOptions{}, nil)
	require.NoError(t, err)
	assert.Empty(t, written)
}
