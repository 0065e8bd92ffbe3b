package ports

import (
	"context"
	"time"

	"NewsAgent/internal/domain"
)

// ItemRepository persists papers, news and articles keyed by kind.
type ItemRepository interface {
	FindByURL(ctx context.Context, kind domain.Kind, url string) (domain.Item, error)
	Insert(ctx context.Context, kind domain.Kind, item domain.Item) (domain.Item, error)
	Update(ctx context.Context, kind domain.Kind, item domain.Item) error
	ListUnsummarized(ctx context.Context, kind domain.Kind, limit int) ([]domain.Item, error)
	SetSummary(ctx context.Context, kind domain.Kind, id int64, summary string) (bool, error)
	List(ctx context.Context, kind domain.Kind, filter domain.ListFilter) ([]domain.Item, error)
	Sources(ctx context.Context, kind domain.Kind) ([]string, error)
}

// RelevanceJudge asks a remote model whether content is on topic.
type RelevanceJudge interface {
	IsRelevant(ctx context.Context, title, description string) (bool, error)
}

// TextSummarizer generates a short summary for an item.
type TextSummarizer interface {
	Summarize(ctx context.Context, title, description string) (string, error)
}

// ChatRequest is a single chat-completion call.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Notifier streams digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// RunLock guards a named job against overlapping runs.
type RunLock interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Add(job Job)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
