package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/extractive"
	"NewsAgent/internal/metrics"
	"NewsAgent/internal/ports"
)

const (
	DefaultSummarizeLimit = 30
	DefaultRemoteTimeout  = 15 * time.Second

	producerRemote     = "remote"
	producerExtractive = "extractive"
)

// SummarizeOptions bounds one summarization run. Concurrency <= 1 runs the
// queue sequentially in order.
type SummarizeOptions struct {
	Limit       int
	Concurrency int
}

// SummarizeDeps wires the store and the remote summarizer.
type SummarizeDeps struct {
	Repository    ports.ItemRepository
	Remote        ports.TextSummarizer
	RemoteTimeout time.Duration
	Logger        *slog.Logger
}

// Summarizer fills in missing summaries, remote first with a local fallback.
type Summarizer struct {
	repository    ports.ItemRepository
	remote        ports.TextSummarizer
	remoteTimeout time.Duration
	logger        *slog.Logger
}

// NewSummarizer constructs the summarization use case. Remote may be nil.
func NewSummarizer(deps SummarizeDeps) *Summarizer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &Summarizer{
		repository:    deps.Repository,
		remote:        deps.Remote,
		remoteTimeout: timeout,
		logger:        logger.With("component", "summarizer"),
	}
}

type summaryResult struct {
	item     domain.Item
	text     string
	producer string
	elapsed  time.Duration
	err      error
}

// Run summarizes up to opts.Limit queued rows of kind and returns the rows it
// wrote, with Summary set. Per-row failures become error events.
func (s *Summarizer) Run(ctx context.Context, kind domain.Kind, opts SummarizeOptions, sink domain.ProgressSink) ([]domain.Item, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSummarizeLimit
	}

	queue, err := s.repository.ListUnsummarized(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if len(queue) == 0 {
		return nil, nil
	}

	s.logger.Debug("summarize run", "kind", kind, "queued", len(queue), "concurrency", opts.Concurrency)

	if opts.Concurrency <= 1 {
		return s.runSequential(ctx, kind, queue, sink), nil
	}
	return s.runConcurrent(ctx, kind, queue, opts.Concurrency, sink), nil
}

func (s *Summarizer) runSequential(ctx context.Context, kind domain.Kind, queue []domain.Item, sink domain.ProgressSink) []domain.Item {
	var written []domain.Item
	for _, item := range queue {
		if ctx.Err() != nil {
			break
		}
		if saved, ok := s.commit(ctx, kind, s.produce(ctx, item), sink); ok {
			written = append(written, saved)
		}
	}
	return written
}

// runConcurrent starts one task per row, at most n at a time. The calling
// goroutine is the only writer and commits in completion order.
func (s *Summarizer) runConcurrent(ctx context.Context, kind domain.Kind, queue []domain.Item, n int, sink domain.ProgressSink) []domain.Item {
	sem := semaphore.NewWeighted(int64(n))
	results := make(chan summaryResult)

	go func() {
		var wg sync.WaitGroup
		for _, item := range queue {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(item domain.Item) {
				defer wg.Done()
				defer sem.Release(1)
				metrics.SummarizeInFlight.Inc()
				defer metrics.SummarizeInFlight.Dec()
				results <- s.produce(ctx, item)
			}(item)
		}
		wg.Wait()
		close(results)
	}()

	var written []domain.Item
	for res := range results {
		if saved, ok := s.commit(ctx, kind, res, sink); ok {
			written = append(written, saved)
		}
	}
	return written
}

// produce never panics: a panicking remote call turns into an error result.
func (s *Summarizer) produce(ctx context.Context, item domain.Item) (res summaryResult) {
	started := time.Now()
	res.item = item
	defer func() {
		if r := recover(); r != nil {
			res = summaryResult{item: item, err: fmt.Errorf("summarizer panic: %v", r)}
		}
		res.elapsed = time.Since(started)
	}()

	if text := s.remoteSummary(ctx, item); text != "" {
		res.text, res.producer = text, producerRemote
		return res
	}
	res.text, res.producer = extractive.Summarize(item.Title, item.DescriptionText()), producerExtractive
	return res
}

func (s *Summarizer) remoteSummary(ctx context.Context, item domain.Item) string {
	if s.remote == nil {
		return ""
	}
	callCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	text, err := s.remote.Summarize(callCtx, item.Title, item.DescriptionText())
	if err != nil {
		s.logger.Warn("remote summary failed, using extractive", "id", item.ID, "error", err)
		return ""
	}
	return text
}

func (s *Summarizer) commit(ctx context.Context, kind domain.Kind, res summaryResult, sink domain.ProgressSink) (domain.Item, bool) {
	item := res.item
	if res.err != nil {
		s.logger.Error("summarize row failed", "kind", kind, "id", item.ID, "error", res.err)
		sink.Emit(domain.Progress{Kind: domain.ProgressError, Message: fmt.Sprintf("%s: %v", item.Title, res.err), Item: &item})
		return domain.Item{}, false
	}
	if res.text == "" {
		return domain.Item{}, false
	}

	changed, err := s.repository.SetSummary(ctx, kind, item.ID, res.text)
	if err != nil {
		s.logger.Error("persist summary failed", "kind", kind, "id", item.ID, "error", err)
		sink.Emit(domain.Progress{Kind: domain.ProgressError, Message: fmt.Sprintf("%s: %v", item.Title, err), Item: &item})
		return domain.Item{}, false
	}
	if !changed {
		s.logger.Debug("row already summarized", "kind", kind, "id", item.ID)
		return domain.Item{}, false
	}

	text := res.text
	item.Summary = &text
	metrics.RecordSummary(string(kind), res.producer, res.elapsed.Seconds())
	sink.Emit(domain.Progress{Kind: domain.ProgressSummarized, Message: item.Title, Item: &item})
	return item, true
}
