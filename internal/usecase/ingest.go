package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/metrics"
	"NewsAgent/internal/ports"
	"NewsAgent/internal/relevance"
	"NewsAgent/internal/scanner"
)

// UpsertResult describes what the upsert engine did with one entry.
type UpsertResult int

const (
	UpsertUnchanged UpsertResult = iota
	UpsertInserted
	UpsertUpdated
	UpsertFailed
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertFailed:
		return "failed"
	default:
		return "unchanged"
	}
}

// Changed reports whether the entry produced a row write.
func (r UpsertResult) Changed() bool {
	return r == UpsertInserted || r == UpsertUpdated
}

// FetchOptions are the per-run knobs a refresh request may override.
type FetchOptions struct {
	// MaxAgeDays nil means "use the configured default"; 0 disables the cutoff.
	MaxAgeDays  *int
	HNTerms     []string
	HNMinPoints *int
}

// IngestDeps wires the driven adapters into the ingest use case.
type IngestDeps struct {
	Repository        ports.ItemRepository
	Registry          *scanner.Registry
	Classifier        *relevance.Classifier
	DefaultMaxAgeDays int
	Logger            *slog.Logger
	Now               func() time.Time
}

// Ingestor drives every fetch strategy the same way and feeds the upsert engine.
type Ingestor struct {
	repository        ports.ItemRepository
	registry          *scanner.Registry
	classifier        *relevance.Classifier
	defaultMaxAgeDays int
	logger            *slog.Logger
	now               func() time.Time
}

// NewIngestor constructs the ingest use case.
func NewIngestor(deps IngestDeps) *Ingestor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Ingestor{
		repository:        deps.Repository,
		registry:          deps.Registry,
		classifier:        deps.Classifier,
		defaultMaxAgeDays: deps.DefaultMaxAgeDays,
		logger:            logger.With("component", "ingest"),
		now:               now,
	}
}

// Cutoff returns the oldest accepted publication time, or nil when no cutoff applies.
func (i *Ingestor) Cutoff(opts FetchOptions) *time.Time {
	days := i.defaultMaxAgeDays
	if opts.MaxAgeDays != nil {
		days = *opts.MaxAgeDays
	}
	if days <= 0 {
		return nil
	}
	cutoff := i.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return &cutoff
}

// FetchSite runs every target of one configured site and returns the rows that
// were inserted or updated. Target failures are reported and skipped; only a
// misconfigured site returns an error.
func (i *Ingestor) FetchSite(ctx context.Context, kind domain.Kind, site config.SiteConfig, opts FetchOptions, sink domain.ProgressSink) ([]domain.Item, error) {
	strategy, err := i.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}

	req := scanner.Request{
		SiteName:    site.Name,
		Categories:  toScannerCategories(site.Categories),
		Options:     site.Options,
		HNTerms:     opts.HNTerms,
		HNMinPoints: opts.HNMinPoints,
	}
	cutoff := i.Cutoff(opts)
	seen := map[string]struct{}{}

	var changed []domain.Item
	for _, target := range strategy.Targets(req) {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		sink.Emit(domain.Progress{Kind: domain.ProgressFeed, Message: target.String()})

		entries, err := strategy.Fetch(ctx, target, sink)
		metrics.RecordFetch(strategy.Name(), len(entries), err)
		if err != nil {
			i.logger.Warn("fetch target failed", "site", site.Name, "target", target.URL, "error", err)
			sink.Emit(domain.Progress{Kind: domain.ProgressError, Message: err.Error()})
			entries = nil
		}
		sink.Emit(domain.Progress{Kind: domain.ProgressInfo, Message: fmt.Sprintf("entries %d", len(entries))})

		for _, entry := range entries {
			if entry.URL == "" {
				continue
			}
			if _, dup := seen[entry.URL]; dup {
				continue
			}
			seen[entry.URL] = struct{}{}

			if !Admit(entry, cutoff) {
				metrics.RecordFiltered("cutoff")
				continue
			}
			if i.classifier.Enabled() {
				if verdict := i.classifier.Allow(ctx, entry.Title, entry.Description); !verdict.Include {
					metrics.RecordFiltered(string(verdict.Reason))
					continue
				}
			}

			item, result, err := i.Upsert(ctx, kind, entry)
			if err != nil {
				sink.Emit(domain.Progress{Kind: domain.ProgressError, Message: err.Error()})
				continue
			}
			if result.Changed() {
				changed = append(changed, item)
				sink.Emit(domain.Progress{Kind: domain.ProgressUpsert, Message: item.Title, Item: &item})
			}
		}
	}

	i.logger.Info("site fetched", "site", site.Name, "kind", kind, "changed", len(changed))
	return changed, nil
}

// Admit applies the age cutoff: with a cutoff, undated entries and entries
// strictly older than it are rejected.
func Admit(entry domain.Entry, cutoff *time.Time) bool {
	if cutoff == nil {
		return true
	}
	if entry.PublishedAt == nil {
		return false
	}
	return !entry.PublishedAt.Before(*cutoff)
}

// Upsert inserts a new row or refreshes an existing one keyed by URL. A failed
// write returns UpsertFailed and leaves other rows untouched.
func (i *Ingestor) Upsert(ctx context.Context, kind domain.Kind, entry domain.Entry) (domain.Item, UpsertResult, error) {
	hash := domain.Fingerprint(entry.Title, entry.URL, entry.Description)
	published := normalizePtr(entry.PublishedAt)

	existing, err := i.repository.FindByURL(ctx, kind, entry.URL)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		item := domain.Item{
			Title:       entry.Title,
			URL:         entry.URL,
			Source:      entry.Source,
			PublishedAt: published,
			Description: optionalString(entry.Description),
			ContentHash: hash,
		}
		saved, err := i.repository.Insert(ctx, kind, item)
		if err != nil {
			i.logger.Warn("insert failed", "kind", kind, "url", entry.URL, "error", err)
			metrics.RecordUpsert(string(kind), UpsertFailed.String())
			return domain.Item{}, UpsertFailed, err
		}
		metrics.RecordUpsert(string(kind), UpsertInserted.String())
		return saved, UpsertInserted, nil
	case err != nil:
		metrics.RecordUpsert(string(kind), UpsertFailed.String())
		return domain.Item{}, UpsertFailed, fmt.Errorf("lookup %s: %w", entry.URL, err)
	}

	updated, changed := applyEntry(existing, entry, published, hash)
	if !changed {
		metrics.RecordUpsert(string(kind), UpsertUnchanged.String())
		return existing, UpsertUnchanged, nil
	}

	updated.UpdatedAt = domain.NormalizeTime(i.now())
	if err := i.repository.Update(ctx, kind, updated); err != nil {
		i.logger.Warn("update failed", "kind", kind, "url", entry.URL, "error", err)
		metrics.RecordUpsert(string(kind), UpsertFailed.String())
		return domain.Item{}, UpsertFailed, err
	}
	metrics.RecordUpsert(string(kind), UpsertUpdated.String())
	return updated, UpsertUpdated, nil
}

// applyEntry merges incoming fields into a stored row. The summary is never touched.
func applyEntry(existing domain.Item, entry domain.Entry, published *time.Time, hash string) (domain.Item, bool) {
	changed := false
	if entry.Description != "" && entry.Description != existing.DescriptionText() {
		existing.Description = optionalString(entry.Description)
		changed = true
	}
	if published != nil && (existing.PublishedAt == nil || !existing.PublishedAt.Equal(*published)) {
		existing.PublishedAt = published
		changed = true
	}
	if hash != existing.ContentHash {
		existing.ContentHash = hash
		changed = true
	}
	if changed && entry.Title != "" {
		existing.Title = entry.Title
	}
	return existing, changed
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func normalizePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := domain.NormalizeTime(*t)
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
