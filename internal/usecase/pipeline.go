package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/ports"
)

// PipelineDeps wires the use cases and settings the refresh pipeline needs.
type PipelineDeps struct {
	Ingestor   *Ingestor
	Summarizer *Summarizer
	Notifier   ports.Notifier
	Sites      []config.SiteConfig
	HNEnabled  bool
	Logger     *slog.Logger
}

// Pipeline chains fetching and summarization for API refreshes and scheduled jobs.
type Pipeline struct {
	ingestor   *Ingestor
	summarizer *Summarizer
	notifier   ports.Notifier
	sites      []config.SiteConfig
	hnEnabled  bool
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		ingestor:   deps.Ingestor,
		summarizer: deps.Summarizer,
		notifier:   deps.Notifier,
		sites:      deps.Sites,
		hnEnabled:  deps.HNEnabled,
		logger:     logger.With("component", "pipeline"),
	}
}

// RefreshRequest is one on-demand refresh of a kind.
type RefreshRequest struct {
	Kind      domain.Kind
	Fetch     FetchOptions
	IncludeHN bool
	Summarize SummarizeOptions

	// SkipFetch and SkipSummarize run a single phase, for the CLI.
	SkipFetch     bool
	SkipSummarize bool
}

// RefreshReport is the synchronous refresh response body.
type RefreshReport struct {
	Updated    int            `json:"updated"`
	Fetched    map[string]int `json:"fetched"`
	Summarized int            `json:"summarized"`
}

// SiteKind resolves the table a site writes to. Sites without an explicit kind
// follow their scanner: arxiv → paper, hn → news, anything else → article.
func SiteKind(site config.SiteConfig) domain.Kind {
	if kind, err := domain.ParseKind(site.Kind); err == nil {
		return kind
	}
	switch site.Scanner {
	case config.ScannerArxiv:
		return domain.KindPaper
	case config.ScannerHN:
		return domain.KindNews
	default:
		return domain.KindArticle
	}
}

// SitesFor lists configured sites of kind in configured order. HN sites are
// included only when requested and enabled.
func (p *Pipeline) SitesFor(kind domain.Kind, includeHN bool) []config.SiteConfig {
	var out []config.SiteConfig
	for _, site := range p.sites {
		if SiteKind(site) != kind {
			continue
		}
		if site.Scanner == config.ScannerHN && (!includeHN || !p.hnEnabled) {
			continue
		}
		out = append(out, site)
	}
	return out
}

// Refresh fetches every site of the kind, then summarizes its queue. emit, when
// set, receives human-readable progress lines and always ends with "done".
func (p *Pipeline) Refresh(ctx context.Context, req RefreshRequest, emit func(string)) RefreshReport {
	if emit == nil {
		emit = func(string) {}
	}
	defer emit("done")

	report := RefreshReport{Fetched: map[string]int{}}
	emit("starting refresh")

	if !req.SkipFetch {
		p.fetchPhase(ctx, req, &report, emit)
	}
	if !req.SkipSummarize {
		report.Summarized = p.summarizePhase(ctx, req, emit)
	}

	p.logger.Info("refresh finished", "kind", req.Kind, "updated", report.Updated, "summarized", report.Summarized)
	return report
}

func (p *Pipeline) fetchPhase(ctx context.Context, req RefreshRequest, report *RefreshReport, emit func(string)) {
	fetchedSeq := 0
	for _, site := range p.SitesFor(req.Kind, req.IncludeHN) {
		emit(fmt.Sprintf("fetching %s...", site.Name))

		changed, err := p.ingestor.FetchSite(ctx, req.Kind, site, req.Fetch, func(ev domain.Progress) {
			switch ev.Kind {
			case domain.ProgressFeed, domain.ProgressInfo:
				emit("feed " + ev.Message)
			case domain.ProgressUpsert:
				fetchedSeq++
				emit(fmt.Sprintf("fetched #%d: %s", fetchedSeq, ev.Message))
			case domain.ProgressError:
				emit("fetch error: " + ev.Message)
			}
		})
		if err != nil {
			p.logger.Error("refresh site failed", "site", site.Name, "error", err)
			emit("fetch error: " + err.Error())
		}

		report.Fetched[site.Name] = len(changed)
		report.Updated += len(changed)
		emit(fmt.Sprintf("fetched %s %d items", site.Name, len(changed)))
	}
	emit(fmt.Sprintf("fetched total %d", report.Updated))
}

func (p *Pipeline) summarizePhase(ctx context.Context, req RefreshRequest, emit func(string)) int {
	emit("summarizing...")
	summarizedSeq := 0
	written, err := p.summarizer.Run(ctx, req.Kind, req.Summarize, func(ev domain.Progress) {
		switch ev.Kind {
		case domain.ProgressSummarized:
			summarizedSeq++
			emit(fmt.Sprintf("summarized #%d: %s", summarizedSeq, ev.Message))
		case domain.ProgressError:
			emit("error: " + ev.Message)
		}
	})
	if err != nil {
		p.logger.Error("refresh summarize failed", "kind", req.Kind, "error", err)
		emit("error: " + err.Error())
	}
	emit(fmt.Sprintf("summarized total %d", len(written)))
	return len(written)
}

// FetchScanners runs every site whose scanner is in scanners, across all kinds.
// It is the body of the scheduled fetch jobs.
func (p *Pipeline) FetchScanners(ctx context.Context, scanners ...string) (int, error) {
	wanted := map[string]bool{}
	for _, s := range scanners {
		wanted[s] = true
	}

	total := 0
	for _, site := range p.sites {
		if !wanted[site.Scanner] {
			continue
		}
		if site.Scanner == config.ScannerHN && !p.hnEnabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		changed, err := p.ingestor.FetchSite(ctx, SiteKind(site), site, FetchOptions{}, nil)
		if err != nil {
			p.logger.Error("scheduled fetch failed", "site", site.Name, "error", err)
			continue
		}
		total += len(changed)
	}
	return total, nil
}

// SummarizeAll sweeps every kind sequentially and publishes a digest of what
// was written when a notifier is configured.
func (p *Pipeline) SummarizeAll(ctx context.Context, limit int) (int, error) {
	var written []domain.Item
	for _, kind := range domain.Kinds() {
		items, err := p.summarizer.Run(ctx, kind, SummarizeOptions{Limit: limit, Concurrency: 1}, nil)
		if err != nil {
			return len(written), fmt.Errorf("summarize %s: %w", kind, err)
		}
		written = append(written, items...)
	}

	if len(written) == 0 || p.notifier == nil {
		return len(written), nil
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(written)); err != nil {
		return len(written), fmt.Errorf("publish digest: %w", err)
	}
	return len(written), nil
}

func buildDigestMessage(items []domain.Item) string {
	var b strings.Builder
	for _, item := range items {
		summary := ""
		if item.Summary != nil {
			summary = *item.Summary
		}
		fmt.Fprintf(&b, "- %s\n%s\n%s\n\n", item.Title, summary, item.URL)
	}
	return b.String()
}
