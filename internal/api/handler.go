package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	maxAgeDaysLimit      = 90
	maxSummarizeLimit    = 500
	maxSummarizeParallel = 20
)

type handler struct {
	items     ItemReader
	refresher Refresher
	logger    *slog.Logger
}

type listQuery struct {
	Limit          *int   `form:"limit"`
	Offset         *int   `form:"offset"`
	Source         string `form:"source"`
	Q              string `form:"q"`
	Domain         string `form:"domain"`
	OnlySummarized bool   `form:"only_summarized"`
}

func (q listQuery) filter() (domain.ListFilter, error) {
	f := domain.ListFilter{
		Limit:          defaultListLimit,
		Source:         q.Source,
		Title:          q.Q,
		URL:            q.Domain,
		OnlySummarized: q.OnlySummarized,
	}
	if q.Limit != nil {
		if *q.Limit < 1 || *q.Limit > maxListLimit {
			return f, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
		}
		f.Limit = *q.Limit
	}
	if q.Offset != nil {
		if *q.Offset < 0 {
			return f, fmt.Errorf("offset must be >= 0")
		}
		f.Offset = *q.Offset
	}
	return f, nil
}

type refreshQuery struct {
	MaxAgeDays           *int   `form:"max_age_days"`
	IncludeHN            *bool  `form:"include_hn"`
	HNMinPoints          *int   `form:"hn_min_points"`
	HNTerms              string `form:"hn_terms"`
	SummarizeLimit       *int   `form:"summarize_limit"`
	SummarizeConcurrency *int   `form:"summarize_concurrency"`
}

func (q refreshQuery) request(kind domain.Kind) (usecase.RefreshRequest, error) {
	req := usecase.RefreshRequest{
		Kind:      kind,
		IncludeHN: kind == domain.KindNews,
		Summarize: usecase.SummarizeOptions{Limit: usecase.DefaultSummarizeLimit, Concurrency: 1},
	}

	if q.MaxAgeDays != nil {
		if *q.MaxAgeDays < 0 || *q.MaxAgeDays > maxAgeDaysLimit {
			return req, fmt.Errorf("max_age_days must be between 0 and %d", maxAgeDaysLimit)
		}
		req.Fetch.MaxAgeDays = q.MaxAgeDays
	}
	if q.IncludeHN != nil {
		req.IncludeHN = *q.IncludeHN
	}
	if q.HNMinPoints != nil {
		if *q.HNMinPoints < 0 {
			return req, fmt.Errorf("hn_min_points must be >= 0")
		}
		req.Fetch.HNMinPoints = q.HNMinPoints
	}
	req.Fetch.HNTerms = config.SplitTerms(q.HNTerms)

	if q.SummarizeLimit != nil {
		if *q.SummarizeLimit < 1 || *q.SummarizeLimit > maxSummarizeLimit {
			return req, fmt.Errorf("summarize_limit must be between 1 and %d", maxSummarizeLimit)
		}
		req.Summarize.Limit = *q.SummarizeLimit
	}
	if q.SummarizeConcurrency != nil {
		if *q.SummarizeConcurrency < 1 || *q.SummarizeConcurrency > maxSummarizeParallel {
			return req, fmt.Errorf("summarize_concurrency must be between 1 and %d", maxSummarizeParallel)
		}
		req.Summarize.Concurrency = *q.SummarizeConcurrency
	}
	return req, nil
}

// list: GET /api/{kind}?limit=&offset=&source=&q=&domain=&only_summarized=
func (h *handler) list(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
			return
		}
		filter, err := q.filter()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items, err := h.items.List(c.Request.Context(), kind, filter)
		if err != nil {
			h.logger.Error("list items failed", "kind", kind, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
			return
		}
		if items == nil {
			items = []domain.Item{}
		}
		c.JSON(http.StatusOK, items)
	}
}

// sources: GET /api/{kind}/sources
func (h *handler) sources(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sources, err := h.items.Sources(c.Request.Context(), kind)
		if err != nil {
			h.logger.Error("list sources failed", "kind", kind, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sources failed"})
			return
		}
		if sources == nil {
			sources = []string{}
		}
		c.JSON(http.StatusOK, sources)
	}
}

func bindRefresh(c *gin.Context, kind domain.Kind) (usecase.RefreshRequest, bool) {
	var q refreshQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return usecase.RefreshRequest{}, false
	}
	req, err := q.request(kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return usecase.RefreshRequest{}, false
	}
	return req, true
}

// refresh: POST /api/{kind}/refresh
func (h *handler) refresh(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindRefresh(c, kind)
		if !ok {
			return
		}
		runID := uuid.NewString()
		h.logger.Info("refresh started", "run", runID, "kind", kind)

		report := h.refresher.Refresh(context.WithoutCancel(c.Request.Context()), req, nil)
		c.JSON(http.StatusOK, report)
	}
}

// refreshStream: GET /api/{kind}/refresh/stream, one "data: <line>" event per
// progress line. The refresh keeps running if the client goes away.
func (h *handler) refreshStream(kind domain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindRefresh(c, kind)
		if !ok {
			return
		}
		runID := uuid.NewString()
		logger := h.logger.With("run", runID, "kind", kind)
		logger.Info("refresh stream started")

		lines := make(chan string)
		abandoned := make(chan struct{})
		workCtx := context.WithoutCancel(c.Request.Context())

		go func() {
			defer close(lines)
			h.refresher.Refresh(workCtx, req, func(line string) {
				select {
				case lines <- line:
				case <-abandoned:
				}
			})
		}()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
		c.Writer.Flush()

		for {
			select {
			case line, open := <-lines:
				if !open {
					return
				}
				if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", strings.ReplaceAll(line, "\n", " ")); err != nil {
					logger.Info("refresh stream client gone", "error", err)
					close(abandoned)
					return
				}
				c.Writer.Flush()
			case <-c.Request.Context().Done():
				logger.Info("refresh stream closed by client")
				close(abandoned)
				return
			}
		}
	}
}
