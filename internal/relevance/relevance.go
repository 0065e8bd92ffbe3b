// Package relevance decides whether an incoming entry is on topic for the agent.
package relevance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"NewsAgent/internal/domain"
	"NewsAgent/internal/ports"
)

// Keywords is the fixed multilingual set used for the fast path.
var Keywords = []string{
	"ai", "ml", "dl", "llm", "transformer", "gpt", "bert", "diffusion", "rl",
	"neural", "embedding", "prompt", "finetune", "lora", "rag", "agent",
	"arxiv", "benchmark", "dataset", "pretrain", "foundation model", "self-supervised",
	"人工智能", "机器学习", "深度学习", "大模型", "神经网络", "扩散模型", "强化学习", "检索增强", "微调", "算法", "论文",
}

// Reason records which rule produced a verdict.
type Reason string

const (
	ReasonDisabled Reason = "disabled"
	ReasonKeyword  Reason = "keyword"
	ReasonJudgeYes Reason = "judge_yes"
	ReasonJudgeNo  Reason = "judge_no"
	ReasonFailOpen Reason = "fail_open"
)

// Verdict is the outcome of a relevance check.
type Verdict struct {
	Include bool
	Reason  Reason
}

// DefaultJudgeTimeout bounds a single remote judge call.
const DefaultJudgeTimeout = 12 * time.Second

// Classifier combines the keyword fast path with an optional remote judge.
type Classifier struct {
	enabled bool
	judge   ports.RelevanceJudge
	timeout time.Duration
	logger  *slog.Logger
}

// NewClassifier builds a classifier. judge may be nil; the classifier then fails open.
func NewClassifier(enabled bool, judge ports.RelevanceJudge, timeout time.Duration, logger *slog.Logger) *Classifier {
	if timeout <= 0 {
		timeout = DefaultJudgeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		enabled: enabled,
		judge:   judge,
		timeout: timeout,
		logger:  logger.With("component", "relevance"),
	}
}

// Enabled reports whether the filter runs at all.
func (c *Classifier) Enabled() bool {
	return c != nil && c.enabled
}

// MatchesKeywords reports a case-insensitive substring hit in title or description.
func MatchesKeywords(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, k := range Keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Allow never returns an error: judge failures include the entry.
func (c *Classifier) Allow(ctx context.Context, title, description string) Verdict {
	if !c.Enabled() {
		return Verdict{Include: true, Reason: ReasonDisabled}
	}
	if MatchesKeywords(title, description) {
		return Verdict{Include: true, Reason: ReasonKeyword}
	}
	if c.judge == nil {
		return Verdict{Include: true, Reason: ReasonFailOpen}
	}

	judgeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := c.judge.IsRelevant(judgeCtx, title, description)
	if err != nil {
		c.logger.Warn("relevance judge unavailable, including entry", "title", domain.TruncateRunes(title, 80), "error", err)
		return Verdict{Include: true, Reason: ReasonFailOpen}
	}
	c.logger.Debug("relevance judged", "title", domain.TruncateRunes(title, 80), "relevant", ok)
	if ok {
		return Verdict{Include: true, Reason: ReasonJudgeYes}
	}
	return Verdict{Include: false, Reason: ReasonJudgeNo}
}
