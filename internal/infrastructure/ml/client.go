package ml

import (
	"context"
	"fmt"
	"strings"

	"NewsAgent/internal/config"
	"NewsAgent/internal/domain"
	"NewsAgent/internal/ports"
)

const (
	defaultClassifyPrompt = "你是资深科技编辑。请判断以下内容是否与AI算法/模型/研究密切相关。\n" +
		"给出严格的 yes 或 no。\n\n标题: {title}\n摘要: {description}\n"
	defaultSummaryPrompt = "你是新闻编辑，请用中文生成 2-3 句要点式摘要，聚焦新模型/方法/数据/指标，" +
		"不超过 120 字。\n\n标题: {title}\n描述: {description}\n"

	classifySystem = "只回答 yes 或 no"
	summarySystem  = "用简洁中文输出，不要前缀词。"

	classifyTemperature = 0.1
	classifyMaxTokens   = 4
	summaryTemperature  = 0.2
	summaryMaxTokens    = 200

	// Descriptions beyond this are cut before prompting.
	maxPromptDescriptionRunes = 4000
)

// Judge implements ports.RelevanceJudge with a yes/no chat completion.
type Judge struct {
	chat   ports.ChatClient
	model  string
	prompt string
}

var _ ports.RelevanceJudge = (*Judge)(nil)

// NewJudge wires the classifier model and prompt from configuration.
func NewJudge(chat ports.ChatClient, cfg config.LLMConfig) *Judge {
	return &Judge{
		chat:   chat,
		model:  cfg.ClassifierModel(),
		prompt: orDefault(cfg.ClassifyPrompt, defaultClassifyPrompt),
	}
}

// IsRelevant is true iff the reply starts with "y" after trimming and lower-casing.
func (j *Judge) IsRelevant(ctx context.Context, title, description string) (bool, error) {
	reply, err := j.chat.Complete(ctx, ports.ChatRequest{
		Model:       j.model,
		System:      classifySystem,
		User:        render(j.prompt, title, description),
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(reply)), "y"), nil
}

// Summarizer implements ports.TextSummarizer with a short chat completion.
type Summarizer struct {
	chat   ports.ChatClient
	model  string
	prompt string
}

var _ ports.TextSummarizer = (*Summarizer)(nil)

// NewSummarizer wires the summary model and prompt from configuration.
func NewSummarizer(chat ports.ChatClient, cfg config.LLMConfig) *Summarizer {
	return &Summarizer{
		chat:   chat,
		model:  cfg.SummarizerModel(),
		prompt: orDefault(cfg.SummaryPrompt, defaultSummaryPrompt),
	}
}

// Summarize returns "" without error when the model answers with nothing.
func (s *Summarizer) Summarize(ctx context.Context, title, description string) (string, error) {
	reply, err := s.chat.Complete(ctx, ports.ChatRequest{
		Model:       s.model,
		System:      summarySystem,
		User:        render(s.prompt, title, description),
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func render(prompt, title, description string) string {
	return strings.NewReplacer(
		"{title}", title,
		"{description}", domain.TruncateRunes(description, maxPromptDescriptionRunes),
	).Replace(prompt)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
