package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAgent/internal/config"
	"NewsAgent/internal/ports"
)

type fakeChat struct {
	reply string
	err   error
	last  ports.ChatRequest
}

func (f *fakeChat) Complete(_ context.Context, req ports.ChatRequest) (string, error) {
	f.last = req
	return f.reply, f.err
}

func TestJudgeParsesReply(t *testing.T) {
	cases := map[string]bool{
		"yes":     true,
		"  Yes.":  true,
		"Y":       true,
		"no":      false,
		"maybe":   false,
		"":        false,
		"\nyes\n": true,
	}
	for reply, want := range cases {
		chat := &fakeChat{reply: reply}
		judge := NewJudge(chat, config.LLMConfig{ClassifyModel: "qwen2.5:7b"})

		got, err := judge.IsRelevant(context.Background(), "Title", "Desc")
		require.NoError(t, err)
		assert.Equal(t, want, got, "reply %q", reply)
		assert.Equal(t, "qwen2.5:7b", chat.last.Model)
		assert.Equal(t, classifyMaxTokens, chat.last.MaxTokens)
		assert.InDelta(t, classifyTemperature, chat.last.Temperature, 1e-9)
	}
}

func TestJudgePropagatesErrors(t *testing.T) {
	judge := NewJudge(&fakeChat{err: errors.New("down")}, config.LLMConfig{})
	_, err := judge.IsRelevant(context.Background(), "t", "d")
	require.Error(t, err)
}

func TestSummarizerRendersPrompt(t *testing.T) {
	chat := &fakeChat{reply: "  要点摘要。 "}
	s := NewSummarizer(chat, config.LLMConfig{Model: "override", SummaryPrompt: "T={title} D={description}"})

	got, err := s.Summarize(context.Background(), "New model", "It is fast")
	require.NoError(t, err)
	assert.Equal(t, "要点摘要。", got)
	assert.Equal(t, "override", chat.last.Model)
	assert.Equal(t, "T=New model D=It is fast", chat.last.User)
	assert.Equal(t, summaryMaxTokens, chat.last.MaxTokens)
	assert.Equal(t, summarySystem, chat.last.System)
}
