package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/becomeliminal/recall-go-sdk/llm"
	"github.com/becomeliminal/recall-go-sdk/memory/shortterm"
)

const (
	summarizerSystem = "You are a meticulous biographer."

	summarizerPrompt = "Write a high-quality, reflective 'Diary Entry' for this conversation session. " +
		"Focus on significant key topics, user preferences, decisions made, and any " +
		"important emotional context or project progress discussed. " +
		"Ignore trivial greet-bot chatter. Style: Concise but observationally rich."
)

// LLMSummarizer implements Summarizer with a tool-less completion call.
// Pass a client configured with a cheap, fast model; summaries run on the
// maintenance path, not the interactive one.
type LLMSummarizer struct {
	client llm.Client
}

// NewLLMSummarizer creates a Summarizer backed by the given model client.
func NewLLMSummarizer(client llm.Client) *LLMSummarizer {
	return &LLMSummarizer{client: client}
}

// Summarize renders the turns as a transcript and asks the model for a
// diary entry.
func (s *LLMSummarizer) Summarize(ctx context.Context, turns []shortterm.Turn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}

	var transcript strings.Builder
	for _, turn := range turns {
		transcript.WriteString(strings.ToUpper(turn.Role))
		transcript.WriteString(": ")
		transcript.WriteString(turn.Content)
		transcript.WriteString("\n")
	}

	resp, err := s.client.Complete(ctx, &llm.Request{
		System: summarizerSystem,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("%s\n\nCONVERSATION TRACE:\n%s", summarizerPrompt, transcript.String()),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("memory: summary completion: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
