package story

import (
	"context"
	"fmt"
	"strings"
)

// summaryPrompt instructs the model when regenerating the carry-forward.
const summaryPrompt = `Summarize the following text adventure transcript in one short paragraph. Preserve named characters, acquired or lost items, locations visited, and unresolved plot threads. Write in past tense. Output only the summary.`

// CompletionFunc is the minimal model boundary the summarizer needs:
// a system prompt and a user prompt in, raw text out.
type CompletionFunc func(ctx context.Context, system, prompt string) (string, error)

// Summarizer condenses turns that have been evicted from the window.
type Summarizer interface {
	Summarize(ctx context.Context, prior string, evicted []TurnRecord) (string, error)
}

// LLMSummarizer regenerates the summary carry-forward with a model
// call. It is invoked between turns, never during context assembly,
// so BuildContext stays deterministic for a fixed history.
type LLMSummarizer struct {
	complete CompletionFunc
}

func NewLLMSummarizer(complete CompletionFunc) *LLMSummarizer {
	return &LLMSummarizer{complete: complete}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, prior string, evicted []TurnRecord) (string, error) {
	if len(evicted) == 0 {
		return prior, nil
	}

	var sb strings.Builder
	if prior != "" {
		sb.WriteString("Earlier summary: ")
		sb.WriteString(prior)
		sb.WriteString("\n\n")
	}
	for _, rec := range evicted {
		fmt.Fprintf(&sb, "> %s\n%s\n\n", rec.Action, rec.Response)
	}

	out, err := s.complete(ctx, summaryPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("summarize evicted turns: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Resummarize rewrites the summary for all folded records using the
// given summarizer. On failure the existing extractive summary is
// kept; the carry-forward never regresses.
func (b *Buffer) Resummarize(ctx context.Context, s Summarizer) error {
	if b.folded == 0 || s == nil {
		return nil
	}
	evicted := b.log.Records()[:b.folded]
	summary, err := s.Summarize(ctx, b.summary, evicted)
	if err != nil {
		return err
	}
	b.ReplaceSummary(summary)
	return nil
}
