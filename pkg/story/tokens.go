package story

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text against the context budget.
type TokenCounter interface {
	Count(text string) int
}

// NewTokenCounter returns a cl100k_base tiktoken counter, falling back
// to a rune-length heuristic if the encoding cannot be initialized
// (for example with no cached BPE data and no network).
func NewTokenCounter(logger *slog.Logger) TokenCounter {
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken encoding unavailable, using heuristic token counts", "error", err)
		}
		return heuristicCounter{}
	}
	return &tiktokenCounter{enc: enc}
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// heuristicCounter approximates GPT-style tokenization at roughly four
// characters per token.
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
