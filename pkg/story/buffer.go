package story

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrEmptyAction is returned when a narrative action is empty after
// trimming whitespace.
var ErrEmptyAction = errors.New("action text is empty")

// SheetSource renders the current character state as prompt hints.
// It is read, never mutated, during context assembly.
type SheetSource interface {
	PromptSheet() string
}

// Buffer owns the bounded, windowed view over a TurnLog and produces
// the context payload sent to the model each turn.
//
// The most recent turns are kept verbatim in a window of at most
// MaxWindow records. Older turns are folded into a condensed summary
// carry-forward, so early plot context survives eviction. The summary
// only grows or is regenerated wholesale; it is never dropped.
type Buffer struct {
	log       *TurnLog
	maxWindow int
	budget    int // token budget for the whole payload
	directive string
	sheet     SheetSource
	counter   TokenCounter
	logger    *slog.Logger

	// summary covers log records [0, folded).
	summary string
	folded  int
}

// BufferConfig carries the per-session knobs for a Buffer.
type BufferConfig struct {
	MaxWindow   int // > 0
	TokenBudget int // > 0
	Directive   string
	Sheet       SheetSource
	Counter     TokenCounter // optional, defaults to NewTokenCounter
	Logger      *slog.Logger
}

func NewBuffer(log *TurnLog, cfg BufferConfig) (*Buffer, error) {
	if cfg.MaxWindow <= 0 {
		return nil, fmt.Errorf("max window must be positive, got %d", cfg.MaxWindow)
	}
	if cfg.TokenBudget <= 0 {
		return nil, fmt.Errorf("token budget must be positive, got %d", cfg.TokenBudget)
	}
	counter := cfg.Counter
	if counter == nil {
		counter = NewTokenCounter(cfg.Logger)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{
		log:       log,
		maxWindow: cfg.MaxWindow,
		budget:    cfg.TokenBudget,
		directive: cfg.Directive,
		sheet:     cfg.Sheet,
		counter:   counter,
		logger:    logger,
	}, nil
}

// BuildContext assembles the payload for the pending action, in fixed
// order: genre directive, summary carry-forward, recent turn window,
// character sheet, pending action.
//
// If the payload exceeds the token budget, the oldest window entries
// are folded into the summary first. The most recent turn and the
// pending action are never truncated. Folding is deterministic, so
// rebuilding from the same log and action yields the same payload.
func (b *Buffer) BuildContext(action string) (string, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return "", ErrEmptyAction
	}

	payload := b.assemble(action)
	for b.counter.Count(payload) > b.budget && b.windowLen() > 1 {
		b.foldOldest()
		payload = b.assemble(action)
	}
	if b.counter.Count(payload) > b.budget {
		b.logger.Warn("context payload exceeds budget with minimal window",
			"tokens", b.counter.Count(payload), "budget", b.budget)
	}
	return payload, nil
}

// RecordTurn appends a completed exchange to the log and re-evaluates
// the window bound, folding evicted turns into the summary.
func (b *Buffer) RecordTurn(action, response string) TurnRecord {
	rec := b.log.Append(action, response)
	for b.windowLen() > b.maxWindow {
		b.foldOldest()
	}
	return rec
}

// Window returns the records currently held verbatim in context.
func (b *Buffer) Window() []TurnRecord {
	return b.log.Slice(b.folded)
}

// Summary returns the carry-forward for turns no longer in the window.
func (b *Buffer) Summary() string {
	return b.summary
}

// FoldedThrough returns the count of records covered by the summary.
func (b *Buffer) FoldedThrough() int {
	return b.folded
}

// ReplaceSummary swaps in a regenerated summary covering the same
// folded records. Empty replacements are ignored: the carry-forward
// may grow or be rewritten, never silently dropped.
func (b *Buffer) ReplaceSummary(summary string) {
	summary = strings.TrimSpace(summary)
	if summary == "" && b.folded > 0 {
		return
	}
	b.summary = summary
}

// RestoreFold reinstates persisted summary state after a load. The
// fold point must lie within the log and leave a window no larger
// than the bound.
func (b *Buffer) RestoreFold(folded int, summary string) error {
	if folded < 0 || folded > b.log.Len() {
		return fmt.Errorf("fold point %d out of range for %d turns", folded, b.log.Len())
	}
	if folded == 0 && summary != "" {
		return errors.New("summary present with no folded turns")
	}
	b.folded = folded
	b.summary = summary
	for b.windowLen() > b.maxWindow {
		b.foldOldest()
	}
	return nil
}

func (b *Buffer) windowLen() int {
	return b.log.Len() - b.folded
}

// foldOldest evicts the oldest window record into the summary using a
// deterministic extractive condensation.
func (b *Buffer) foldOldest() {
	if b.windowLen() == 0 {
		return
	}
	rec := b.log.At(b.folded)
	line := condense(rec)
	if b.summary == "" {
		b.summary = line
	} else {
		b.summary += " " + line
	}
	b.folded++
}

func (b *Buffer) assemble(action string) string {
	var sb strings.Builder
	sb.WriteString(b.directive)

	if b.summary != "" {
		sb.WriteString("\n\nThe story so far: ")
		sb.WriteString(b.summary)
	}

	for _, rec := range b.Window() {
		sb.WriteString("\n\n> ")
		sb.WriteString(rec.Action)
		sb.WriteString("\n")
		sb.WriteString(rec.Response)
	}

	if b.sheet != nil {
		if sheet := b.sheet.PromptSheet(); sheet != "" {
			sb.WriteString("\n\n")
			sb.WriteString(sheet)
		}
	}

	sb.WriteString("\n\n> ")
	sb.WriteString(action)
	return sb.String()
}

const condenseLimit = 140

// condense reduces an evicted turn to a single carry-forward sentence.
func condense(rec TurnRecord) string {
	s := firstSentence(rec.Response)
	if s == "" {
		s = firstSentence(rec.Action)
	}
	runes := []rune(s)
	if len(runes) > condenseLimit {
		s = strings.TrimSpace(string(runes[:condenseLimit])) + "..."
	}
	return s
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return text[:i+1]
		}
		if r == '\n' {
			return text[:i]
		}
	}
	return text
}
