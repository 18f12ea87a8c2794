// Package chunk splits narrator output into small readable segments
// so the engine can pace their display. Chunking is pure text work:
// no I/O, no timing.
package chunk

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

const (
	MinLinesPerChunk = 2
	MaxLinesPerChunk = 3
)

// Split divides text into chunks of at most linesPerChunk lines,
// preferring to end a chunk on a sentence or paragraph boundary so
// readers are not cut off mid-sentence. linesPerChunk is clamped to
// [MinLinesPerChunk, MaxLinesPerChunk].
//
// Empty input yields no chunks. Joining the chunks with a newline
// reconstructs the input exactly.
func Split(text string, linesPerChunk int) []string {
	if text == "" {
		return nil
	}
	if linesPerChunk < MinLinesPerChunk {
		linesPerChunk = MinLinesPerChunk
	}
	if linesPerChunk > MaxLinesPerChunk {
		linesPerChunk = MaxLinesPerChunk
	}

	lines := strings.Split(text, "\n")
	var chunks []string
	start := 0
	for start < len(lines) {
		end := start + linesPerChunk
		if end > len(lines) {
			end = len(lines)
		}
		// Prefer the last boundary line within the budget; fall back
		// to a plain line-count slice when none is found.
		cut := end
		for i := end - 1; i >= start; i-- {
			if isBoundary(lines[i]) {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, strings.Join(lines[start:cut], "\n"))
		start = cut
	}
	return chunks
}

// Flow word-wraps text to the given width and then chunks it. This is
// the display path: the wrapped form is what the player reads.
func Flow(text string, width, linesPerChunk int) []string {
	if width > 0 {
		text = wordwrap.String(text, width)
	}
	return Split(text, linesPerChunk)
}

// isBoundary reports whether a line ends a sentence or paragraph.
func isBoundary(line string) bool {
	trimmed := strings.TrimRight(line, " \t\"'")
	if trimmed == "" {
		return true // blank line: paragraph break
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// Cursor walks a chunk sequence one "continue" signal at a time. It
// is restartable via Reset and safe to rebuild from the same text.
type Cursor struct {
	chunks []string
	pos    int
}

func NewCursor(chunks []string) *Cursor {
	return &Cursor{chunks: chunks}
}

// Next surfaces the next chunk. ok is false once all chunks are spent.
func (c *Cursor) Next() (chunk string, ok bool) {
	if c.pos >= len(c.chunks) {
		return "", false
	}
	chunk = c.chunks[c.pos]
	c.pos++
	return chunk, true
}

// Remaining reports how many chunks have not yet been surfaced.
func (c *Cursor) Remaining() int {
	return len(c.chunks) - c.pos
}

func (c *Cursor) Reset() {
	c.pos = 0
}
