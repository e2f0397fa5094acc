package relay

import "strings"

// lastFlushBoundary returns the index one past the last flush boundary in
// s, or -1 when none exists. Boundaries are newlines, sentence-ending
// punctuation followed by a space, and code fence markers: enough to bound
// perceived latency without emitting one chunk per character.
func lastFlushBoundary(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '\t') {
				return i + 2
			}
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		return idx + 3
	}
	return -1
}

// boundaryChunker buffers upstream fragments and emits them grouped at
// flush boundaries, preserving order and content.
type boundaryChunker struct {
	buf  strings.Builder
	emit func(chunk string) error
}

func (c *boundaryChunker) Write(fragment string) error {
	c.buf.WriteString(fragment)
	s := c.buf.String()
	idx := lastFlushBoundary(s)
	if idx < 0 {
		return nil
	}
	chunk, rest := s[:idx], s[idx:]
	c.buf.Reset()
	c.buf.WriteString(rest)
	return c.emit(chunk)
}

// Flush emits whatever is still buffered.
func (c *boundaryChunker) Flush() error {
	if c.buf.Len() == 0 {
		return nil
	}
	chunk := c.buf.String()
	c.buf.Reset()
	return c.emit(chunk)
}

// splitReplay cuts a complete response into fixed-size chunks for the
// simulated streaming mode. Splits on runes so multi-byte characters stay
// intact.
func splitReplay(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > size {
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	return append(chunks, string(runes))
}
