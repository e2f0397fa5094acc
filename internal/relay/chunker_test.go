package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastFlushBoundary(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"no boundary here", -1},
		{"line one\nline two", 9},
		{"done. next", 6},
		{"really? maybe", 8},
		{"yes! and", 5},
		{"trailing dot.", -1},
		{"code ```go", 8},
		{"", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lastFlushBoundary(tt.in), "input %q", tt.in)
	}
}

func TestBoundaryChunkerGroupsFragments(t *testing.T) {
	var chunks []string
	c := &boundaryChunker{emit: func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	}}

	for _, fragment := range []string{"Hel", "lo wor", "ld.\nSecond", " line"} {
		require.NoError(t, c.Write(fragment))
	}
	require.NoError(t, c.Flush())

	// Content and order survive re-chunking exactly.
	assert.Equal(t, "Hello world.\nSecond line", strings.Join(chunks, ""))
	assert.Equal(t, "Hello world.\n", chunks[0])
}

func TestBoundaryChunkerFlushEmpty(t *testing.T) {
	calls := 0
	c := &boundaryChunker{emit: func(string) error {
		calls++
		return nil
	}}
	require.NoError(t, c.Flush())
	assert.Zero(t, calls)
}

func TestSplitReplay(t *testing.T) {
	chunks := splitReplay(strings.Repeat("a", 120), 50)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 50)
	assert.Len(t, chunks[1], 50)
	assert.Len(t, chunks[2], 20)

	assert.Nil(t, splitReplay("", 50))
	assert.Equal(t, []string{"short"}, splitReplay("short", 50))
}

func TestSplitReplayMultibyte(t *testing.T) {
	in := strings.Repeat("あ", 60)
	chunks := splitReplay(in, 50)
	require.Len(t, chunks, 2)
	// Splits on runes, so no chunk ends mid-character.
	assert.Equal(t, in, strings.Join(chunks, ""))
	assert.Equal(t, 50, len([]rune(chunks[0])))
}
