package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"shorter", "hi", 5, "hi   "},
		{"exact", "hello", 5, "hello"},
		{"longer", "hello world", 5, "hello world"},
		{"zero_width", "hi", 0, "hi"},
		{"empty_input", "", 3, "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, padRight(tt.input, tt.width))
		})
	}
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{""}, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb"))
}

func TestFillLines(t *testing.T) {
	assert.Equal(t, "a\n\n", fillLines("a", 3))
	assert.Equal(t, "a\nb\nc", fillLines("a\nb\nc", 2))
}

func TestOverlayAt(t *testing.T) {
	base := strings.Join([]string{
		"..........",
		"..........",
		"..........",
	}, "\n")

	got := overlayAt(base, "ab\ncd", 3, 1, 10)
	assert.Equal(t, strings.Join([]string{
		"..........",
		"...ab.....",
		"...cd.....",
	}, "\n"), got)
}

func TestOverlayAt_ClipsRowsOutsideBase(t *testing.T) {
	got := overlayAt("....\n....", "xx\nyy\nzz", 1, 1, 4)
	assert.Equal(t, "....\n.xx.", got)
}

func TestOverlayAt_PadsShortBase(t *testing.T) {
	got := overlayAt("ab", "X", 4, 0, 6)
	assert.Equal(t, "ab  X ", got)
}
