package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitShortTextPassesThrough(t *testing.T) {
	c := New(4000, ModeNewline)
	assert.Equal(t, []string{"hello"}, c.Split("hello"))
}

func TestSplitEmptyYieldsNothing(t *testing.T) {
	c := New(4000, ModeNewline)
	assert.Nil(t, c.Split(""))
}

func TestSplitZeroLimitDisablesSplitting(t *testing.T) {
	c := New(0, ModeLength)
	long := strings.Repeat("x", 10000)
	assert.Equal(t, []string{long}, c.Split(long))
}

func TestSplitByLength(t *testing.T) {
	c := New(10, ModeLength)
	chunks := c.Split(strings.Repeat("a", 25))

	assert.Equal(t, []string{
		strings.Repeat("a", 10),
		strings.Repeat("a", 10),
		strings.Repeat("a", 5),
	}, chunks)
}

func TestSplitByLengthIsRuneSafe(t *testing.T) {
	c := New(3, ModeLength)
	chunks := c.Split("привет")

	assert.Equal(t, []string{"при", "вет"}, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 3)
	}
}

func TestSplitByNewlinePrefersParagraphs(t *testing.T) {
	c := New(20, ModeNewline)
	chunks := c.Split("first paragraph\n\nsecond paragraph\n\nthird")

	assert.Equal(t, []string{"first paragraph", "second paragraph", "third"}, chunks)
}

func TestSplitByNewlinePacksSmallParagraphs(t *testing.T) {
	c := New(20, ModeNewline)
	chunks := c.Split("one\n\ntwo\n\nthree")

	assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, chunks)
}

func TestSplitByNewlineBreaksLongLines(t *testing.T) {
	c := New(10, ModeNewline)
	chunks := c.Split("short\n" + strings.Repeat("b", 25))

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 10)
	}
	assert.Equal(t, "short", chunks[0])
	assert.Equal(t, strings.Repeat("b", 25), strings.ReplaceAll(strings.Join(chunks[1:], ""), "\n", ""))
}

func TestSplitByNewlineRespectsLimit(t *testing.T) {
	c := New(50, ModeNewline)
	text := strings.Repeat("line of text\n", 40)

	for _, chunk := range c.Split(text) {
		assert.LessOrEqual(t, len([]rune(chunk)), 50)
	}
}
