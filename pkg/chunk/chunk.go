// Package chunk splits outbound text into platform-sized pieces.
package chunk

import "strings"

// Mode selects the splitting strategy.
type Mode string

const (
	// ModeLength splits on a hard rune budget only.
	ModeLength Mode = "length"

	// ModeNewline prefers paragraph and line boundaries before falling back
	// to the hard budget.
	ModeNewline Mode = "newline"
)

// Chunker splits text for a channel with a fixed message size limit.
type Chunker struct {
	limit int
	mode  Mode
}

// New creates a Chunker. A non-positive limit disables splitting.
func New(limit int, mode Mode) *Chunker {
	if mode != ModeLength {
		mode = ModeNewline
	}
	return &Chunker{limit: limit, mode: mode}
}

// Split breaks text into chunks no longer than the limit, measured in runes.
// Empty input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if c.limit <= 0 || len([]rune(text)) <= c.limit {
		return []string{text}
	}

	switch c.mode {
	case ModeLength:
		return splitByLength(text, c.limit)
	default:
		return splitByNewline(text, c.limit)
	}
}

func splitByLength(text string, limit int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/limit+1)
	for len(runes) > limit {
		chunks = append(chunks, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// splitByNewline packs paragraphs into chunks, breaking oversized paragraphs
// on line boundaries and oversized lines on the rune budget.
func splitByNewline(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	appendPiece := func(piece string, sep string) {
		pieceLen := len([]rune(piece))
		sepLen := len([]rune(sep))
		if currentLen > 0 && currentLen+sepLen+pieceLen > limit {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(sep)
			currentLen += sepLen
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}

	for _, para := range strings.Split(text, "\n\n") {
		if len([]rune(para)) <= limit {
			appendPiece(para, "\n\n")
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			if len([]rune(line)) <= limit {
				appendPiece(line, "\n")
				continue
			}
			for _, piece := range splitByLength(line, limit) {
				appendPiece(piece, "\n")
			}
		}
	}
	flush()
	return chunks
}
