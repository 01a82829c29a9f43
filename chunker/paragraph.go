package chunker

import (
	"strings"

	"github.com/viant/ragcore/schema"
)

type paragraphChunker struct {
	settings settings
}

// Chunk splits on blank-line boundaries and accumulates whole paragraphs up
// to the chunk budget. An oversized paragraph is kept whole.
func (c *paragraphChunker) Chunk(text string, metadata map[string]any) []*schema.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	spans := c.paragraphs(text)
	return accumulate(text, spans, c.settings, MethodParagraph)
}

func (c *paragraphChunker) paragraphs(text string) []span {
	var spans []span
	start := 0
	for start < len(text) {
		end := strings.Index(text[start:], "\n\n")
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}
		segment := text[start:end]
		if strings.TrimSpace(segment) != "" {
			spans = append(spans, span{start: start, end: end, tokens: c.settings.tokenizer.Count(segment)})
		}
		start = end + 2
	}
	return spans
}
