package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/tokenizer"
)

type tokenChunker struct {
	settings settings
}

// Chunk slides a window of chunkSize tokens over the text, stepping back by
// the configured overlap between windows. Progress is forced when the overlap
// would otherwise stall the window (overlap >= window size).
func (c *tokenChunker) Chunk(text string, metadata map[string]any) []*schema.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	words := wordSpans(text)
	if len(words) == 0 {
		return nil
	}
	size := c.settings.chunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	var chunks []*schema.Chunk
	for start := 0; start < len(words); {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		byteStart := words[start].start
		byteEnd := words[end-1].end
		segment := text[byteStart:byteEnd]
		tokens := c.settings.tokenizer.Count(segment)
		if chunk := newChunk(text, byteStart, byteEnd, len(chunks), tokens, MethodToken); chunk != nil {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
		next := end - c.settings.overlap
		if next <= start {
			// Overlap >= window size would never advance; step to the
			// window end instead.
			next = end
		}
		start = next
	}
	return chunks
}

// wordSpans returns byte ranges of whitespace-delimited words. CJK scripts
// carry no separators, so each ideograph forms a span of its own, mirroring
// how the unicode tokenizer counts them.
func wordSpans(text string) []span {
	var spans []span
	start := -1
	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, span{start: start, end: end})
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case tokenizer.IsCJK(r):
			flush(i)
			spans = append(spans, span{start: i, end: i + utf8.RuneLen(r)})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return spans
}
