package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/viant/ragcore/schema"
)

// characterChunker is the fallback for deployments without a tokenizer: it
// budgets by bytes (chunkSize tokens x 4 bytes per token) and cuts at the
// nearest word boundary within the trailing 20% of the budget to avoid
// splitting words.
type characterChunker struct {
	settings settings
}

func (c *characterChunker) Chunk(text string, metadata map[string]any) []*schema.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	budget := c.settings.chunkSize * 4
	if budget <= 0 {
		budget = defaultChunkSize * 4
	}
	var chunks []*schema.Chunk
	for start := 0; start < len(text); {
		end := start + budget
		if end >= len(text) {
			end = len(text)
		} else {
			end = cutPoint(text, start, end)
		}
		segment := text[start:end]
		tokens := len(segment) / 4
		if tokens == 0 {
			tokens = 1
		}
		if chunk := newChunk(text, start, end, len(chunks), tokens, MethodCharacter); chunk != nil {
			chunks = append(chunks, chunk)
		}
		start = end
	}
	return chunks
}

// cutPoint moves end back to a word boundary when one exists within the last
// 20% of the budget, and keeps the cut on a rune boundary either way.
func cutPoint(text string, start, end int) int {
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	floor := end - (end-start)/5
	for i := end; i > floor; i-- {
		if r, _ := utf8.DecodeRuneInString(text[i-1:]); unicode.IsSpace(r) {
			return i
		}
	}
	return end
}
