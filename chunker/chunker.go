// Package chunker splits raw document text into ordered, bounded-size
// segments for embedding. Splitting strategies mirror the granularity of the
// source text: sentence, paragraph, token window, or raw characters.
package chunker

import (
	"log/slog"
	"strings"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/tokenizer"
)

// Chunking methods.
const (
	MethodSentence  = "sentence"
	MethodToken     = "token"
	MethodParagraph = "paragraph"
	MethodCharacter = "character"
)

const (
	defaultChunkSize = 512
	defaultOverlap   = 50
)

// Chunker divides text into logical chunks. Returned chunks are ordered,
// carry strictly increasing ordinals and non-decreasing byte offsets into the
// original text.
type Chunker interface {
	Chunk(text string, metadata map[string]any) []*schema.Chunk
}

// Option configures a chunker.
type Option func(*settings)

type settings struct {
	chunkSize int
	overlap   int
	tokenizer tokenizer.Tokenizer
}

// WithChunkSize sets the chunk budget in tokens.
func WithChunkSize(size int) Option {
	return func(s *settings) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the token overlap between consecutive windows (token
// method only).
func WithOverlap(overlap int) Option {
	return func(s *settings) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithTokenizer sets the token counting strategy.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(s *settings) {
		if t != nil {
			s.tokenizer = t
		}
	}
}

// New returns a chunker for the given method. An unknown method falls back
// to sentence chunking with a warning rather than failing ingestion.
func New(method string, opts ...Option) Chunker {
	s := settings{
		chunkSize: defaultChunkSize,
		overlap:   defaultOverlap,
		tokenizer: tokenizer.Unicode{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	switch strings.ToLower(method) {
	case MethodSentence, "":
		return &sentenceChunker{settings: s}
	case MethodToken:
		return &tokenChunker{settings: s}
	case MethodParagraph:
		return &paragraphChunker{settings: s}
	case MethodCharacter:
		return &characterChunker{settings: s}
	default:
		slog.Warn("unknown chunking method, falling back to sentence", "method", method)
		return &sentenceChunker{settings: s}
	}
}

// span is a half-open byte range of the source text with its token count.
type span struct {
	start  int
	end    int
	tokens int
}

// accumulate greedily packs spans into chunks of at most chunkSize tokens.
// A single span larger than the budget is kept whole to preserve semantics.
func accumulate(text string, spans []span, s settings, method string) []*schema.Chunk {
	var chunks []*schema.Chunk
	var current []span
	currentTokens := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		start := current[0].start
		end := current[len(current)-1].end
		if chunk := newChunk(text, start, end, len(chunks), currentTokens, method); chunk != nil {
			chunks = append(chunks, chunk)
		}
		current = current[:0]
		currentTokens = 0
	}
	for _, sp := range spans {
		if len(current) > 0 && currentTokens+sp.tokens > s.chunkSize {
			flush()
		}
		current = append(current, sp)
		currentTokens += sp.tokens
	}
	flush()
	return chunks
}

func newChunk(text string, start, end, ordinal, tokens int, method string) *schema.Chunk {
	raw := text[start:end]
	trimmed := strings.TrimLeft(raw, " \t\r\n")
	start += len(raw) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t\r\n")
	end = start + len(trimmed)
	if trimmed == "" {
		return nil
	}
	return &schema.Chunk{
		Text:        trimmed,
		Ordinal:     ordinal,
		TokenCount:  tokens,
		StartOffset: start,
		EndOffset:   end,
		Method:      method,
	}
}
