package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/viant/ragcore/schema"
)

// Sentence terminators across scripts. CJK terminators end a sentence
// unconditionally; latin terminators end one when followed by whitespace or
// end of input, so decimals and abbreviations survive.
var latinTerminators = map[rune]bool{'.': true, '!': true, '?': true}

var unconditionalTerminators = map[rune]bool{
	'。': true, '！': true, '？': true, '؟': true, '।': true, '…': true,
}

type sentenceChunker struct {
	settings settings
}

func (c *sentenceChunker) Chunk(text string, metadata map[string]any) []*schema.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	spans := c.sentences(text)
	return accumulate(text, spans, c.settings, MethodSentence)
}

// sentences splits text into terminator-delimited spans with byte offsets.
// Text after the last terminator forms a trailing sentence.
func (c *sentenceChunker) sentences(text string) []span {
	var spans []span
	start := 0
	appendSpan := func(end int) {
		if end <= start {
			return
		}
		segment := text[start:end]
		if strings.TrimSpace(segment) != "" {
			spans = append(spans, span{start: start, end: end, tokens: c.settings.tokenizer.Count(segment)})
		}
		start = end
	}
	for i, r := range text {
		size := utf8.RuneLen(r)
		switch {
		case unconditionalTerminators[r]:
			appendSpan(i + size)
		case latinTerminators[r]:
			next, _ := utf8.DecodeRuneInString(text[i+size:])
			if next == utf8.RuneError || unicode.IsSpace(next) || r == '!' || r == '?' {
				appendSpan(i + size)
			}
		}
	}
	appendSpan(len(text))
	return spans
}
