// Package tokenizer provides token counting strategies for chunking and
// budget accounting. The strategy is selected at configuration time rather
// than probed at runtime.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenizer counts tokens in text without materializing them.
type Tokenizer interface {
	// Count returns the token count for text.
	Count(text string) int
	// Name identifies the strategy for diagnostics.
	Name() string
}

// New returns the tokenizer for the given strategy name. Unknown names fall
// back to the unicode tokenizer.
func New(name string) Tokenizer {
	switch strings.ToLower(name) {
	case "approx", "character":
		return Approx{}
	default:
		return Unicode{}
	}
}

// Unicode tokenizes on word boundaries, treating each CJK ideograph as a
// token of its own so that counts stay meaningful for unsegmented scripts.
type Unicode struct{}

func (Unicode) Name() string { return "unicode" }

func (u Unicode) Count(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case IsCJK(r):
			if inWord {
				count++
				inWord = false
			}
			count++
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-':
			inWord = true
		default:
			if inWord {
				count++
				inWord = false
			}
		}
	}
	if inWord {
		count++
	}
	return count
}

// Approx estimates tokens as len(text)/4, the conventional heuristic for
// deployments without a real tokenizer.
type Approx struct{}

func (Approx) Name() string { return "approx" }

func (Approx) Count(text string) int {
	n := len(text) / 4
	if n == 0 && len(strings.TrimSpace(text)) > 0 {
		n = 1
	}
	return n
}

// IsCJK reports whether r belongs to a script written without word
// separators: Han, Hiragana, Katakana or Hangul. Each such rune counts as a
// token of its own.
func IsCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
