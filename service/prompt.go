package service

import (
	"strconv"
	"strings"

	"github.com/viant/ragcore/schema"
)

const (
	contextPreamble = "Use the following context to answer the question. If the context does not contain the answer, say so.\n\nContext:\n"
	noContextPrompt = "No relevant context was found. Answer the question from general knowledge and state that no supporting documents were available.\n\nQuestion: "
	questionLead    = "\nQuestion: "
)

// BuildPrompt renders the retrieved chunks as labeled context blocks followed
// by the question. When the rendered prompt would exceed maxChars, whole
// trailing blocks are dropped, highest-ranked first to survive; a block is
// never cut mid-text. It returns the prompt and how many blocks were kept.
func BuildPrompt(query string, results []*schema.RetrievalResult, maxChars int) (string, int) {
	if len(results) == 0 {
		return noContextPrompt + query, 0
	}
	fixed := len(contextPreamble) + len(questionLead) + len(query)
	var blocks []string
	used := fixed
	for i, result := range results {
		block := renderBlock(i+1, result)
		if maxChars > 0 && used+len(block) > maxChars {
			break
		}
		blocks = append(blocks, block)
		used += len(block)
	}
	if len(blocks) == 0 {
		return noContextPrompt + query, 0
	}
	var b strings.Builder
	b.Grow(used)
	b.WriteString(contextPreamble)
	for _, block := range blocks {
		b.WriteString(block)
	}
	b.WriteString(questionLead)
	b.WriteString(query)
	return b.String(), len(blocks)
}

// renderBlock labels one chunk with its rank and, when present, the source
// title and origin from the metadata snapshot.
func renderBlock(rank int, result *schema.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strconv.Itoa(rank))
	b.WriteString("]")
	title := schema.GetString(result.Metadata, schema.MetaTitle)
	source := schema.GetString(result.Metadata, schema.MetaSource)
	if title != "" {
		b.WriteString(" ")
		b.WriteString(title)
	}
	if source != "" {
		b.WriteString(" (")
		b.WriteString(source)
		b.WriteString(")")
	}
	b.WriteString("\n")
	b.WriteString(result.Text)
	b.WriteString("\n\n")
	return b.String()
}
