package vectordb

import (
	"github.com/viant/ragcore/schema"
)

// MergeMetadata builds the metadata snapshot stored with a chunk row:
// document-level attributes overlaid with per-chunk metadata plus the
// built-in diagnostic keys.
func MergeMetadata(document *schema.Document, chunk *schema.Chunk) map[string]any {
	meta := make(map[string]any, len(document.Metadata)+len(chunk.Metadata)+5)
	for k, v := range document.Metadata {
		meta[k] = v
	}
	for k, v := range chunk.Metadata {
		meta[k] = v
	}
	if document.Title != "" {
		meta[schema.MetaTitle] = document.Title
	}
	if document.Source != "" {
		meta[schema.MetaSource] = document.Source
	}
	if document.Language != "" {
		meta[schema.MetaLanguage] = document.Language
	}
	meta[schema.MetaOrdinal] = chunk.Ordinal
	if chunk.Method != "" {
		meta[schema.MetaMethod] = chunk.Method
	}
	return meta
}
