// Package sqlitevec implements the persistent VectorStore on sqlite with the
// sqlite-vec extension: a vec virtual table serves ANN MATCH queries over a
// shadow row table holding content, metadata, geo coordinates and timestamps.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viant/sqlite-vec/engine"
	"github.com/viant/sqlite-vec/vec"
	"github.com/viant/sqlite-vec/vector"

	"github.com/viant/ragcore/schema"
	"github.com/viant/ragcore/vectordb"
	"github.com/viant/ragcore/vectordb/contenthash"
)

const defaultDataset = "default"

// Option configures the sqlite-vec store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the SQLite DSN to open (e.g. /path/to/db.sqlite).
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithVTable sets the vec virtual table name (default: rag_chunk).
func WithVTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.vtable = name
		}
	}
}

// WithEnsureSchema controls whether schema and indexes are created
// automatically.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) { s.ensureSchema = enabled }
}

// WithDimension pins the embedding column width.
func WithDimension(dim int) Option {
	return func(s *Store) {
		if dim > 0 {
			s.dimension = dim
		}
	}
}

// WithPoolSize bounds the shared connection pool.
func WithPoolSize(minConns, maxConns int) Option {
	return func(s *Store) {
		s.minConns = minConns
		s.maxConns = maxConns
	}
}

// Store is a sqlite-vec backed VectorStore.
type Store struct {
	db            *sql.DB
	dsn           string
	vtable        string
	shadow        string
	ensureSchema  bool
	dimension     int
	minConns      int
	maxConns      int
	openedLocally bool
}

// NewStore opens/initializes a sqlite-vec Store.
func NewStore(opts ...Option) (*Store, error) {
	s := &Store{
		vtable:       "rag_chunk",
		ensureSchema: true,
		minConns:     2,
		maxConns:     4,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shadow = "_vec_" + s.vtable

	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("sqlitevec: dsn required")
		}
		db, err := engine.Open(withPragmas(s.dsn, 5000))
		if err != nil {
			return nil, &vectordb.StorageError{Op: "open", Err: err}
		}
		s.db = db
		s.openedLocally = true
	}
	s.db.SetMaxOpenConns(s.maxConns)
	s.db.SetMaxIdleConns(s.minConns)
	if err := vec.Register(s.db); err != nil {
		return nil, &vectordb.StorageError{Op: "register vec", Err: err}
	}
	if s.ensureSchema {
		if err := s.ensureSchemaDDL(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying DB if Store opened it.
func (s *Store) Close() error {
	if s.openedLocally && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ensureSchemaDDL(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rag_document (
			id          TEXT PRIMARY KEY,
			title       TEXT,
			source      TEXT,
			language    TEXT,
			meta        TEXT,
			chunk_count INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		);`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			dataset_id   TEXT NOT NULL,
			id           TEXT NOT NULL,
			document_id  TEXT NOT NULL,
			content      TEXT NOT NULL,
			content_hash INTEGER NOT NULL,
			ordinal      INTEGER NOT NULL,
			token_count  INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset   INTEGER NOT NULL,
			method       TEXT,
			meta         TEXT,
			embedding    BLOB,
			lat          REAL,
			lon          REAL,
			created_at   TIMESTAMP NOT NULL,
			updated_at   TIMESTAMP NOT NULL,
			archived     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset_id, id)
		);`, s.shadow),
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec(doc_id);`, s.vtable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_hash ON %s(content_hash);`, s.vtable, s.shadow),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_document ON %s(document_id);`, s.vtable, s.shadow),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_geo ON %s(lat, lon) WHERE lat IS NOT NULL;`, s.vtable, s.shadow),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &vectordb.StorageError{Op: "ensure schema", Err: err}
		}
	}
	return nil
}

// Store persists one document inside a single transaction: either every
// chunk row becomes visible or none does. An existing document id is
// overwritten (idempotent re-ingestion); identical content is skipped.
func (s *Store) Store(ctx context.Context, request vectordb.StoreRequest) (*vectordb.StoreResult, error) {
	if len(request.Chunks) == 0 {
		return nil, &vectordb.ValidationError{Reason: "document produced no chunks"}
	}
	if len(request.Embeddings) != len(request.Chunks) {
		return nil, &vectordb.DimensionMismatchError{Got: len(request.Embeddings), Want: len(request.Chunks), Kind: "count"}
	}
	for _, embedding := range request.Embeddings {
		if s.dimension > 0 && len(embedding) != s.dimension {
			return nil, &vectordb.DimensionMismatchError{Got: len(embedding), Want: s.dimension, Kind: "width"}
		}
	}

	documentID := request.Document.ID
	if documentID == "" {
		documentID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &vectordb.StorageError{Op: "begin", Err: err}
	}
	result, err := s.storeTx(ctx, tx, documentID, request)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, &vectordb.StorageError{Op: "commit", Err: err}
	}
	return result, nil
}

func (s *Store) storeTx(ctx context.Context, tx *sql.Tx, documentID string, request vectordb.StoreRequest) (*vectordb.StoreResult, error) {
	now := time.Now().UTC()
	var createdAt time.Time
	updated := false
	err := tx.QueryRowContext(ctx, `SELECT created_at FROM rag_document WHERE id = ?`, documentID).Scan(&createdAt)
	switch {
	case err == sql.ErrNoRows:
		createdAt = now
	case err != nil:
		return nil, &vectordb.StorageError{Op: "lookup document", Err: err}
	default:
		updated = true
		// Overwrite semantics: drop the previous revision's chunk rows.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = ?`, s.shadow), documentID); err != nil {
			return nil, &vectordb.StorageError{Op: "delete old chunks", Err: err}
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s(
		dataset_id, id, document_id, content, content_hash, ordinal, token_count,
		start_offset, end_offset, method, meta, embedding, lat, lon, created_at, updated_at, archived)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,0)`, s.shadow))
	if err != nil {
		return nil, &vectordb.StorageError{Op: "prepare insert", Err: err}
	}
	defer insert.Close()

	result := &vectordb.StoreResult{DocumentID: documentID, Updated: updated}
	for i, chunk := range request.Chunks {
		hash := int64(contenthash.HashText(chunk.Text))
		var existingID string
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE content_hash = ?`, s.shadow), hash).Scan(&existingID)
		if err == nil {
			result.Skipped++
			continue
		}
		if err != sql.ErrNoRows {
			return nil, &vectordb.StorageError{Op: "dedup lookup", Err: err}
		}
		chunkID := chunk.ID
		if chunkID == "" {
			chunkID = fmt.Sprintf("%s:%d-%d", documentID, chunk.StartOffset, chunk.EndOffset)
		}
		blob, err := vector.EncodeEmbedding(request.Embeddings[i])
		if err != nil {
			return nil, &vectordb.StorageError{Op: "encode embedding", Err: err}
		}
		meta, err := json.Marshal(vectordb.MergeMetadata(&request.Document, chunk))
		if err != nil {
			return nil, &vectordb.StorageError{Op: "encode meta", Err: err}
		}
		var lat, lon any
		point := schema.GeoPointFromMetadata(chunk.Metadata)
		if point == nil {
			point = schema.GeoPointFromMetadata(request.Document.Metadata)
		}
		if point != nil {
			lat, lon = point.Lat, point.Lon
		}
		if _, err := insert.ExecContext(ctx, defaultDataset, chunkID, documentID, chunk.Text, hash,
			chunk.Ordinal, chunk.TokenCount, chunk.StartOffset, chunk.EndOffset, chunk.Method,
			string(meta), blob, lat, lon, now, now); err != nil {
			return nil, &vectordb.StorageError{Op: "insert chunk", Err: err}
		}
		result.Stored++
	}
	if result.Stored == 0 && !updated {
		// Every chunk of a new document already exists elsewhere: report the
		// document as skipped, keep nothing. A re-ingested document keeps its
		// row, with a zero chunk count.
		result.DocumentID = ""
		return result, nil
	}

	docMeta, err := json.Marshal(request.Document.Metadata)
	if err != nil {
		return nil, &vectordb.StorageError{Op: "encode document meta", Err: err}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO rag_document(id, title, source, language, meta, chunk_count, created_at, updated_at)
VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	title=excluded.title,
	source=excluded.source,
	language=excluded.language,
	meta=excluded.meta,
	chunk_count=excluded.chunk_count,
	updated_at=excluded.updated_at`,
		documentID, request.Document.Title, request.Document.Source, request.Document.Language,
		string(docMeta), result.Stored, createdAt, now); err != nil {
		return nil, &vectordb.StorageError{Op: "upsert document", Err: err}
	}
	return result, nil
}

// BatchStore processes documents sequentially; a failed document is recorded
// and does not abort the rest of the batch.
func (s *Store) BatchStore(ctx context.Context, requests []vectordb.StoreRequest) (*vectordb.BatchStoreResult, error) {
	result := &vectordb.BatchStoreResult{DocumentIDs: make([]string, len(requests))}
	for i, request := range requests {
		stored, err := s.Store(ctx, request)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		result.DocumentIDs[i] = stored.DocumentID
		result.Stored += stored.Stored
		result.Skipped += stored.Skipped
	}
	return result, nil
}

// GetDocument returns document metadata.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*schema.Document, error) {
	document := &schema.Document{}
	var meta string
	err := s.db.QueryRowContext(ctx, `SELECT id, title, source, language, meta, chunk_count, created_at, updated_at
FROM rag_document WHERE id = ?`, documentID).
		Scan(&document.ID, &document.Title, &document.Source, &document.Language, &meta,
			&document.ChunkCount, &document.CreatedAt, &document.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, vectordb.ErrNotFound
	}
	if err != nil {
		return nil, &vectordb.StorageError{Op: "get document", Err: err}
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &document.Metadata); err != nil {
			return nil, &vectordb.StorageError{Op: "decode document meta", Err: err}
		}
	}
	return document, nil
}

// DeleteDocument removes a document and cascades to its chunks.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &vectordb.StorageError{Op: "begin", Err: err}
	}
	outcome, err := tx.ExecContext(ctx, `DELETE FROM rag_document WHERE id = ?`, documentID)
	if err != nil {
		_ = tx.Rollback()
		return &vectordb.StorageError{Op: "delete document", Err: err}
	}
	affected, _ := outcome.RowsAffected()
	if affected == 0 {
		_ = tx.Rollback()
		return vectordb.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = ?`, s.shadow), documentID); err != nil {
		_ = tx.Rollback()
		return &vectordb.StorageError{Op: "delete chunks", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &vectordb.StorageError{Op: "commit", Err: err}
	}
	return nil
}
