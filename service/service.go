// Package service composes chunking, embedding and vector storage into the
// ingestion and query pipeline.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/viant/ragcore/chunker"
	"github.com/viant/ragcore/embeddings"
	"github.com/viant/ragcore/embeddings/ollama"
	"github.com/viant/ragcore/embeddings/openai"
	"github.com/viant/ragcore/extract"
	"github.com/viant/ragcore/tokenizer"
	"github.com/viant/ragcore/vectordb"
	"github.com/viant/ragcore/vectordb/mem"
	"github.com/viant/ragcore/vectordb/sqlitevec"
)

// Option configures the Service.
type Option func(*Service)

// WithStore sets the vector store, overriding the config-driven choice.
func WithStore(store vectordb.VectorStore) Option {
	return func(s *Service) { s.store = store }
}

// WithEncoder sets the embedding encoder, overriding the config-driven one.
func WithEncoder(encoder *embeddings.Encoder) Option {
	return func(s *Service) { s.encoder = encoder }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service wires the ingestion path (extract, chunk, embed, store) and the
// query path (embed, search, prompt) around one vector store.
type Service struct {
	config     *Config
	encoder    *embeddings.Encoder
	store      vectordb.VectorStore
	extractors *extract.Factory
	logger     *slog.Logger

	mu       sync.Mutex
	chunkers map[string]chunker.Chunker
}

// New creates a Service from config; options override individual components.
func New(config *Config, opts ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Service{
		config:     config,
		extractors: extract.NewFactory(),
		logger:     slog.Default().With("component", "service"),
		chunkers:   make(map[string]chunker.Chunker),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.encoder == nil {
		encoder, err := newEncoder(config.Embedder)
		if err != nil {
			return nil, err
		}
		s.encoder = encoder
	}
	if s.store == nil {
		store, err := newStore(config.Store)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

// Store exposes the underlying vector store.
func (s *Service) Store() vectordb.VectorStore { return s.store }

// Encoder exposes the embedding encoder.
func (s *Service) Encoder() *embeddings.Encoder { return s.encoder }

// Close releases the vector store.
func (s *Service) Close() error {
	return s.store.Close()
}

func newEncoder(config EmbedderConfig) (*embeddings.Encoder, error) {
	var client embeddings.Embedder
	switch config.Provider {
	case "ollama":
		client = ollama.New(config.Model, ollama.WithBaseURL(config.BaseURL))
	case "openai":
		var opts []openai.Option
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		if config.APIKeyEnv != "" {
			opts = append(opts, openai.WithAPIKey(os.Getenv(config.APIKeyEnv)))
		}
		client = openai.New(config.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", config.Provider)
	}
	return embeddings.NewEncoder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithDimension(config.Dimension)), nil
}

func newStore(config StoreConfig) (vectordb.VectorStore, error) {
	switch config.Engine {
	case "mem":
		var opts []mem.StoreOption
		if config.SnapshotURL != "" {
			opts = append(opts, mem.WithBaseURL(config.SnapshotURL))
		}
		store := mem.NewStore(opts...)
		if config.SnapshotURL != "" {
			if err := store.Load(context.Background()); err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
		}
		return store, nil
	case "sqlitevec":
		return sqlitevec.NewStore(
			sqlitevec.WithDSN(config.DSN),
			sqlitevec.WithEnsureSchema(true),
			sqlitevec.WithPoolSize(config.MinConns, config.MaxConns))
	default:
		return nil, fmt.Errorf("unknown store engine %q", config.Engine)
	}
}

// chunkerFor returns a cached chunker for the given settings. A nil overlap
// uses the configured default; an explicit zero disables window overlap.
func (s *Service) chunkerFor(method string, chunkSize int, overlap *int) chunker.Chunker {
	if method == "" {
		method = s.config.Chunking.Method
	}
	if chunkSize <= 0 {
		chunkSize = s.config.Chunking.ChunkSize
	}
	windowOverlap := 0
	if s.config.Chunking.Overlap != nil {
		windowOverlap = *s.config.Chunking.Overlap
	}
	if overlap != nil && *overlap >= 0 {
		windowOverlap = *overlap
	}
	key := fmt.Sprintf("%s/%d/%d", method, chunkSize, windowOverlap)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chunkers[key]; ok {
		return c
	}
	c := chunker.New(method,
		chunker.WithChunkSize(chunkSize),
		chunker.WithOverlap(windowOverlap),
		chunker.WithTokenizer(tokenizer.New(s.config.Chunking.Tokenizer)))
	s.chunkers[key] = c
	return c
}
