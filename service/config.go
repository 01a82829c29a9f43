package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/viant/ragcore/chunker"
	"github.com/viant/ragcore/vectordb"
)

// Config defines service settings loaded from YAML.
type Config struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
}

// EmbedderConfig defines embedding endpoint settings.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"baseURL"`
	APIKeyEnv string `yaml:"apiKeyEnv,omitempty"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch"`
}

// ChunkingConfig defines default chunking settings. Overlap is a pointer so
// that an explicit zero survives defaulting.
type ChunkingConfig struct {
	Method    string `yaml:"method"`
	ChunkSize int    `yaml:"chunkSize"`
	Overlap   *int   `yaml:"overlap"`
	Tokenizer string `yaml:"tokenizer"`
}

// StoreConfig defines vector store settings.
type StoreConfig struct {
	Engine      string `yaml:"engine"`
	DSN         string `yaml:"dsn"`
	SnapshotURL string `yaml:"snapshotURL,omitempty"`
	MinConns    int    `yaml:"minConns"`
	MaxConns    int    `yaml:"maxConns"`
}

// RetrievalConfig defines query-time defaults. SimilarityThreshold is a
// pointer so that an explicit zero survives defaulting; the threshold is
// strict, so zero and the 0.7 default behave differently.
type RetrievalConfig struct {
	TopK                int      `yaml:"topK"`
	SimilarityThreshold *float64 `yaml:"similarityThreshold"`
	RadiusMeters        float64  `yaml:"radiusMeters"`
	Alpha               float64  `yaml:"alpha"`
	MaxPromptChars      int      `yaml:"maxPromptChars"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
	RateBurst     int     `yaml:"rateBurst"`
	GeocodeURL    string  `yaml:"geocodeURL,omitempty"`
}

// DefaultConfig returns a config with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Embedder.Provider == "" {
		c.Embedder.Provider = "ollama"
	}
	if c.Embedder.BatchSize <= 0 {
		c.Embedder.BatchSize = 64
	}
	if c.Chunking.Method == "" {
		c.Chunking.Method = chunker.MethodSentence
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 512
	}
	if c.Chunking.Overlap == nil {
		overlap := 50
		c.Chunking.Overlap = &overlap
	}
	if c.Store.Engine == "" {
		c.Store.Engine = "sqlitevec"
	}
	if c.Store.MinConns <= 0 {
		c.Store.MinConns = 2
	}
	if c.Store.MaxConns <= 0 {
		c.Store.MaxConns = 4
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = vectordb.DefaultTopK
	}
	if c.Retrieval.SimilarityThreshold == nil {
		threshold := 0.7
		c.Retrieval.SimilarityThreshold = &threshold
	}
	if c.Retrieval.RadiusMeters <= 0 {
		c.Retrieval.RadiusMeters = vectordb.DefaultRadiusMeters
	}
	if c.Retrieval.Alpha == 0 {
		c.Retrieval.Alpha = vectordb.DefaultAlpha
	}
	if c.Retrieval.MaxPromptChars <= 0 {
		c.Retrieval.MaxPromptChars = 12000
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RatePerSecond <= 0 {
		c.Server.RatePerSecond = 20
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 40
	}
}

func expandUserPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
