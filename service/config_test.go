package service

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "embedder:\n  model: e5\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedder.Provider != "ollama" {
		t.Errorf("expected ollama default, got %q", cfg.Embedder.Provider)
	}
	if cfg.Chunking.Overlap == nil || *cfg.Chunking.Overlap != 50 {
		t.Errorf("expected overlap default 50, got %v", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.SimilarityThreshold == nil || *cfg.Retrieval.SimilarityThreshold != 0.7 {
		t.Errorf("expected threshold default 0.7, got %v", cfg.Retrieval.SimilarityThreshold)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr default, got %q", cfg.Server.Addr)
	}
}

func TestLoadConfig_ExplicitZeroSurvives(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "chunking:\n  overlap: 0\nretrieval:\n  similarityThreshold: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.Overlap == nil || *cfg.Chunking.Overlap != 0 {
		t.Errorf("explicit zero overlap must survive defaulting, got %v", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.SimilarityThreshold == nil || *cfg.Retrieval.SimilarityThreshold != 0 {
		t.Errorf("explicit zero threshold must survive defaulting, got %v", cfg.Retrieval.SimilarityThreshold)
	}
}
