package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Train.C1 != 0.4 {
		t.Errorf("expected C1=0.4, got %f", cfg.Train.C1)
	}
	if cfg.Train.C2 != 0.04 {
		t.Errorf("expected C2=0.04, got %f", cfg.Train.C2)
	}
	if cfg.Train.MaxIterations != 400 {
		t.Errorf("expected MaxIterations=400, got %d", cfg.Train.MaxIterations)
	}
	if cfg.Train.ModelFile != "chunker_crf.model" {
		t.Errorf("expected ModelFile=chunker_crf.model, got %s", cfg.Train.ModelFile)
	}
	if !cfg.Train.Verbose || !cfg.Train.ReportDuration {
		t.Error("expected verbose training with duration report by default")
	}
	if cfg.Parse.Format != "brackets" {
		t.Errorf("expected Format=brackets, got %s", cfg.Parse.Format)
	}
	if cfg.Parse.Lenient {
		t.Error("expected strict decoding by default")
	}
	if cfg.Parse.CacheSize != 1024 {
		t.Errorf("expected CacheSize=1024, got %d", cfg.Parse.CacheSize)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "chunker.yaml")

	content := `
train:
  c1: 0.1
  max_iterations: 50
parse:
  mode: rules
  lenient: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Train.C1 != 0.1 {
		t.Errorf("expected C1=0.1, got %f", cfg.Train.C1)
	}
	if cfg.Train.MaxIterations != 50 {
		t.Errorf("expected MaxIterations=50, got %d", cfg.Train.MaxIterations)
	}
	if cfg.Train.C2 != 0.04 {
		t.Errorf("expected untouched C2=0.04, got %f", cfg.Train.C2)
	}
	if cfg.Parse.Mode != "rules" || !cfg.Parse.Lenient {
		t.Errorf("expected rules/lenient, got %s/%v", cfg.Parse.Mode, cfg.Parse.Lenient)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "chunker.yaml")
	if err := os.WriteFile(configPath, []byte("train: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".chunker", "config.yaml")

	content := `
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Level=debug, got %s", cfg.Logging.Level)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunker.yaml")

	cfg := DefaultConfig()
	cfg.Train.Seed = 42
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Train.Seed != 42 {
		t.Errorf("expected Seed=42, got %d", loaded.Train.Seed)
	}
}

func TestModelPath(t *testing.T) {
	cfg := DefaultConfig()

	path := cfg.ModelPath("/home/user/corpus")
	expected := filepath.Join("/home/user/corpus", ".chunker", "chunker_crf.model")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Train.ModelFile = "/tmp/models/np.model"
	if got := cfg.ModelPath("/home/user/corpus"); got != "/tmp/models/np.model" {
		t.Errorf("expected absolute model file to be kept, got %s", got)
	}
}
