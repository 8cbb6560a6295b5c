package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the chunker tool.
type Config struct {
	Train   TrainConfig   `yaml:"train"`
	Parse   ParseConfig   `yaml:"parse"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Logging LoggingConfig `yaml:"logging"`
}

// TrainConfig holds CRF training configuration.
type TrainConfig struct {
	C1             float64 `yaml:"c1"` // L1 regularization
	C2             float64 `yaml:"c2"` // L2 regularization
	MaxIterations  int     `yaml:"max_iterations"`
	LearningRate   float64 `yaml:"learning_rate"`
	Seed           int64   `yaml:"seed"`
	Verbose        bool    `yaml:"verbose"`
	ReportDuration bool    `yaml:"report_duration"`
	ModelFile      string  `yaml:"model_file"` // relative to the data dir unless absolute
}

// ParseConfig holds parsing configuration.
type ParseConfig struct {
	Mode    string `yaml:"mode"`    // "crf" or "rules"
	Lenient bool   `yaml:"lenient"` // repair orphan I- tags instead of failing
	Format  string `yaml:"format"`  // "brackets", "tree", "conll", "json"
	Grammar string `yaml:"grammar"` // optional cascade file for rules mode

	CacheSize int `yaml:"cache_size"` // parsed sentences kept for reuse, 0 disables
}

// CorpusConfig holds training corpus discovery configuration.
type CorpusConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Train: TrainConfig{
			C1:             0.4,
			C2:             0.04,
			MaxIterations:  400,
			LearningRate:   0.1,
			Seed:           1,
			Verbose:        true,
			ReportDuration: true,
			ModelFile:      "chunker_crf.model",
		},
		Parse: ParseConfig{
			Mode:      "crf",
			Format:    "brackets",
			CacheSize: 1024,
		},
		Corpus: CorpusConfig{
			Includes: []string{"**/*.conll", "**/*.iob", "**/*.chunk"},
			Excludes: []string{"**/.git/**", "**/.chunker/**", "**/node_modules/**"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for chunker.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "chunker.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".chunker", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ModelPath returns the path of the trained model artifact.
func (c *Config) ModelPath(dir string) string {
	if filepath.IsAbs(c.Train.ModelFile) {
		return c.Train.ModelFile
	}
	return filepath.Join(dir, ".chunker", c.Train.ModelFile)
}

// EnsureDataDir ensures the .chunker directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".chunker"), 0755)
}
