// Package config loads the YAML configuration file for the store and CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SearchConfig tunes the search index.
type SearchConfig struct {
	// MinimumMatchScore discards combined results scoring below it; each
	// pass discards below half of it.
	MinimumMatchScore float64 `yaml:"minimum_match_score"`
	// FuzzyPenalty scales every fuzzy-pass figure.
	FuzzyPenalty float64 `yaml:"fuzzy_penalty"`
	// EnableFuzzy turns the phonetic second pass on.
	EnableFuzzy bool `yaml:"enable_fuzzy"`
	// SplitCamelCase emits sub-tokens of compound words while indexing.
	SplitCamelCase bool `yaml:"split_camel_case"`

	TitleWeight       float64 `yaml:"title_weight"`
	TagWeight         float64 `yaml:"tag_weight"`
	DescriptionWeight float64 `yaml:"description_weight"`
	BodyWeight        float64 `yaml:"body_weight"`
}

// CacheConfig bounds the in-process cache.
type CacheConfig struct {
	MaxPerCategory int           `yaml:"max_per_category"`
	TTL            time.Duration `yaml:"ttl"`
}

// Config is the root of the configuration file.
type Config struct {
	// DatabasePath is the sqlite file location.
	DatabasePath string       `yaml:"database_path"`
	Cache        CacheConfig  `yaml:"cache"`
	Search       SearchConfig `yaml:"search"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DatabasePath: "quill.db",
		Cache: CacheConfig{
			MaxPerCategory: 1000,
			TTL:            5 * time.Minute,
		},
		Search: SearchConfig{
			MinimumMatchScore: 0.6,
			FuzzyPenalty:      0.8,
			EnableFuzzy:       true,
			SplitCamelCase:    true,
			TitleWeight:       1.6,
			TagWeight:         1.4,
			DescriptionWeight: 1.2,
			BodyWeight:        1.0,
		},
	}
}

// Load reads path, overlaying the file's values on the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
