package benchmarks

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/armemu/cache"
	"github.com/sarchlab/armemu/emu"
)

// Config holds the settings of one suite run.
type Config struct {
	// CacheSize is the number of instruction cache slots. Must be a power
	// of two in [8, 1024]. Default: 8.
	CacheSize int `json:"cache_size"`

	// CacheKey selects what the cache is keyed by: "word" (the fetched
	// instruction word) or "address" (the PC). Default: "word".
	CacheKey string `json:"cache_key"`

	// MaxInstructions is the per-call instruction budget. 0 means no
	// limit. Default: 1<<24.
	MaxInstructions uint64 `json:"max_instructions"`

	// Workers is the number of goroutines running cases. With one worker
	// all cases share a single cache. Default: 1.
	Workers int `json:"workers"`

	// ShowSlots adds the final cache slot contents to the report.
	ShowSlots bool `json:"show_slots"`
}

// DefaultConfig returns a Config with the default values.
func DefaultConfig() *Config {
	return &Config{
		CacheSize:       cache.DefaultSize,
		CacheKey:        emu.CacheKeyInstructionWord.String(),
		MaxInstructions: emu.DefaultMaxInstructions,
		Workers:         1,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if err := cache.ValidateSize(c.CacheSize); err != nil {
		return fmt.Errorf("cache_size: %w", err)
	}
	if _, err := emu.ParseCacheKey(c.CacheKey); err != nil {
		return fmt.Errorf("cache_key: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
