package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "WAYBACK_ARCHIVER_CONFIG"
	apiKeyEnv          = "WAYBACK_API_KEY"
	availabilityURLEnv = "WAYBACK_AVAILABILITY_URL"
	saveURLEnv         = "WAYBACK_SAVE_URL"
	cdxURLEnv          = "WAYBACK_CDX_URL"
	historyPathEnv     = "WAYBACK_HISTORY_DSN"
)

// Duration wraps time.Duration so YAML values can be written as "12s".
type Duration time.Duration

// UnmarshalYAML parses Go duration strings.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Archive ArchiveConfig `yaml:"archive"`
	Batch   BatchConfig   `yaml:"batch"`
	History HistoryConfig `yaml:"history"`
	Export  ExportConfig  `yaml:"export"`
	Input   InputConfig   `yaml:"input"`
}

// LoggingConfig controls console log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ArchiveConfig describes the remote archiving service endpoints.
type ArchiveConfig struct {
	AvailabilityURL string   `yaml:"availabilityUrl"`
	SaveURL         string   `yaml:"saveUrl"`
	CDXURL          string   `yaml:"cdxUrl"`
	WebURL          string   `yaml:"webUrl"`
	APIKey          string   `yaml:"apiKey"`
	CheckTimeout    Duration `yaml:"checkTimeout"`
}

// BatchConfig defines the pacing and verification knobs of one run.
type BatchConfig struct {
	Pacing           Duration `yaml:"pacing"`
	PropagationDelay Duration `yaml:"propagationDelay"`
	VerifyAttempts   int      `yaml:"verifyAttempts"`
	VerifyBaseDelay  Duration `yaml:"verifyBaseDelay"`
}

// HistoryConfig wires the optional local run-history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ExportConfig controls where CSV reports are written.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// InputConfig names a default input file; a CLI argument wins over it.
type InputConfig struct {
	File string `yaml:"file"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Archive.APIKey = v
	}

	if v := os.Getenv(availabilityURLEnv); v != "" {
		c.Archive.AvailabilityURL = v
	}

	if v := os.Getenv(saveURLEnv); v != "" {
		c.Archive.SaveURL = v
	}

	if v := os.Getenv(cdxURLEnv); v != "" {
		c.Archive.CDXURL = v
	}

	if v := os.Getenv(historyPathEnv); v != "" {
		c.History.Enabled = true
		c.History.Path = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Archive.AvailabilityURL != "" {
		base.Archive.AvailabilityURL = override.Archive.AvailabilityURL
	}
	if override.Archive.SaveURL != "" {
		base.Archive.SaveURL = override.Archive.SaveURL
	}
	if override.Archive.CDXURL != "" {
		base.Archive.CDXURL = override.Archive.CDXURL
	}
	if override.Archive.WebURL != "" {
		base.Archive.WebURL = override.Archive.WebURL
	}
	if override.Archive.APIKey != "" {
		base.Archive.APIKey = override.Archive.APIKey
	}
	if override.Archive.CheckTimeout != 0 {
		base.Archive.CheckTimeout = override.Archive.CheckTimeout
	}

	if override.Batch.Pacing != 0 {
		base.Batch.Pacing = override.Batch.Pacing
	}
	if override.Batch.PropagationDelay != 0 {
		base.Batch.PropagationDelay = override.Batch.PropagationDelay
	}
	if override.Batch.VerifyAttempts != 0 {
		base.Batch.VerifyAttempts = override.Batch.VerifyAttempts
	}
	if override.Batch.VerifyBaseDelay != 0 {
		base.Batch.VerifyBaseDelay = override.Batch.VerifyBaseDelay
	}

	if override.History.Enabled {
		base.History.Enabled = true
	}
	if override.History.Path != "" {
		base.History.Path = override.History.Path
	}

	if override.Export.Dir != "" {
		base.Export = override.Export
	}

	if override.Input.File != "" {
		base.Input = override.Input
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Archive: ArchiveConfig{
			AvailabilityURL: "https://archive.org/wayback/available",
			SaveURL:         "https://web.archive.org/save/",
			CDXURL:          "https://web.archive.org/cdx/search/cdx",
			WebURL:          "https://web.archive.org/web",
			APIKey:          "",
			CheckTimeout:    Duration(12 * time.Second),
		},
		Batch: BatchConfig{
			Pacing:           Duration(1200 * time.Millisecond),
			PropagationDelay: Duration(6 * time.Second),
			VerifyAttempts:   5,
			VerifyBaseDelay:  Duration(3 * time.Second),
		},
		History: HistoryConfig{Enabled: false, Path: "wayback_history.db"},
		Export:  ExportConfig{Dir: "results"},
		Input:   InputConfig{File: ""},
	}
}
