// SPDX-License-Identifier: Apache-2.0

// Package config loads Flakewatch configuration from defaults, an optional
// YAML file, FLAKEWATCH_* environment variables and CLI overrides, in that
// order; later sources win.
package config

import (
	"os"
	"strings"
	"time"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/flakewatch/pkg/cluster"
	"github.com/jllopis/flakewatch/pkg/embed"
	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/store"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Detection DetectionConfig `koanf:"detection"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Store     store.Config    `koanf:"store"`
	Vector    VectorConfig    `koanf:"vector"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type DetectionConfig struct {
	TimeWindowDays int     `koanf:"time_window_days"`
	Epsilon        float64 `koanf:"epsilon"`
	MinPoints      int     `koanf:"min_points"`
	MinClusterSize int     `koanf:"min_cluster_size"`
	MaxClusters    int     `koanf:"max_clusters"`
	Distance       string  `koanf:"distance"`
}

type EmbeddingConfig struct {
	Provider     string `koanf:"provider"` // gemini, mock
	Model        string `koanf:"model"`
	APIKey       string `koanf:"api_key"`
	MaxBatchSize int    `koanf:"max_batch_size"`
	BatchDelayMS int    `koanf:"batch_delay_ms"`
}

type VectorConfig struct {
	Enabled    bool   `koanf:"enabled"`
	QdrantAddr string `koanf:"qdrant_addr"`
	Collection string `koanf:"collection"`
}

// Global k instance
var k = koanf.New(".")

func setDefaults() {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	k.Set("detection.time_window_days", 7)
	k.Set("detection.epsilon", cluster.DefaultEpsilon)
	k.Set("detection.min_points", cluster.DefaultMinPoints)
	k.Set("detection.min_cluster_size", cluster.DefaultMinClusterSize)
	k.Set("detection.max_clusters", cluster.DefaultMaxClusters)
	k.Set("detection.distance", cluster.DistanceCosine)

	k.Set("embedding.provider", "gemini")
	k.Set("embedding.max_batch_size", embed.DefaultMaxBatchSize)
	k.Set("embedding.batch_delay_ms", int(embed.DefaultBatchDelay/time.Millisecond))

	k.Set("store.adapter", store.AdapterMemory)

	k.Set("vector.enabled", false)
	k.Set("vector.qdrant_addr", "localhost:6334")
	k.Set("vector.collection", "flakewatch_failures")
}

// Load reads configuration from the optional file at path, then the
// environment (FLAKEWATCH_STORE_ADAPTER -> store.adapter).
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load plus "key=value" overrides applied last, so
// command-line flags win over file and environment.
func LoadWithOverrides(path string, sets []string) (*Config, error) {
	setDefaults()

	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfig, "failed to load config file", err).
				WithContext("path", path)
		}
	}

	if err := k.Load(env.Provider("FLAKEWATCH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FLAKEWATCH_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to load environment", err)
	}

	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok {
			return nil, errors.Newf(errors.CodeConfig, "invalid --set %q, want key=value", set)
		}
		k.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to unmarshal config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Detection.TimeWindowDays < 1 {
		return errors.Newf(errors.CodeConfig,
			"timeWindow.days must be a positive integer, got %d", c.Detection.TimeWindowDays)
	}
	if err := c.ClusterParams().Validate(); err != nil {
		return err
	}
	switch c.Embedding.Provider {
	case "gemini", "mock":
	default:
		return errors.Newf(errors.CodeConfig,
			"embedding provider must be one of gemini, mock; got %q", c.Embedding.Provider)
	}
	return nil
}

// ClusterParams maps the detection section onto clustering parameters.
func (c *Config) ClusterParams() cluster.Params {
	return cluster.Params{
		Epsilon:        c.Detection.Epsilon,
		MinPoints:      c.Detection.MinPoints,
		MinClusterSize: c.Detection.MinClusterSize,
		MaxClusters:    c.Detection.MaxClusters,
		Distance:       c.Detection.Distance,
	}
}

// BatchDelay returns the embedding pacing delay as a duration.
func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Embedding.BatchDelayMS) * time.Millisecond
}

// WriteDefault writes a starter configuration file with the default values,
// refusing to clobber an existing one.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf(errors.CodeConfig, "config file already exists: %s", path)
	}

	defaults := map[string]interface{}{
		"log": map[string]interface{}{"level": "info", "format": "text"},
		"detection": map[string]interface{}{
			"time_window_days": 7,
			"epsilon":          cluster.DefaultEpsilon,
			"min_points":       cluster.DefaultMinPoints,
			"min_cluster_size": cluster.DefaultMinClusterSize,
			"max_clusters":     cluster.DefaultMaxClusters,
			"distance":         cluster.DistanceCosine,
		},
		"embedding": map[string]interface{}{
			"provider":       "gemini",
			"max_batch_size": embed.DefaultMaxBatchSize,
			"batch_delay_ms": 100,
		},
		"store": map[string]interface{}{
			"adapter": store.AdapterFile,
			"path":    ".flakewatch",
		},
	}
	payload, err := yaml.Marshal(defaults)
	if err != nil {
		return errors.New(errors.CodeConfig, "failed to render default config", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return errors.New(errors.CodeConfig, "failed to write config file", err)
	}
	return nil
}
