// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/knadh/koanf/v2"

	"github.com/jllopis/flakewatch/pkg/errors"
)

func resetKoanf(t *testing.T) {
	t.Helper()
	k = koanf.New(".")
}

func TestLoadDefaults(t *testing.T) {
	resetKoanf(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Detection.Epsilon != 0.3 {
		t.Errorf("expected default epsilon 0.3, got %v", cfg.Detection.Epsilon)
	}
	if cfg.Detection.MinPoints != 2 || cfg.Detection.MinClusterSize != 2 {
		t.Errorf("unexpected default clustering params: %+v", cfg.Detection)
	}
	if cfg.Detection.MaxClusters != 5 {
		t.Errorf("expected default maxClusters 5, got %d", cfg.Detection.MaxClusters)
	}
	if cfg.Detection.Distance != "cosine" {
		t.Errorf("expected default distance cosine, got %s", cfg.Detection.Distance)
	}
	if cfg.Detection.TimeWindowDays != 7 {
		t.Errorf("expected default window 7 days, got %d", cfg.Detection.TimeWindowDays)
	}
	if cfg.Embedding.Provider != "gemini" {
		t.Errorf("expected default provider gemini, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.MaxBatchSize != 5 || cfg.Embedding.BatchDelayMS != 100 {
		t.Errorf("unexpected embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Store.Adapter != "memory" {
		t.Errorf("expected default store memory, got %s", cfg.Store.Adapter)
	}
}

func TestLoadFile(t *testing.T) {
	resetKoanf(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "flakewatch.yaml")
	content := `
detection:
  epsilon: 0.15
  max_clusters: 10
store:
  adapter: file
  path: /tmp/flakewatch-data
embedding:
  provider: mock
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Detection.Epsilon != 0.15 {
		t.Errorf("expected epsilon from file, got %v", cfg.Detection.Epsilon)
	}
	if cfg.Detection.MaxClusters != 10 {
		t.Errorf("expected maxClusters from file, got %d", cfg.Detection.MaxClusters)
	}
	if cfg.Store.Adapter != "file" || cfg.Store.Path != "/tmp/flakewatch-data" {
		t.Errorf("expected store from file, got %+v", cfg.Store)
	}
	// Untouched keys keep defaults.
	if cfg.Detection.MinPoints != 2 {
		t.Errorf("expected default minPoints to survive, got %d", cfg.Detection.MinPoints)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	resetKoanf(t)
	t.Setenv("FLAKEWATCH_STORE_ADAPTER", "sqlite")
	t.Setenv("FLAKEWATCH_STORE_PATH", "/tmp/fw.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Adapter != "sqlite" {
		t.Errorf("expected adapter from env, got %s", cfg.Store.Adapter)
	}
	if cfg.Store.Path != "/tmp/fw.db" {
		t.Errorf("expected path from env, got %s", cfg.Store.Path)
	}
}

func TestOverridesWin(t *testing.T) {
	resetKoanf(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "flakewatch.yaml")
	if err := os.WriteFile(path, []byte("detection:\n  epsilon: 0.2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadWithOverrides(path, []string{"detection.epsilon=0.5", "embedding.provider=mock"})
	if err != nil {
		t.Fatalf("LoadWithOverrides failed: %v", err)
	}
	if cfg.Detection.Epsilon != 0.5 {
		t.Errorf("expected flag override to win, got %v", cfg.Detection.Epsilon)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected provider override, got %s", cfg.Embedding.Provider)
	}
}

func TestInvalidOverride(t *testing.T) {
	resetKoanf(t)
	_, err := LoadWithOverrides("", []string{"garbage"})
	if errors.CodeOf(err) != errors.CodeConfig {
		t.Fatalf("expected CodeConfig for malformed --set, got %v", err)
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		set     string
		message string
	}{
		{"epsilon", "detection.epsilon=-0.1", "epsilon must be greater than 0"},
		{"minPoints", "detection.min_points=0", "minPoints must be at least 1"},
		{"minClusterSize", "detection.min_cluster_size=0", "minClusterSize must be at least 1"},
		{"distance", "detection.distance=manhattan", "distance must be one of"},
		{"window", "detection.time_window_days=0", "timeWindow.days must be a positive integer"},
		{"provider", "embedding.provider=openai", "embedding provider must be one of"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resetKoanf(t)
			_, err := LoadWithOverrides("", []string{tc.set})
			if err == nil {
				t.Fatal("expected ConfigError")
			}
			if errors.CodeOf(err) != errors.CodeConfig {
				t.Fatalf("expected CodeConfig, got %v", errors.CodeOf(err))
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected message containing %q, got %q", tc.message, err.Error())
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	resetKoanf(t)
	path := filepath.Join(t.TempDir(), "flakewatch.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated config must load: %v", err)
	}
	if cfg.Store.Adapter != "file" {
		t.Errorf("expected scaffolded store adapter file, got %s", cfg.Store.Adapter)
	}

	// Refuses to clobber.
	if err := WriteDefault(path); errors.CodeOf(err) != errors.CodeConfig {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
}
