// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/jllopis/flakewatch/pkg/errors"
)

// Adapter names accepted by the factory.
const (
	AdapterMemory = "memory"
	AdapterFile   = "file"
	AdapterSQLite = "sqlite"
	AdapterGCS    = "gcs"
)

// New builds the store selected by cfg.Adapter.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Adapter {
	case "", AdapterMemory:
		return NewInMemory(), nil
	case AdapterFile:
		if cfg.Path == "" {
			return nil, errors.New(errors.CodeConfig, "file store requires store.path", nil)
		}
		return NewFileStore(cfg.Path), nil
	case AdapterSQLite:
		if cfg.Path == "" {
			return nil, errors.New(errors.CodeConfig, "sqlite store requires store.path", nil)
		}
		return OpenSQLite(cfg.Path)
	case AdapterGCS:
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, errors.Newf(errors.CodeConfig,
			"store adapter must be one of memory, file, sqlite, gcs; got %q", cfg.Adapter)
	}
}
