// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"os"

	"github.com/jllopis/flakewatch/pkg/config"
	"github.com/jllopis/flakewatch/pkg/store"
)

func runReport(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("report", flag.ContinueOnError)
	limit := cmd.Int("limit", 0, "Maximum clusters to show, 0 shows all")
	adapter := cmd.String("store", cfg.Store.Adapter, "Store adapter (memory, file, sqlite, gcs)")
	storePath := cmd.String("store-path", cfg.Store.Path, "Store data directory or database file")
	if err := cmd.Parse(args); err != nil {
		os.Exit(exitUsage)
	}

	cfg.Store.Adapter = *adapter
	cfg.Store.Path = *storePath

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		exitWith(err, global.JSON)
	}

	clusters, err := st.FetchClusters(ctx, *limit)
	if err != nil {
		exitWith(err, global.JSON)
	}
	printClusters(clusters, global.JSON)
}
