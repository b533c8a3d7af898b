// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jllopis/flakewatch/pkg/config"
	"github.com/jllopis/flakewatch/pkg/detector"
	"github.com/jllopis/flakewatch/pkg/embed"
	"github.com/jllopis/flakewatch/pkg/embed/gemini"
	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/model"
	"github.com/jllopis/flakewatch/pkg/store"
	"github.com/jllopis/flakewatch/pkg/store/qdrant"
	"github.com/jllopis/flakewatch/pkg/telemetry"
)

func runDetect(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("detect", flag.ContinueOnError)
	days := cmd.Int("days", cfg.Detection.TimeWindowDays, "Fetch window in days")
	epsilon := cmd.Float64("epsilon", cfg.Detection.Epsilon, "DBSCAN epsilon")
	minPoints := cmd.Int("min-points", cfg.Detection.MinPoints, "DBSCAN core-point threshold")
	minClusterSize := cmd.Int("min-cluster-size", cfg.Detection.MinClusterSize, "Smallest reported cluster")
	maxClusters := cmd.Int("max-clusters", cfg.Detection.MaxClusters, "Output cap, 0 keeps all")
	distance := cmd.String("distance", cfg.Detection.Distance, "Distance metric (cosine, euclidean)")
	adapter := cmd.String("store", cfg.Store.Adapter, "Store adapter (memory, file, sqlite, gcs)")
	storePath := cmd.String("store-path", cfg.Store.Path, "Store data directory or database file")
	input := cmd.String("input", "", "Playwright JSON report to ingest before detecting")
	embedder := cmd.String("embedder", cfg.Embedding.Provider, "Embedding provider (gemini, mock)")
	dryRun := cmd.Bool("dry-run", false, "Do not persist clusters")
	if err := cmd.Parse(args); err != nil {
		os.Exit(exitUsage)
	}

	// Flags win over file and environment.
	cfg.Detection.TimeWindowDays = *days
	cfg.Detection.Epsilon = *epsilon
	cfg.Detection.MinPoints = *minPoints
	cfg.Detection.MinClusterSize = *minClusterSize
	cfg.Detection.MaxClusters = *maxClusters
	cfg.Detection.Distance = *distance
	cfg.Store.Adapter = *adapter
	cfg.Store.Path = *storePath
	cfg.Embedding.Provider = *embedder
	if err := cfg.Validate(); err != nil {
		exitWith(err, global.JSON)
	}

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		exitWith(err, global.JSON)
	}

	provider := providerFactory(cfg)
	var opts []detector.Option
	opts = append(opts,
		detector.WithTimeWindow(cfg.Detection.TimeWindowDays),
		detector.WithOrchestrator(embed.NewOrchestrator(provider,
			embed.WithMaxBatchSize(cfg.Embedding.MaxBatchSize),
			embed.WithBatchDelay(cfg.BatchDelay()),
		)),
	)
	if cfg.Telemetry.Enabled {
		if metrics, err := telemetry.NewPassMetrics(); err == nil {
			opts = append(opts, detector.WithMetrics(metrics))
		}
	}
	if cfg.Vector.Enabled {
		sink, err := qdrant.New(cfg.Vector.QdrantAddr)
		if err != nil {
			slog.Warn("qdrant sink disabled", slog.Any("error", err))
		} else {
			opts = append(opts, detector.WithVectorSink(sink, cfg.Vector.Collection))
		}
	}

	d, err := detector.New(st, provider, cfg.ClusterParams(), opts...)
	if err != nil {
		exitWith(err, global.JSON)
	}

	var clusters []model.FailureCluster
	switch {
	case *input != "":
		failures, err := store.ReadPlaywrightReport(*input)
		if err != nil {
			exitWith(err, global.JSON)
		}
		slog.Info("ingested runner report", slog.String("path", *input), slog.Int("failures", len(failures)))
		if !*dryRun {
			if err := st.SaveFailures(ctx, failures); err != nil {
				exitWith(err, global.JSON)
			}
		}
		clusters, err = d.Detect(ctx, failures)
		if err != nil {
			exitWith(err, global.JSON)
		}
		if !*dryRun {
			if err := st.SaveClusters(ctx, clusters); err != nil {
				exitWith(err, global.JSON)
			}
		}
	case *dryRun:
		failures, err := st.FetchFailures(ctx, cfg.Detection.TimeWindowDays)
		if err != nil {
			exitWith(err, global.JSON)
		}
		clusters, err = d.Detect(ctx, failures)
		if err != nil {
			exitWith(err, global.JSON)
		}
	default:
		clusters, err = d.Run(ctx)
		if err != nil {
			exitWith(err, global.JSON)
		}
	}

	printClusters(clusters, global.JSON)
}

// providerFactory defers embedder construction until the first embedding
// request, so a missing credential only matters when there is work to do.
func providerFactory(cfg *config.Config) embed.ProviderFactory {
	switch cfg.Embedding.Provider {
	case "mock":
		return embed.StaticProvider(embed.NewMock())
	default:
		return func(ctx context.Context) (embed.Embedder, error) {
			var opts []gemini.Option
			if cfg.Embedding.Model != "" {
				opts = append(opts, gemini.WithModel(cfg.Embedding.Model))
			}
			return gemini.New(ctx, cfg.Embedding.APIKey, opts...)
		}
	}
}

func printClusters(clusters []model.FailureCluster, asJSON bool) {
	if asJSON {
		payload, err := json.MarshalIndent(clusters, "", "  ")
		if err != nil {
			exitWith(errors.New(errors.CodeInternal, "failed to render output", err), true)
		}
		fmt.Println(string(payload))
		return
	}

	if len(clusters) == 0 {
		fmt.Println("no flaky clusters found")
		return
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSIZE\tFIRST_SEEN\tLAST_SEEN\tPATTERN\tASSERTION")
	for _, c := range clusters {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\n",
			c.ID,
			c.Metadata.FailureCount,
			c.Metadata.FirstSeen.UTC().Format(time.RFC3339),
			c.Metadata.LastSeen.UTC().Format(time.RFC3339),
			cell(c.FailurePattern),
			cell(c.AssertionPattern),
		)
	}
	_ = writer.Flush()
}

func cell(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" {
		return "-"
	}
	return value
}
