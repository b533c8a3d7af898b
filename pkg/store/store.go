// SPDX-License-Identifier: Apache-2.0

// Package store provides persistence backends for failures and clusters.
//
// Backends are capability sets behind one interface; a tagged factory picks
// the concrete adapter from configuration. The detection pipeline treats
// fetched records as read-only and replaces the cluster keyspace on save.
package store

import (
	"context"

	"github.com/jllopis/flakewatch/pkg/model"
)

// Default collection names shared by the adapters.
const (
	FailuresCollection = "test_failures"
	ClustersCollection = "flaky_clusters"
)

// Store is the persistence contract the pipeline and reporting flows consume.
type Store interface {
	// FetchFailures returns failures whose timestamp falls within the past
	// days from now.
	FetchFailures(ctx context.Context, days int) ([]model.TestFailure, error)

	// SaveFailures ingests failure records, typically parsed from a runner
	// report, so later detection passes can fetch them.
	SaveFailures(ctx context.Context, failures []model.TestFailure) error

	// SaveClusters persists the full ranked output of a pass, replacing any
	// previous pass on the cluster keyspace.
	SaveClusters(ctx context.Context, clusters []model.FailureCluster) error

	// FetchClusters retrieves the clusters of the last saved pass.
	// limit <= 0 returns all.
	FetchClusters(ctx context.Context, limit int) ([]model.FailureCluster, error)
}

// Config selects and parameterizes a store adapter.
type Config struct {
	// Adapter is one of "memory", "file", "sqlite", "gcs".
	Adapter string `koanf:"adapter"`

	// Path is the data directory (file adapter) or database file (sqlite).
	Path string `koanf:"path"`

	// Bucket and Prefix locate the documents for the gcs adapter.
	Bucket string `koanf:"bucket"`
	Prefix string `koanf:"prefix"`

	// ProjectID is accepted in configuration but not read by any adapter.
	// The gcs client authenticates through GOOGLE_APPLICATION_CREDENTIALS;
	// GOOGLE_CLOUD_PROJECT_ID is not read.
	ProjectID string `koanf:"project_id"`
}
