// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

// Semantic conventions for Flakewatch pipeline telemetry.
const (
	// Pass attributes
	AttrPassID     = "flakewatch.pass.id"
	AttrPassStage  = "flakewatch.pass.stage"
	AttrTimeWindow = "flakewatch.pass.time_window_days"

	// Input/output attributes
	AttrFailureCount = "flakewatch.failures.count"
	AttrClusterCount = "flakewatch.clusters.count"
	AttrNoiseCount   = "flakewatch.noise.count"

	// Embedding attributes
	AttrEmbedProvider  = "flakewatch.embedding.provider"
	AttrEmbedBatchSize = "flakewatch.embedding.batch_size"
	AttrEmbedBatches   = "flakewatch.embedding.batches"
	AttrEmbedDimension = "flakewatch.embedding.dimension"

	// Clustering attributes
	AttrEpsilon   = "flakewatch.cluster.epsilon"
	AttrMinPoints = "flakewatch.cluster.min_points"
	AttrDistance  = "flakewatch.cluster.distance"

	// Store attributes
	AttrStoreAdapter = "flakewatch.store.adapter"

	// Error attributes
	AttrErrorCode = "flakewatch.error.code"
)
