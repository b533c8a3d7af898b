// SPDX-License-Identifier: Apache-2.0

// Package embed turns enriched failure records into embedding vectors.
//
// It owns the textual context contract used as embedding input, and the
// orchestration around an external embedding provider: batching, inter-batch
// pacing, order preservation and post-condition validation.
package embed

import "context"

// Embedder converts a single text into a vector.
type Embedder interface {
	// Embed converts a text string into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds an ordered batch of texts in one provider call.
// The result is equal-length and index-aligned with the input.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderFactory constructs the embedding provider on first use, so that
// provider misconfiguration surfaces when the first embedding is requested
// rather than at wiring time.
type ProviderFactory func(ctx context.Context) (Embedder, error)

// StaticProvider adapts an already-constructed embedder into a factory.
func StaticProvider(e Embedder) ProviderFactory {
	return func(context.Context) (Embedder, error) { return e, nil }
}
