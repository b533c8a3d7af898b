// SPDX-License-Identifier: Apache-2.0

package embed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/model"
)

const (
	// DefaultMaxBatchSize bounds how many contexts go to the provider at once.
	DefaultMaxBatchSize = 5
	// DefaultBatchDelay is the pacing pause between successive batches.
	DefaultBatchDelay = 100 * time.Millisecond
)

// Orchestrator batches and paces embedding requests against a provider,
// re-assembling results in input order and validating the returned vectors.
type Orchestrator struct {
	factory      ProviderFactory
	provider     Embedder
	maxBatchSize int
	batchDelay   time.Duration
	mu           sync.Mutex // guards lazy provider construction
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithMaxBatchSize sets the batch size. Values below 1 keep the default.
func WithMaxBatchSize(size int) Option {
	return func(o *Orchestrator) {
		if size >= 1 {
			o.maxBatchSize = size
		}
	}
}

// WithBatchDelay sets the inter-batch pacing delay.
func WithBatchDelay(delay time.Duration) Option {
	return func(o *Orchestrator) {
		if delay >= 0 {
			o.batchDelay = delay
		}
	}
}

// NewOrchestrator creates an orchestrator. The provider is constructed
// lazily via factory on the first embedding request.
func NewOrchestrator(factory ProviderFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:      factory,
		maxBatchSize: DefaultMaxBatchSize,
		batchDelay:   DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EmbedFailures renders each failure to its context, forwards the contexts to
// the provider in paced batches and pairs every failure with its vector.
// Empty input returns without touching the provider.
func (o *Orchestrator) EmbedFailures(ctx context.Context, failures []model.TestFailure) ([]model.EmbeddedFailure, error) {
	if len(failures) == 0 {
		return nil, nil
	}

	vectors, err := o.EmbedTexts(ctx, BuildContexts(failures))
	if err != nil {
		return nil, err
	}

	out := make([]model.EmbeddedFailure, len(failures))
	for i := range failures {
		out[i] = model.EmbeddedFailure{TestFailure: failures[i], Embedding: vectors[i]}
	}
	return out, nil
}

// EmbedTexts embeds an ordered sequence of texts, preserving order.
func (o *Orchestrator) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	o.mu.Lock()
	if o.provider == nil {
		provider, err := o.factory(ctx)
		if err != nil {
			o.mu.Unlock()
			return nil, err
		}
		o.provider = provider
	}
	o.mu.Unlock()

	batches := (len(texts) + o.maxBatchSize - 1) / o.maxBatchSize
	vectors := make([][]float32, 0, len(texts))

	for i := 0; i < batches; i++ {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		start := i * o.maxBatchSize
		end := min(start+o.maxBatchSize, len(texts))
		batch := texts[start:end]

		slog.DebugContext(ctx, "embedding batch",
			slog.Int("batch", i), slog.Int("size", len(batch)))

		result, err := o.embedBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, errors.New(errors.CodeProvider, fmt.Sprintf("embedding batch %d failed", i), err).
				WithContext("batch_index", i).
				WithAttribute("batch_index", strconv.Itoa(i))
		}
		if len(result) != len(batch) {
			return nil, errors.Newf(errors.CodeProvider,
				"embedding batch %d returned %d vectors for %d inputs", i, len(result), len(batch)).
				WithContext("batch_index", i)
		}
		vectors = append(vectors, result...)

		// The final batch incurs no trailing delay.
		if i < batches-1 && o.batchDelay > 0 {
			timer := time.NewTimer(o.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, cancelled(ctx.Err())
			case <-timer.C:
			}
		}
	}

	if err := validateVectors(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// embedBatch issues one batch. Batch-capable providers get a single call;
// single-item embedders fan out in parallel with results indexed by input
// position, never by completion order.
func (o *Orchestrator) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if be, ok := o.provider.(BatchEmbedder); ok {
		return be.EmbedBatch(ctx, batch)
	}

	result := make([][]float32, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for idx, text := range batch {
		g.Go(func() error {
			vec, err := o.provider.Embed(gctx, text)
			if err != nil {
				return err
			}
			result[idx] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// validateVectors enforces the embedding post-conditions: every vector
// non-empty, all of one dimensionality, every component finite.
func validateVectors(vectors [][]float32) error {
	if len(vectors) == 0 {
		return errors.New(errors.CodeValidation, "provider returned no embeddings", nil)
	}
	dim := len(vectors[0])
	for i, vec := range vectors {
		if len(vec) == 0 {
			return errors.Newf(errors.CodeValidation, "embedding %d is empty", i).
				WithContext("index", i)
		}
		if len(vec) != dim {
			return errors.Newf(errors.CodeValidation,
				"embedding %d has dimension %d, expected %d", i, len(vec), dim).
				WithContext("index", i)
		}
		for _, v := range vec {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return errors.Newf(errors.CodeValidation, "embedding %d contains a non-finite component", i).
					WithContext("index", i)
			}
		}
	}
	return nil
}

func cancelled(err error) error {
	return errors.New(errors.CodeCancelled, "embedding cancelled", err)
}

