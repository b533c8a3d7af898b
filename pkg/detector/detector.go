// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package detector runs the end-to-end flaky-pattern detection pass:
// validate, enrich, embed, cluster, assemble, rank, persist. A pass either
// produces the full ranked output or terminates with one typed error;
// partial output is never emitted.
package detector

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/flakewatch/pkg/cluster"
	"github.com/jllopis/flakewatch/pkg/embed"
	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/extract"
	"github.com/jllopis/flakewatch/pkg/model"
	"github.com/jllopis/flakewatch/pkg/store"
	"github.com/jllopis/flakewatch/pkg/telemetry"
)

// VectorSink mirrors embedded failures into a vector database for later
// similarity search. Mirroring is best-effort: a sink failure is logged and
// does not abort the pass.
type VectorSink interface {
	EnsureCollection(ctx context.Context, name string, vectorSize uint64) error
	UpsertFailures(ctx context.Context, collection string, failures []model.EmbeddedFailure) error
}

// Detector owns one detection pipeline configuration. It is safe for
// concurrent use; every pass works on its own data.
type Detector struct {
	store        store.Store
	orchestrator *embed.Orchestrator
	extractor    *extract.Extractor
	params       cluster.Params
	distance     cluster.DistanceFunc
	timeWindow   int
	now          func() time.Time
	metrics      *telemetry.PassMetrics
	tracer       trace.Tracer

	sink           VectorSink
	sinkCollection string
}

// Option configures the Detector.
type Option func(*Detector)

// WithTimeWindow sets the fetch window in days.
func WithTimeWindow(days int) Option {
	return func(d *Detector) { d.timeWindow = days }
}

// WithClock overrides the pass clock, fixing cluster-id dates in tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *telemetry.PassMetrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithVectorSink mirrors embedded failures into collection on the sink.
func WithVectorSink(sink VectorSink, collection string) Option {
	return func(d *Detector) {
		d.sink = sink
		d.sinkCollection = collection
	}
}

// WithExtractor replaces the default extraction rule chain.
func WithExtractor(e *extract.Extractor) Option {
	return func(d *Detector) { d.extractor = e }
}

// New creates a Detector. Invalid clustering parameters are rejected here,
// before any collaborator is touched.
func New(st store.Store, provider embed.ProviderFactory, params cluster.Params, opts ...Option) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	distance, err := cluster.DistanceByName(params.Distance)
	if err != nil {
		return nil, err
	}

	d := &Detector{
		store:        st,
		orchestrator: embed.NewOrchestrator(provider),
		extractor:    extract.NewExtractor(),
		params:       params,
		distance:     distance,
		timeWindow:   7,
		now:          time.Now,
		tracer:       otel.Tracer("flakewatch/detector"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// WithOrchestrator replaces the default embedding orchestrator, carrying
// custom batch size and pacing.
func WithOrchestrator(o *embed.Orchestrator) Option {
	return func(d *Detector) { d.orchestrator = o }
}

// Run fetches failures from the store, detects clusters and persists the
// ranked output.
func (d *Detector) Run(ctx context.Context) ([]model.FailureCluster, error) {
	started := d.now()

	failures, err := d.fetch(ctx)
	if err != nil {
		d.metrics.RecordError(ctx, err)
		return nil, err
	}

	clusters, err := d.Detect(ctx, failures)
	if err != nil {
		d.metrics.RecordError(ctx, err)
		return nil, err
	}

	if err := d.save(ctx, clusters); err != nil {
		d.metrics.RecordError(ctx, err)
		return nil, err
	}

	d.metrics.RecordPass(ctx, len(failures), len(clusters), d.now().Sub(started))
	return clusters, nil
}

// Detect runs the pipeline over an explicit failure set without touching the
// store. Input records are never mutated.
func (d *Detector) Detect(ctx context.Context, failures []model.TestFailure) ([]model.FailureCluster, error) {
	ctx, span := d.tracer.Start(ctx, "detector.detect", trace.WithAttributes(
		attribute.Int(telemetry.AttrFailureCount, len(failures)),
		attribute.Float64(telemetry.AttrEpsilon, d.params.Epsilon),
		attribute.Int(telemetry.AttrMinPoints, d.params.MinPoints),
		attribute.String(telemetry.AttrDistance, d.params.Distance),
	))
	defer span.End()

	if err := d.stage(ctx, "validate", func(context.Context) error {
		return model.ValidateFailures(failures)
	}); err != nil {
		return nil, err
	}

	if len(failures) == 0 {
		slog.InfoContext(ctx, "no failures in window, nothing to cluster")
		return nil, nil
	}

	var enriched []model.TestFailure
	if err := d.stage(ctx, "extract", func(context.Context) error {
		enriched = d.extractor.ExtractAll(failures)
		return nil
	}); err != nil {
		return nil, err
	}

	var embedded []model.EmbeddedFailure
	if err := d.stage(ctx, "embed", func(sctx context.Context) error {
		var err error
		embedded, err = d.orchestrator.EmbedFailures(sctx, enriched)
		return err
	}); err != nil {
		return nil, err
	}

	d.mirror(ctx, embedded)

	var indexSets [][]int
	if err := d.stage(ctx, "cluster", func(context.Context) error {
		vectors := make([][]float32, len(embedded))
		for i := range embedded {
			vectors[i] = embedded[i].Embedding
		}
		var err error
		indexSets, err = cluster.DBSCAN(vectors, d.params.Epsilon, d.params.MinPoints, d.distance)
		return err
	}); err != nil {
		return nil, err
	}

	var out []model.FailureCluster
	if err := d.stage(ctx, "assemble", func(context.Context) error {
		assembler := &cluster.Assembler{MinClusterSize: d.params.MinClusterSize, Now: d.now}
		out = cluster.Rank(assembler.Assemble(indexSets, enriched), d.params.MaxClusters)
		return nil
	}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "detection pass complete",
		slog.Int("failures", len(failures)),
		slog.Int("clusters", len(out)))
	return out, nil
}

// stage wraps one pipeline stage in a span and honors cancellation before
// entering it.
func (d *Detector) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.New(errors.CodeCancelled, "detection pass cancelled", err).
			WithContext("stage", name)
	}
	sctx, span := d.tracer.Start(ctx, "detector."+name, trace.WithAttributes(
		attribute.String(telemetry.AttrPassStage, name),
	))
	defer span.End()

	if err := fn(sctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (d *Detector) fetch(ctx context.Context) ([]model.TestFailure, error) {
	var failures []model.TestFailure
	err := d.stage(ctx, "fetch", func(sctx context.Context) error {
		got, err := d.store.FetchFailures(sctx, d.timeWindow)
		if err != nil {
			if errors.CodeOf(err) == errors.CodeStorage {
				return err
			}
			return errors.New(errors.CodeStorage, "failed to fetch failures", err)
		}
		failures = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "fetched failures",
		slog.Int("count", len(failures)), slog.Int("window_days", d.timeWindow))
	return failures, nil
}

func (d *Detector) save(ctx context.Context, clusters []model.FailureCluster) error {
	return d.stage(ctx, "save", func(sctx context.Context) error {
		if err := d.store.SaveClusters(sctx, clusters); err != nil {
			if errors.CodeOf(err) == errors.CodeStorage {
				return err
			}
			return errors.New(errors.CodeStorage, "failed to save clusters", err)
		}
		return nil
	})
}

// mirror pushes embedded failures into the optional vector sink.
func (d *Detector) mirror(ctx context.Context, embedded []model.EmbeddedFailure) {
	if d.sink == nil || len(embedded) == 0 {
		return
	}
	collection := d.sinkCollection
	if collection == "" {
		collection = "flakewatch_failures"
	}
	dim := uint64(len(embedded[0].Embedding))
	if err := d.sink.EnsureCollection(ctx, collection, dim); err != nil {
		slog.WarnContext(ctx, "vector sink unavailable", slog.Any("error", err))
		return
	}
	if err := d.sink.UpsertFailures(ctx, collection, embedded); err != nil {
		slog.WarnContext(ctx, "vector sink upsert failed", slog.Any("error", err))
	}
}
