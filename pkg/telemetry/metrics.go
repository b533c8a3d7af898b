// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/flakewatch/pkg/errors"
)

// PassMetrics tracks detection-pass throughput and failure modes.
type PassMetrics struct {
	failuresProcessed metric.Int64Counter
	clustersEmitted   metric.Int64Counter
	passDuration      metric.Float64Histogram
	passErrors        metric.Int64Counter
}

// NewPassMetrics creates the pipeline instruments on the global meter.
func NewPassMetrics() (*PassMetrics, error) {
	meter := otel.Meter("flakewatch/detector")

	failuresProcessed, err := meter.Int64Counter(
		"flakewatch.failures.processed",
		metric.WithDescription("Failure records accepted into detection passes"),
	)
	if err != nil {
		return nil, err
	}

	clustersEmitted, err := meter.Int64Counter(
		"flakewatch.clusters.emitted",
		metric.WithDescription("Clusters emitted by detection passes"),
	)
	if err != nil {
		return nil, err
	}

	passDuration, err := meter.Float64Histogram(
		"flakewatch.pass.duration_ms",
		metric.WithDescription("End-to-end detection pass duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	passErrors, err := meter.Int64Counter(
		"flakewatch.pass.errors",
		metric.WithDescription("Detection passes terminated by a typed error"),
	)
	if err != nil {
		return nil, err
	}

	return &PassMetrics{
		failuresProcessed: failuresProcessed,
		clustersEmitted:   clustersEmitted,
		passDuration:      passDuration,
		passErrors:        passErrors,
	}, nil
}

// RecordPass records a completed pass.
func (m *PassMetrics) RecordPass(ctx context.Context, failures, clusters int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.failuresProcessed.Add(ctx, int64(failures))
	m.clustersEmitted.Add(ctx, int64(clusters))
	m.passDuration.Record(ctx, float64(elapsed.Milliseconds()))
}

// RecordError records a pass terminated by err.
func (m *PassMetrics) RecordError(ctx context.Context, err error) {
	if m == nil || err == nil {
		return
	}
	m.passErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
	))
}
