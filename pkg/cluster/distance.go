// SPDX-License-Identifier: Apache-2.0

// Package cluster groups embedded failures with density-based clustering and
// assembles the ranked cluster output of a detection pass.
package cluster

import (
	"math"

	"github.com/jllopis/flakewatch/pkg/errors"
)

// DistanceFunc measures the distance between two vectors of equal length.
type DistanceFunc func(a, b []float32) (float64, error)

// Distance metric names accepted in configuration.
const (
	DistanceCosine    = "cosine"
	DistanceEuclidean = "euclidean"
)

// CosineDistance is 1 - cos(a, b). A zero-magnitude vector has similarity 0
// with anything, hence distance 1.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Newf(errors.CodeValidation,
			"vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// EuclideanDistance is the standard L2 distance.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Newf(errors.CodeValidation,
			"vector length mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// DistanceByName resolves a configured metric name.
func DistanceByName(name string) (DistanceFunc, error) {
	switch name {
	case DistanceCosine:
		return CosineDistance, nil
	case DistanceEuclidean:
		return EuclideanDistance, nil
	default:
		return nil, errors.Newf(errors.CodeConfig,
			"distance must be one of cosine, euclidean; got %q", name)
	}
}
