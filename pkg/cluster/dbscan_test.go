// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"reflect"
	"testing"

	"github.com/jllopis/flakewatch/pkg/errors"
)

func TestDBSCANEmptyInput(t *testing.T) {
	got, err := DBSCAN(nil, 0.5, 2, CosineDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no clusters, got %v", got)
	}
}

func TestDBSCANAllNoise(t *testing.T) {
	// Mutually orthogonal vectors: cosine distance 1 everywhere.
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	got, err := DBSCAN(vectors, 0.1, 2, CosineDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected all points to be noise, got %v", got)
	}
}

func TestDBSCANSingleCluster(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{0.99, 0.01},
		{0.98, 0.02},
	}
	got, err := DBSCAN(vectors, 0.15, 2, CosineDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one cluster, got %v", got)
	}
	if !reflect.DeepEqual(got[0], []int{0, 1, 2}) {
		t.Fatalf("expected members 0,1,2 in order, got %v", got[0])
	}
}

func TestDBSCANSelfInclusiveNeighborhood(t *testing.T) {
	// Two close points. With minPoints=2 each neighborhood holds exactly the
	// pair; with a neighborhood excluding the point itself neither would be
	// core and both would be noise.
	vectors := [][]float32{
		{1, 0},
		{1, 0},
	}
	got, err := DBSCAN(vectors, 0.05, 2, CosineDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("expected the pair to cluster, got %v", got)
	}
}

func TestDBSCANChainReachability(t *testing.T) {
	// A chain under euclidean distance: consecutive points are 1 apart, the
	// ends are far apart; the whole chain is density-connected.
	vectors := [][]float32{
		{0}, {1}, {2}, {3}, {4},
	}
	got, err := DBSCAN(vectors, 1.0, 2, EuclideanDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one chain cluster, got %v", got)
	}
	if !reflect.DeepEqual(got[0], []int{0, 1, 2, 3, 4}) {
		t.Fatalf("expected full chain in order, got %v", got[0])
	}
}

func TestDBSCANTwoClustersAndNoise(t *testing.T) {
	vectors := [][]float32{
		{0}, {0.1}, // cluster A
		{10}, {10.1}, // cluster B
		{100}, // noise
	}
	got, err := DBSCAN(vectors, 0.5, 2, EuclideanDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two clusters, got %v", got)
	}
	if !reflect.DeepEqual(got[0], []int{0, 1}) || !reflect.DeepEqual(got[1], []int{2, 3}) {
		t.Fatalf("unexpected cluster membership: %v", got)
	}
}

func TestDBSCANDeterministic(t *testing.T) {
	vectors := [][]float32{
		{0}, {0.2}, {0.4}, {5}, {5.2}, {9},
	}
	first, err := DBSCAN(vectors, 0.5, 2, EuclideanDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := DBSCAN(vectors, 0.5, 2, EuclideanDistance)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestDBSCANPropagatesDistanceError(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{1}, // mismatched length
	}
	_, err := DBSCAN(vectors, 0.5, 1, CosineDistance)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
	if errors.CodeOf(err) != errors.CodeValidation {
		t.Fatalf("expected CodeValidation, got %v", errors.CodeOf(err))
	}
}

func TestDBSCANMinPointsOne(t *testing.T) {
	// With minPoints=1 every point is core; isolated points form singletons.
	vectors := [][]float32{{0}, {10}}
	got, err := DBSCAN(vectors, 0.5, 1, EuclideanDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 1 || len(got[1]) != 1 {
		t.Fatalf("expected two singleton clusters, got %v", got)
	}
}
