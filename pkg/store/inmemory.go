// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"sync"
	"time"

	"github.com/jllopis/flakewatch/pkg/model"
)

// InMemory is a process-local store, used by tests and dry runs.
type InMemory struct {
	mu       sync.RWMutex
	failures []model.TestFailure
	clusters []model.FailureCluster

	// Now supplies the reference time for the fetch window; time.Now when nil.
	Now func() time.Time
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SaveFailures appends failure records.
func (s *InMemory) SaveFailures(_ context.Context, failures []model.TestFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failures...)
	return nil
}

// FetchFailures returns failures within the past days, in insertion order.
func (s *InMemory) FetchFailures(_ context.Context, days int) ([]model.TestFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().AddDate(0, 0, -days)
	var out []model.TestFailure
	for _, f := range s.failures {
		if !f.Timestamp.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

// SaveClusters replaces the stored cluster set.
func (s *InMemory) SaveClusters(_ context.Context, clusters []model.FailureCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clusters = append([]model.FailureCluster(nil), clusters...)
	return nil
}

// FetchClusters returns the stored clusters in saved order.
func (s *InMemory) FetchClusters(_ context.Context, limit int) ([]model.FailureCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.FailureCluster(nil), s.clusters...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
