// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"github.com/jllopis/flakewatch/pkg/errors"
)

// Default clustering parameters.
const (
	DefaultEpsilon        = 0.3
	DefaultMinPoints      = 2
	DefaultMinClusterSize = 2
	DefaultMaxClusters    = 5
)

// Params are the clustering knobs of a detection pass.
type Params struct {
	Epsilon        float64
	MinPoints      int
	MinClusterSize int
	// MaxClusters caps the ranked output; zero means return all.
	MaxClusters int
	Distance    string
}

// DefaultParams returns the default clustering parameters.
func DefaultParams() Params {
	return Params{
		Epsilon:        DefaultEpsilon,
		MinPoints:      DefaultMinPoints,
		MinClusterSize: DefaultMinClusterSize,
		MaxClusters:    DefaultMaxClusters,
		Distance:       DistanceCosine,
	}
}

// Validate rejects unusable parameters at construction time.
func (p Params) Validate() error {
	if p.Epsilon <= 0 {
		return errors.Newf(errors.CodeConfig, "epsilon must be greater than 0, got %v", p.Epsilon)
	}
	if p.MinPoints < 1 {
		return errors.Newf(errors.CodeConfig, "minPoints must be at least 1, got %d", p.MinPoints)
	}
	if p.MinClusterSize < 1 {
		return errors.Newf(errors.CodeConfig, "minClusterSize must be at least 1, got %d", p.MinClusterSize)
	}
	if p.MaxClusters < 0 {
		return errors.Newf(errors.CodeConfig, "maxClusters must not be negative, got %d", p.MaxClusters)
	}
	if _, err := DistanceByName(p.Distance); err != nil {
		return err
	}
	return nil
}
