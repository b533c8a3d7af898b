// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"sort"

	"github.com/jllopis/flakewatch/pkg/model"
)

// Rank sorts clusters by failure count descending, breaking ties by id
// ascending, and keeps the first maxClusters. Zero means return all.
func Rank(clusters []model.FailureCluster, maxClusters int) []model.FailureCluster {
	out := append([]model.FailureCluster(nil), clusters...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Metadata.FailureCount != out[j].Metadata.FailureCount {
			return out[i].Metadata.FailureCount > out[j].Metadata.FailureCount
		}
		return out[i].ID < out[j].ID
	})
	if maxClusters > 0 && len(out) > maxClusters {
		out = out[:maxClusters]
	}
	return out
}
