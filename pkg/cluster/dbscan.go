// SPDX-License-Identifier: Apache-2.0

package cluster

// DBSCAN labels used while scanning.
const (
	unclassified = 0
	noise        = -1
)

// DBSCAN runs density-based clustering over the vector set. A point is a
// core point when its epsilon-neighborhood, which includes the point itself,
// holds at least minPoints members. Clusters grow by expansion from core
// points; unreachable points are noise and are not represented in the output.
//
// The scan visits points in input order and expands neighborhoods in index
// order, so the output is deterministic for a given input ordering.
func DBSCAN(vectors [][]float32, epsilon float64, minPoints int, dist DistanceFunc) ([][]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}

	labels := make([]int, n)
	clusterID := 0

	regionQuery := func(p int) ([]int, error) {
		var neighbors []int
		for q := 0; q < n; q++ {
			d, err := dist(vectors[p], vectors[q])
			if err != nil {
				return nil, err
			}
			if d <= epsilon {
				neighbors = append(neighbors, q)
			}
		}
		return neighbors, nil
	}

	for i := 0; i < n; i++ {
		if labels[i] != unclassified {
			continue
		}
		neighbors, err := regionQuery(i)
		if err != nil {
			return nil, err
		}
		if len(neighbors) < minPoints {
			labels[i] = noise
			continue
		}

		clusterID++
		labels[i] = clusterID

		seeds := append([]int(nil), neighbors...)
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == noise {
				// Border point: density-reachable but not core.
				labels[j] = clusterID
			}
			if labels[j] != unclassified {
				continue
			}
			labels[j] = clusterID
			jNeighbors, err := regionQuery(j)
			if err != nil {
				return nil, err
			}
			if len(jNeighbors) >= minPoints {
				seeds = append(seeds, jNeighbors...)
			}
		}
	}

	clusters := make([][]int, clusterID)
	for idx, label := range labels {
		if label > 0 {
			clusters[label-1] = append(clusters[label-1], idx)
		}
	}
	return clusters, nil
}
