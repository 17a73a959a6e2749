package neighbors

import (
	"gonum.org/v1/gonum/stat"
)

// Graph is a k-nearest-neighbor graph: for every point an ascending-distance
// list of neighbor indices with matching distances. Lists may be shorter than
// K when fewer candidates exist.
type Graph struct {
	Indices [][]int
	Dists   [][]float64
	K       int
}

// NewGraph allocates an empty graph over n points with capacity k per point.
func NewGraph(n, k int) *Graph {
	g := &Graph{
		Indices: make([][]int, n),
		Dists:   make([][]float64, n),
		K:       k,
	}
	for i := 0; i < n; i++ {
		g.Indices[i] = make([]int, 0, k)
		g.Dists[i] = make([]float64, 0, k)
	}
	return g
}

// Len returns the number of points in the graph.
func (g *Graph) Len() int { return len(g.Indices) }

// OccurrenceCounts returns, for every point in the index space of size n, the
// number of neighbor lists it appears in (its k-occurrence). The graph's own
// point set and the index space may differ, as with test-to-train graphs.
func (g *Graph) OccurrenceCounts(n int) []int {
	counts := make([]int, n)
	for _, nbrs := range g.Indices {
		for _, idx := range nbrs {
			counts[idx]++
		}
	}
	return counts
}

// OccurrenceSkew returns the skewness of the k-occurrence distribution over
// an index space of size n. High positive skew indicates hubness.
func (g *Graph) OccurrenceSkew(n int) float64 {
	counts := g.OccurrenceCounts(n)
	xs := make([]float64, len(counts))
	for i, c := range counts {
		xs[i] = float64(c)
	}
	return stat.Skew(xs, nil)
}

// insertNeighbor places (idx, d) into the bounded ascending lists ids/ds that
// currently hold count entries, shifting larger entries right and truncating
// at capacity k. Ties keep the earlier entry first. Returns the new count.
func insertNeighbor(ids []int, ds []float64, count, k, idx int, d float64) int {
	if count < k {
		ids[count], ds[count] = idx, d
		count++
	} else if d < ds[k-1] {
		ids[k-1], ds[k-1] = idx, d
	} else {
		return count
	}
	for p := count - 1; p > 0 && ds[p] < ds[p-1]; p-- {
		ds[p], ds[p-1] = ds[p-1], ds[p]
		ids[p], ids[p-1] = ids[p-1], ids[p]
	}
	return count
}
