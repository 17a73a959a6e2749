package neighbors

import (
	"errors"
	"sort"
)

// ErrNotSorted is returned when a projection target index list is not in
// ascending order. Local indices are positions in the sorted list, so the
// order is part of the contract.
var ErrNotSorted = errors.New("neighbors: index subset must be sorted ascending")

// ProjectTraining derives the exact k-nearest-neighbor graph restricted to a
// training subset from the global graph, without recomputing all pairwise
// distances. train must be sorted ascending; sub must be the restricted
// distance sub-matrix over train (as produced by TriMat.Sub). The returned
// graph is in local indices, i.e. positions within train.
//
// Phase one walks each point's global neighbor list in ascending-distance
// order and keeps the members of the training set: the global list is fully
// sorted, so the accepted prefix is exactly the true nearest in-set prefix.
// Phase two fills any shortfall by scanning the gap intervals between the
// accepted local positions and bounded-inserting the remaining candidates
// from the sub-matrix. The result is identical to a brute-force kNN over sub.
func ProjectTraining(g *Graph, sub *TriMat, train []int, k int) (*Graph, error) {
	if k <= 0 {
		return nil, ErrBadK
	}
	if !sort.IntsAreSorted(train) {
		return nil, ErrNotSorted
	}
	n := len(train)
	if k > n-1 {
		k = n - 1
	}
	local := localIndexOf(g.Len(), train)
	out := NewGraph(n, k)
	for i, p := range train {
		ids := make([]int, k)
		ds := make([]float64, k)
		count := 0
		for pos, q := range g.Indices[p] {
			li := local[q]
			if li < 0 || q == p {
				continue
			}
			ids[count] = li
			ds[count] = g.Dists[p][pos]
			count++
			if count == k {
				break
			}
		}
		if count < k {
			count = gapFill(ids, ds, count, k, i, func(c int) float64 {
				return sub.At(i, c)
			}, n)
		}
		out.Indices[i] = ids[:count]
		out.Dists[i] = ds[:count]
	}
	return out, nil
}

// ProjectQueries derives exact query-to-training neighbor lists for held-out
// points. queries are global indices; rect is the query-to-train distance
// block (row q holds distances from queries[q] to every train element, as
// produced by TriMat.Rect). Neighbor indices in the result are local
// positions within train.
func ProjectQueries(g *Graph, rect [][]float64, queries, train []int, k int) (*Graph, error) {
	if k <= 0 {
		return nil, ErrBadK
	}
	if !sort.IntsAreSorted(train) {
		return nil, ErrNotSorted
	}
	n := len(train)
	if k > n {
		k = n
	}
	local := localIndexOf(g.Len(), train)
	out := NewGraph(len(queries), k)
	for qi, q := range queries {
		ids := make([]int, k)
		ds := make([]float64, k)
		count := 0
		for pos, v := range g.Indices[q] {
			li := local[v]
			if li < 0 || v == q {
				continue
			}
			ids[count] = li
			ds[count] = g.Dists[q][pos]
			count++
			if count == k {
				break
			}
		}
		if count < k {
			row := rect[qi]
			self := local[q] // a query inside the training range excludes itself
			count = gapFill(ids, ds, count, k, self, func(c int) float64 {
				return row[c]
			}, n)
		}
		out.Indices[qi] = ids[:count]
		out.Dists[qi] = ds[:count]
	}
	return out, nil
}

// gapFill completes a short neighbor list by scanning the candidate intervals
// that lie strictly between the already-accepted local positions, plus the two
// open ends. Every candidate in a gap has its distance fetched through dist
// and bounded-inserted; self (-1 for none) is skipped. Returns the final count.
func gapFill(ids []int, ds []float64, count, k, self int, dist func(int) float64, n int) int {
	bounds := make([]int, 0, count+2)
	bounds = append(bounds, -1)
	bounds = append(bounds, ids[:count]...)
	sort.Ints(bounds[1:])
	bounds = append(bounds, n)
	for b := 0; b+1 < len(bounds); b++ {
		for c := bounds[b] + 1; c < bounds[b+1]; c++ {
			if c == self {
				continue
			}
			count = insertNeighbor(ids, ds, count, k, c, dist(c))
		}
	}
	return count
}

// localIndexOf builds the global-to-local position table for a sorted subset.
// Entries outside the subset are -1.
func localIndexOf(n int, subset []int) []int {
	local := make([]int, n)
	for i := range local {
		local[i] = -1
	}
	for li, gi := range subset {
		local[gi] = li
	}
	return local
}
