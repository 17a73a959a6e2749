package secondary

import (
	"math"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

// SharedNeighbors is the shared-neighbor secondary distance: the similarity
// of two points is the (optionally hubness-weighted) vote mass of the
// neighbors their secondary-size neighborhoods have in common, converted to
// a distance by subtracting from the maximum achievable similarity.
//
// Unweighted ("simcos"), every shared neighbor votes 1. Hubness-weighted
// ("simhub") votes carry the information content log(n/occ(z)) so that
// frequently occurring hubs, which discriminate little, count less.
type SharedNeighbors struct {
	// S is the secondary neighborhood size.
	S int
	// HubnessWeighted switches from simcos to simhub voting.
	HubnessWeighted bool
}

func (t SharedNeighbors) Name() string {
	if t.HubnessWeighted {
		return ModeSimhub
	}
	return ModeSimcos
}

func (t SharedNeighbors) Apply(ctx *Context) (*neighbors.TriMat, [][]float64, error) {
	if err := checkSize(ctx, t.S); err != nil {
		return nil, nil, err
	}
	n := ctx.Train.Len()
	sets := clipLists(ctx.Graph.Indices, t.S)

	// Occurrence counts at the secondary size, voted by the training points.
	occ := make([]int, n)
	for _, set := range sets {
		for _, z := range set {
			occ[z]++
		}
	}
	w := make([]float64, n)
	maxVote := 1.0
	for z := range w {
		w[z] = 1
	}
	if t.HubnessWeighted {
		maxVote = math.Log(float64(n))
		for z := range w {
			if occ[z] > 0 {
				w[z] = math.Log(float64(n) / float64(occ[z]))
			} else {
				w[z] = maxVote
			}
		}
	}
	maxSim := float64(t.S) * maxVote

	mark := make([]int, n)
	for i := range mark {
		mark[i] = -1
	}
	out := neighbors.NewTriMat(n)
	for i := 0; i < n; i++ {
		for _, z := range sets[i] {
			mark[z] = i
		}
		for j := i + 1; j < n; j++ {
			var sim float64
			for _, z := range sets[j] {
				if mark[z] == i {
					sim += w[z]
				}
			}
			out.Set(i, j, maxSim-sim)
		}
	}

	qsets := clipLists(ctx.QueryGraph.Indices, t.S)
	rect := make([][]float64, len(qsets))
	for qi, qset := range qsets {
		stamp := n + qi
		for _, z := range qset {
			mark[z] = stamp
		}
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			var sim float64
			for _, z := range sets[j] {
				if mark[z] == stamp {
					sim += w[z]
				}
			}
			row[j] = maxSim - sim
		}
		rect[qi] = row
	}
	return out, rect, nil
}

// clipLists truncates every neighbor list to at most s entries.
func clipLists(lists [][]int, s int) [][]int {
	out := make([][]int, len(lists))
	for i, l := range lists {
		if len(l) > s {
			l = l[:s]
		}
		out[i] = l
	}
	return out
}
