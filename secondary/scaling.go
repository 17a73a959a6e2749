package secondary

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

// LocalScaling rescales every distance by the local neighborhood reach of
// both endpoints: d'(x,y) = 1 - exp(-d²/(σ_x σ_y)), where σ is the distance
// to a point's S-th nearest neighbor.
type LocalScaling struct {
	S int
}

func (LocalScaling) Name() string { return ModeLocalScaling }

func (t LocalScaling) Apply(ctx *Context) (*neighbors.TriMat, [][]float64, error) {
	if err := checkSize(ctx, t.S); err != nil {
		return nil, nil, err
	}
	n := ctx.Train.Len()
	sigma := reachAt(ctx.Graph.Dists, t.S)
	qsigma := reachAt(ctx.QueryGraph.Dists, t.S)

	out := neighbors.NewTriMat(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out.Set(i, j, scale(ctx.Train.At(i, j), sigma[i]*sigma[j]))
		}
	}
	rect := make([][]float64, len(ctx.TestToTrain))
	for qi, qrow := range ctx.TestToTrain {
		o := make([]float64, n)
		for j := 0; j < n; j++ {
			o[j] = scale(qrow[j], qsigma[qi]*sigma[j])
		}
		rect[qi] = o
	}
	return out, rect, nil
}

func scale(d, ss float64) float64 {
	if ss <= 0 {
		if d == 0 {
			return 0
		}
		return 1
	}
	return 1 - math.Exp(-d*d/ss)
}

// NICDM normalizes every distance by the geometric mean of the endpoints'
// average distances to their own S nearest neighbors:
// d'(x,y) = d(x,y) / sqrt(μ_x μ_y).
type NICDM struct {
	S int
}

func (NICDM) Name() string { return ModeNICDM }

func (t NICDM) Apply(ctx *Context) (*neighbors.TriMat, [][]float64, error) {
	if err := checkSize(ctx, t.S); err != nil {
		return nil, nil, err
	}
	n := ctx.Train.Len()
	mu := avgAt(ctx.Graph.Dists, t.S)
	qmu := avgAt(ctx.QueryGraph.Dists, t.S)

	out := neighbors.NewTriMat(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out.Set(i, j, normalize(ctx.Train.At(i, j), mu[i]*mu[j]))
		}
	}
	rect := make([][]float64, len(ctx.TestToTrain))
	for qi, qrow := range ctx.TestToTrain {
		o := make([]float64, n)
		for j := 0; j < n; j++ {
			o[j] = normalize(qrow[j], qmu[qi]*mu[j])
		}
		rect[qi] = o
	}
	return out, rect, nil
}

func normalize(d, mm float64) float64 {
	if mm <= 0 {
		return d
	}
	return d / math.Sqrt(mm)
}

// reachAt returns each point's distance to its s-th nearest neighbor, or to
// its last one when the list is shorter.
func reachAt(dists [][]float64, s int) []float64 {
	out := make([]float64, len(dists))
	for i, ds := range dists {
		if len(ds) == 0 {
			continue
		}
		p := s - 1
		if p >= len(ds) {
			p = len(ds) - 1
		}
		out[i] = ds[p]
	}
	return out
}

// avgAt returns each point's mean distance to its s nearest neighbors.
func avgAt(dists [][]float64, s int) []float64 {
	out := make([]float64, len(dists))
	for i, ds := range dists {
		if len(ds) == 0 {
			continue
		}
		if len(ds) > s {
			ds = ds[:s]
		}
		out[i] = stat.Mean(ds, nil)
	}
	return out
}
