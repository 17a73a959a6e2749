package secondary

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

// MutualProximity symmetrizes the primary distance into a probability-like
// dissimilarity: each point's distances to the rest of the training set are
// modeled as a Gaussian, and the mutual proximity of x and y is the product
// of the probabilities that a random point lies farther from each endpoint
// than the other endpoint does. The secondary distance is one minus that
// product, so it lies in [0, 1].
type MutualProximity struct{}

func (MutualProximity) Name() string { return ModeMutualProx }

func (MutualProximity) Apply(ctx *Context) (*neighbors.TriMat, [][]float64, error) {
	n := ctx.Train.Len()
	mu := make([]float64, n)
	sd := make([]float64, n)
	row := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		row = row[:0]
		for j := 0; j < n; j++ {
			if j != i {
				row = append(row, ctx.Train.At(i, j))
			}
		}
		mu[i], sd[i] = meanStd(row)
	}

	out := neighbors.NewTriMat(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := ctx.Train.At(i, j)
			out.Set(i, j, 1-survival(mu[i], sd[i], d)*survival(mu[j], sd[j], d))
		}
	}

	rect := make([][]float64, len(ctx.TestToTrain))
	for qi, qrow := range ctx.TestToTrain {
		qmu, qsd := meanStd(qrow)
		o := make([]float64, n)
		for j := 0; j < n; j++ {
			d := qrow[j]
			o[j] = 1 - survival(qmu, qsd, d)*survival(mu[j], sd[j], d)
		}
		rect[qi] = o
	}
	return out, rect, nil
}

// meanStd returns the sample mean and standard deviation, treating lists too
// short for a variance estimate as degenerate.
func meanStd(xs []float64) (mu, sd float64) {
	mu = stat.Mean(xs, nil)
	if len(xs) > 1 {
		sd = stat.StdDev(xs, nil)
	}
	return mu, sd
}

// survival is P(X > x) under the point's Gaussian distance model, with a
// step-function fallback when the model is degenerate.
func survival(mu, sd, x float64) float64 {
	if sd <= 0 {
		if x < mu {
			return 1
		}
		return 0
	}
	return distuv.Normal{Mu: mu, Sigma: sd}.Survival(x)
}
