package secondary

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

// foldFixture builds a fold-shaped context: a training matrix over n points,
// a q×n test block, and neighbor graphs at size s.
func foldFixture(t *testing.T, n, q, s int, seed int64) *Context {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	train := neighbors.NewTriMat(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			train.Set(i, j, 0.1+rng.Float64())
		}
	}
	rect := make([][]float64, q)
	for qi := range rect {
		rect[qi] = make([]float64, n)
		for c := range rect[qi] {
			rect[qi][c] = 0.1 + rng.Float64()
		}
	}
	g, err := neighbors.Builder{K: s, Workers: 1}.Build(train)
	require.NoError(t, err)
	return &Context{
		Train:       train,
		TestToTrain: rect,
		Graph:       g,
		QueryGraph:  neighbors.BuildRect(rect, s),
	}
}

func TestSharedNeighborsMatchesNaiveCount(t *testing.T) {
	n, q, s := 18, 4, 5
	ctx := foldFixture(t, n, q, s, 51)
	out, rect, err := SharedNeighbors{S: s}.Apply(ctx)
	require.NoError(t, err)

	shared := func(a, b []int) float64 {
		var c float64
		for _, x := range a {
			for _, y := range b {
				if x == y {
					c++
				}
			}
		}
		return c
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			want := float64(s) - shared(ctx.Graph.Indices[i], ctx.Graph.Indices[j])
			require.InDelta(t, want, out.At(i, j), 1e-12, "pair %d-%d", i, j)
		}
	}
	for qi := 0; qi < q; qi++ {
		for j := 0; j < n; j++ {
			want := float64(s) - shared(ctx.QueryGraph.Indices[qi], ctx.Graph.Indices[j])
			require.InDelta(t, want, rect[qi][j], 1e-12, "query %d train %d", qi, j)
		}
	}
}

func TestSimhubMatchesWeightedCount(t *testing.T) {
	n, q, s := 18, 3, 5
	ctx := foldFixture(t, n, q, s, 52)
	out, _, err := SharedNeighbors{S: s, HubnessWeighted: true}.Apply(ctx)
	require.NoError(t, err)

	occ := make([]int, n)
	for _, set := range ctx.Graph.Indices {
		for _, z := range set {
			occ[z]++
		}
	}
	w := func(z int) float64 {
		if occ[z] == 0 {
			return math.Log(float64(n))
		}
		return math.Log(float64(n) / float64(occ[z]))
	}
	maxSim := float64(s) * math.Log(float64(n))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var sim float64
			for _, x := range ctx.Graph.Indices[i] {
				for _, y := range ctx.Graph.Indices[j] {
					if x == y {
						sim += w(x)
					}
				}
			}
			require.InDelta(t, maxSim-sim, out.At(i, j), 1e-12, "pair %d-%d", i, j)
		}
	}
}

func TestSharedNeighborsSizeCheck(t *testing.T) {
	ctx := foldFixture(t, 12, 2, 3, 53)
	_, _, err := SharedNeighbors{S: 8}.Apply(ctx)
	require.ErrorIs(t, err, ErrNeighborhood)
}

func TestMutualProximityRange(t *testing.T) {
	n, q := 16, 4
	ctx := foldFixture(t, n, q, 4, 54)
	out, rect, err := MutualProximity{}.Apply(ctx)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := out.At(i, j)
			require.GreaterOrEqual(t, d, 0.0)
			require.LessOrEqual(t, d, 1.0)
		}
	}
	for qi := 0; qi < q; qi++ {
		for j := 0; j < n; j++ {
			require.GreaterOrEqual(t, rect[qi][j], 0.0)
			require.LessOrEqual(t, rect[qi][j], 1.0)
		}
	}
}

func TestLocalScalingRangeAndZero(t *testing.T) {
	n, q, s := 16, 3, 4
	ctx := foldFixture(t, n, q, s, 55)
	out, rect, err := LocalScaling{S: s}.Apply(ctx)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := out.At(i, j)
			require.Greater(t, d, 0.0)
			require.Less(t, d, 1.0)
		}
	}
	for qi := 0; qi < q; qi++ {
		for j := 0; j < n; j++ {
			require.Greater(t, rect[qi][j], 0.0)
			require.Less(t, rect[qi][j], 1.0)
		}
	}
}

func TestNICDMMatchesFormula(t *testing.T) {
	n, q, s := 16, 3, 4
	ctx := foldFixture(t, n, q, s, 56)
	out, rect, err := NICDM{S: s}.Apply(ctx)
	require.NoError(t, err)

	mu := make([]float64, n)
	for i := 0; i < n; i++ {
		mu[i] = stat.Mean(ctx.Graph.Dists[i][:s], nil)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			want := ctx.Train.At(i, j) / math.Sqrt(mu[i]*mu[j])
			require.InDelta(t, want, out.At(i, j), 1e-12, "pair %d-%d", i, j)
		}
	}
	for qi := 0; qi < q; qi++ {
		qmu := stat.Mean(ctx.QueryGraph.Dists[qi][:s], nil)
		for j := 0; j < n; j++ {
			want := ctx.TestToTrain[qi][j] / math.Sqrt(qmu*mu[j])
			require.InDelta(t, want, rect[qi][j], 1e-12, "query %d train %d", qi, j)
		}
	}
}

func TestForMode(t *testing.T) {
	for _, mode := range []string{ModeSimcos, ModeSimhub, ModeMutualProx, ModeLocalScaling, ModeNICDM} {
		tr, err := ForMode(mode, 5)
		require.NoError(t, err)
		require.Equal(t, mode, tr.Name())
	}
	_, err := ForMode("cosine", 5)
	require.ErrorIs(t, err, ErrUnknownMode)
}
