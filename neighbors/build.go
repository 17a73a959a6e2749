package neighbors

import (
	"errors"
	"math/rand"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// ErrBadK is returned when a builder or projection is asked for a
// non-positive neighborhood size.
var ErrBadK = errors.New("neighbors: neighborhood size must be positive")

// Builder constructs the global k-nearest-neighbor graph from a pairwise
// distance matrix. The zero value is not usable; K must be set.
type Builder struct {
	// K is the neighborhood size. It is clamped to n-1 when the dataset is
	// smaller than requested.
	K int
	// Workers bounds the goroutines used for the exact build. If 0, defaults
	// to GOMAXPROCS.
	Workers int

	// Approximate switches to NN-descent instead of the exact per-row scan.
	// The result may miss true neighbors; downstream fold derivations then
	// operate consistently on the approximate base data.
	Approximate bool
	// Quality is the NN-descent candidate sampling rate in (0, 1]. If 0,
	// defaults to 0.5. Higher means better recall and more comparisons.
	Quality float64
	// MaxIter caps NN-descent iterations. If 0, defaults to 10.
	MaxIter int
	// Delta is the NN-descent early-termination threshold as a fraction of
	// n*k updated edges. If 0, defaults to 0.001.
	Delta float64
	// Seed seeds the NN-descent initialization.
	Seed int64
}

// Build computes the neighbor graph over all points of m.
func (b Builder) Build(m *TriMat) (*Graph, error) {
	if b.K <= 0 {
		return nil, ErrBadK
	}
	n := m.Len()
	k := b.K
	if k > n-1 {
		k = n - 1
	}
	if k <= 0 {
		return NewGraph(n, 0), nil
	}
	if b.Approximate {
		return b.descent(m, k), nil
	}
	return b.exact(m, k), nil
}

// exact performs a bounded-insertion scan of every point's distance row.
func (b Builder) exact(m *TriMat, k int) *Graph {
	n := m.Len()
	g := NewGraph(n, k)
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < n; i++ {
		i := i
		p.Go(func() {
			ids := make([]int, k)
			ds := make([]float64, k)
			count := 0
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				count = insertNeighbor(ids, ds, count, k, j, m.At(i, j))
			}
			g.Indices[i] = ids[:count]
			g.Dists[i] = ds[:count]
		})
	}
	p.Wait()
	return g
}

// descent is the NN-descent approximate builder: random initial neighbor
// lists refined by comparing neighbors-of-neighbors until few edges update.
func (b Builder) descent(m *TriMat, k int) *Graph {
	n := m.Len()
	rho := b.Quality
	if rho <= 0 || rho > 1 {
		rho = 0.5
	}
	maxIter := b.MaxIter
	if maxIter <= 0 {
		maxIter = 10
	}
	delta := b.Delta
	if delta <= 0 {
		delta = 0.001
	}
	rng := rand.New(rand.NewSource(b.Seed))

	ids := make([][]int, n)
	ds := make([][]float64, n)
	fresh := make([][]bool, n)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		ids[i] = make([]int, k)
		ds[i] = make([]float64, k)
		fresh[i] = make([]bool, k)
	}

	// tryInsert adds candidate j to i's bounded list unless already present,
	// keeping the freshness flags aligned with the shifted entries.
	tryInsert := func(i, j int) bool {
		if i == j {
			return false
		}
		d := m.At(i, j)
		if counts[i] == k && d >= ds[i][k-1] {
			return false
		}
		for _, v := range ids[i][:counts[i]] {
			if v == j {
				return false
			}
		}
		var pos int
		if counts[i] < k {
			pos = counts[i]
			counts[i]++
		} else {
			pos = k - 1
		}
		for ; pos > 0 && ds[i][pos-1] > d; pos-- {
			ids[i][pos], ds[i][pos], fresh[i][pos] = ids[i][pos-1], ds[i][pos-1], fresh[i][pos-1]
		}
		ids[i][pos], ds[i][pos], fresh[i][pos] = j, d, true
		return true
	}

	// Random initialization; every entry starts fresh.
	for i := 0; i < n; i++ {
		for counts[i] < k {
			tryInsert(i, rng.Intn(n))
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		newCand := make([][]int, n)
		oldCand := make([][]int, n)
		for i := 0; i < n; i++ {
			for p := 0; p < counts[i]; p++ {
				j := ids[i][p]
				if fresh[i][p] {
					if rng.Float64() < rho {
						newCand[i] = append(newCand[i], j)
						newCand[j] = append(newCand[j], i)
						fresh[i][p] = false
					}
				} else if rng.Float64() < rho {
					oldCand[i] = append(oldCand[i], j)
					oldCand[j] = append(oldCand[j], i)
				}
			}
		}

		var updates int
		for i := 0; i < n; i++ {
			nc, oc := newCand[i], oldCand[i]
			for a := 0; a < len(nc); a++ {
				for c := a + 1; c < len(nc); c++ {
					if tryInsert(nc[a], nc[c]) {
						updates++
					}
					if tryInsert(nc[c], nc[a]) {
						updates++
					}
				}
				for _, v := range oc {
					if tryInsert(nc[a], v) {
						updates++
					}
					if tryInsert(v, nc[a]) {
						updates++
					}
				}
			}
		}
		if float64(updates) <= delta*float64(n)*float64(k) {
			break
		}
	}

	g := NewGraph(n, k)
	for i := 0; i < n; i++ {
		g.Indices[i] = ids[i][:counts[i]]
		g.Dists[i] = ds[i][:counts[i]]
	}
	return g
}

// BuildRect computes, for every query row of a rectangular query-to-reference
// distance block, the k nearest reference columns. Used when a secondary
// distance space has no prior neighbor graph to project from.
func BuildRect(rect [][]float64, k int) *Graph {
	return BuildRectSkip(rect, k, nil)
}

// BuildRectSkip is BuildRect with one excluded column per query row: skip[q]
// is left out of row q's candidates (-1 for none). Used when query rows are
// reference members and must not pick themselves.
func BuildRectSkip(rect [][]float64, k int, skip []int) *Graph {
	g := NewGraph(len(rect), k)
	for q, row := range rect {
		s := -1
		if skip != nil {
			s = skip[q]
		}
		avail := len(row)
		if s >= 0 && s < len(row) {
			avail--
		}
		kk := k
		if kk > avail {
			kk = avail
		}
		ids := make([]int, kk)
		ds := make([]float64, kk)
		count := 0
		for c, d := range row {
			if c == s {
				continue
			}
			count = insertNeighbor(ids, ds, count, kk, c, d)
		}
		g.Indices[q] = ids[:count]
		g.Dists[q] = ds[:count]
	}
	return g
}
