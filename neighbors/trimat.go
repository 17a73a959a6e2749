// Package neighbors provides the distance and k-nearest-neighbor structures
// shared by the cross-validation engine: a compact upper-triangular pairwise
// distance matrix, exact and approximate global kNN graph builders, and the
// projection of a global graph onto fold-local index subsets.
package neighbors

import (
	"errors"
	"fmt"
)

var (
	// ErrRaggedRows is returned when a caller-supplied triangular matrix does
	// not have the required row lengths n-1, n-2, ..., 0.
	ErrRaggedRows = errors.New("neighbors: triangular rows have wrong lengths")
)

// TriMat is a symmetric pairwise distance matrix over n points stored in
// upper-triangular compact form. The distance between i and j (i < j) is
// kept at rows[i][j-i-1]; the diagonal is implicitly zero.
type TriMat struct {
	n    int
	rows [][]float64
}

// NewTriMat allocates a zero triangular matrix over n points.
func NewTriMat(n int) *TriMat {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n-i-1)
	}
	return &TriMat{n: n, rows: rows}
}

// TriMatFrom wraps caller-provided upper-triangular rows without copying.
// rows[i] must have length len(rows)-i-1.
func TriMatFrom(rows [][]float64) (*TriMat, error) {
	n := len(rows)
	for i := range rows {
		if len(rows[i]) != n-i-1 {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d",
				ErrRaggedRows, i, len(rows[i]), n-i-1)
		}
	}
	return &TriMat{n: n, rows: rows}, nil
}

// Len returns the number of points.
func (m *TriMat) Len() int { return m.n }

// At returns the distance between points i and j. The diagonal is zero.
func (m *TriMat) At(i, j int) float64 {
	if i == j {
		return 0
	}
	if i > j {
		i, j = j, i
	}
	return m.rows[i][j-i-1]
}

// Set stores the distance between points i and j. Setting the diagonal panics.
func (m *TriMat) Set(i, j int, d float64) {
	if i == j {
		panic("neighbors: cannot set diagonal distance")
	}
	if i > j {
		i, j = j, i
	}
	m.rows[i][j-i-1] = d
}

// Sub extracts the restricted sub-matrix over the given point subset. The
// element (a, b) of the result is the distance between indexes[a] and
// indexes[b] in the original matrix.
func (m *TriMat) Sub(indexes []int) *TriMat {
	sub := NewTriMat(len(indexes))
	for a := 0; a < len(indexes); a++ {
		for b := a + 1; b < len(indexes); b++ {
			sub.rows[a][b-a-1] = m.At(indexes[a], indexes[b])
		}
	}
	return sub
}

// Rect extracts the rectangular distance block between a query index list and
// a reference index list. Row q of the result holds the distances from
// queries[q] to every element of refs.
func (m *TriMat) Rect(queries, refs []int) [][]float64 {
	out := make([][]float64, len(queries))
	for q, qi := range queries {
		row := make([]float64, len(refs))
		for c, ri := range refs {
			row[c] = m.At(qi, ri)
		}
		out[q] = row
	}
	return out
}
