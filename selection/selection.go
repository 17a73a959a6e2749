// Package selection reduces a fold's training set to a prototype subset
// before training and testing, with hubness-aware occurrence estimates over
// the reduced set.
package selection

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

var (
	// ErrEmptySelection is returned when a selector produces no prototypes.
	ErrEmptySelection = errors.New("selection: empty prototype set")
	// ErrUnknownSelector is returned by ForName for unrecognized names.
	ErrUnknownSelector = errors.New("selection: unknown selector")
)

// HubnessMode selects how prototype occurrence estimates are computed after
// reduction.
type HubnessMode int

const (
	// ProtoUnbiased counts prototype occurrences in the neighbor lists of
	// every training point (lists restricted to the prototype set), which
	// compensates for the selection bias of prototype-only voting.
	ProtoUnbiased HubnessMode = iota
	// ProtoBiased counts occurrences within the prototype-to-prototype graph
	// only.
	ProtoBiased
)

// Selector picks a prototype subset of a fold's training set. Positions in
// the returned slice are local to the training list and must be usable after
// canonical sorting; rate is the requested reduction rate in (0, 1], or
// non-positive for the selector's automatic rate.
type Selector interface {
	Name() string
	Select(sub *neighbors.TriMat, g *neighbors.Graph, rate float64) ([]int, error)
}

// Result is the reduced training context handed to classifiers that train on
// prototypes.
type Result struct {
	// Prototypes are the selected global instance indexes, sorted ascending.
	Prototypes []int
	// Local are the corresponding positions within the fold training list.
	Local []int
	// SubMatrix is the prototype-to-prototype distance sub-matrix.
	SubMatrix *neighbors.TriMat
	// Graph is the prototype kNN graph (local prototype indices).
	Graph *neighbors.Graph
	// QueryGraph holds test-to-prototype neighbor lists.
	QueryGraph *neighbors.Graph
	// TestToProto is the test-to-prototype distance block.
	TestToProto [][]float64
	// Occurrences are the per-prototype k-occurrence estimates under Mode.
	Occurrences []int
	Mode        HubnessMode
}

// Reduce runs the selector over a fold's training structures and derives the
// reduced structures in the same distance space the fold currently lives in.
// train and test are global index sets for the current fold; sub, rect and g
// are the fold's training sub-matrix, test-to-train block and neighbor graph,
// all possibly already rewritten by a secondary transform. When the fold is
// still in the primary space the caller passes the dataset-wide graph and the
// prototype graphs are derived from it by projection; when a transform is
// active global must be nil and the graphs are built fresh from the
// transformed distances, which have no dataset-wide graph to project from.
func Reduce(sel Selector, mode HubnessMode, rate float64, k, workers int,
	train, test []int, sub *neighbors.TriMat, rect [][]float64,
	g, global *neighbors.Graph) (*Result, error) {

	local, err := sel.Select(sub, g, rate)
	if err != nil {
		return nil, fmt.Errorf("selection: %s: %w", sel.Name(), err)
	}
	if len(local) == 0 {
		return nil, ErrEmptySelection
	}
	sort.Ints(local)

	protos := make([]int, len(local))
	for i, li := range local {
		protos[i] = train[li]
	}

	psub := sub.Sub(local)
	prect := make([][]float64, len(rect))
	for qi, row := range rect {
		pr := make([]float64, len(local))
		for i, li := range local {
			pr[i] = row[li]
		}
		prect[qi] = pr
	}

	var pgraph, qgraph *neighbors.Graph
	if global != nil {
		if pgraph, err = neighbors.ProjectTraining(global, psub, protos, k); err != nil {
			return nil, err
		}
		if qgraph, err = neighbors.ProjectQueries(global, prect, test, protos, k); err != nil {
			return nil, err
		}
	} else {
		if pgraph, err = (neighbors.Builder{K: k, Workers: workers}).Build(psub); err != nil {
			return nil, err
		}
		qgraph = neighbors.BuildRect(prect, k)
	}

	var occ []int
	switch mode {
	case ProtoBiased:
		occ = pgraph.OccurrenceCounts(len(protos))
	default:
		// Every training point votes with its kNN list restricted to the
		// prototype set.
		trect := make([][]float64, len(train))
		self := make([]int, len(train))
		for a := range train {
			self[a] = -1
			tr := make([]float64, len(local))
			for i, li := range local {
				tr[i] = sub.At(a, li)
				if li == a {
					self[a] = i
				}
			}
			trect[a] = tr
		}
		var tgraph *neighbors.Graph
		if global != nil {
			if tgraph, err = neighbors.ProjectQueries(global, trect, train, protos, k); err != nil {
				return nil, err
			}
		} else {
			tgraph = neighbors.BuildRectSkip(trect, k, self)
		}
		occ = tgraph.OccurrenceCounts(len(protos))
	}

	return &Result{
		Prototypes:  protos,
		Local:       local,
		SubMatrix:   psub,
		Graph:       pgraph,
		QueryGraph:  qgraph,
		TestToProto: prect,
		Occurrences: occ,
		Mode:        mode,
	}, nil
}

// targetCount converts a rate into a prototype count, clamped to [1, n].
func targetCount(n int, rate, autoRate float64) int {
	if rate <= 0 || rate > 1 {
		rate = autoRate
	}
	count := int(math.Ceil(rate * float64(n)))
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}
	return count
}
