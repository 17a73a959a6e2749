// Package hubminer implements a repeated, stratified cross-validation engine
// for evaluating nearest-neighbor-sensitive classifiers on a fixed dataset.
//
// The engine is built around one observation: the dominant cost of naive
// cross-validation is recomputing pairwise distances and kNN graphs per fold.
// Instead, a single large neighbor graph is computed over the whole dataset
// once, and every fold's exact kNN structure is derived from it by projection
// with gap-filling (see the neighbors package). On top of that sit optional
// hubness-aware secondary distance transforms (secondary package), optional
// prototype-based instance selection (selection package), and a concurrent
// per-classifier train/test/aggregate protocol.
//
// Classifiers are external: they satisfy the Classifier contract and declare
// richer needs through the capability interfaces below, which the evaluator
// queries explicitly before choosing how to feed and test them.
package hubminer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/datapoet/hubminer-sub001/fold"
	"github.com/datapoet/hubminer-sub001/neighbors"
	"github.com/datapoet/hubminer-sub001/secondary"
	"github.com/datapoet/hubminer-sub001/selection"
)

var (
	// ErrNoClassifiers is returned when Evaluate is called without any
	// classifier configured.
	ErrNoClassifiers = errors.New("hubminer: no classifiers")
	// ErrDataSize is returned when the dataset and distance matrix disagree.
	ErrDataSize = errors.New("hubminer: dataset and distance matrix size mismatch")
	// ErrLabelRange is returned when a dataset label falls outside
	// [0, NumClasses).
	ErrLabelRange = errors.New("hubminer: label out of class range")
	// ErrTestLabels is returned when a test-label override does not cover
	// every dataset instance.
	ErrTestLabels = errors.New("hubminer: test label override length mismatch")
)

// Dataset is an ordered, 0-indexed sequence of labeled instances. It is
// immutable for the duration of one evaluation run.
type Dataset struct {
	Labels     []int
	NumClasses int
}

// Len returns the number of instances.
func (d *Dataset) Len() int { return len(d.Labels) }

// ClassCounts returns the number of instances per class.
func (d *Dataset) ClassCounts() []int {
	counts := make([]int, d.NumClasses)
	for _, c := range d.Labels {
		counts[c]++
	}
	return counts
}

func (d *Dataset) validate() error {
	for i, c := range d.Labels {
		if c < 0 || c >= d.NumClasses {
			return fmt.Errorf("%w: label %d at index %d", ErrLabelRange, c, i)
		}
	}
	return nil
}

// Classifier is the minimal train/test capability contract. Implementations
// live outside this module; the evaluator never inspects beyond these
// interfaces. CloneConfiguration must return an independent instance carrying
// only the initial configuration, since the shared prototype instance is
// never trained directly.
type Classifier interface {
	Name() string
	CloneConfiguration() Classifier
	// SetDataIndexes supplies the training index set (global dataset
	// indices) and the dataset context before Train.
	SetDataIndexes(indexes []int, data *Dataset)
	Train() error
	// Test predicts labels for the held-out global indices.
	Test(test []int) ([]int, error)
}

// The capability interfaces form a small closed set that replaces
// chained type checking on concrete classifier types. A classifier opts into
// richer inputs or test overloads by implementing them; the evaluator queries
// each one explicitly.

// DistanceMatrixUser receives the fold-local training distance sub-matrix
// before training. The matrix is shared and must not be mutated.
type DistanceMatrixUser interface {
	SetDistanceMatrix(sub *neighbors.TriMat)
}

// NeighborGraphUser receives the fold-local training kNN graph before
// training. The graph is shared across classifier tasks; a classifier that
// needs to manipulate neighbor data must operate on a private copy.
type NeighborGraphUser interface {
	SetNeighborGraph(g *neighbors.Graph)
}

// DistanceQuerier tests with the test-to-train distance block instead of the
// plain index list.
type DistanceQuerier interface {
	TestWithDistances(test []int, testToTrain [][]float64) ([]int, error)
}

// NeighborQuerier tests with the test-to-train neighbor lists. Takes
// precedence over DistanceQuerier when both are implemented.
type NeighborQuerier interface {
	TestWithNeighbors(test []int, g *neighbors.Graph) ([]int, error)
}

// ReducedTrainer trains on a prototype subset with its hubness estimates,
// used instead of Train when instance selection is active.
type ReducedTrainer interface {
	TrainOnReducedData(res *selection.Result) error
}

// NeighborhoodSizer is told the neighborhood size the fold graphs were
// derived at.
type NeighborhoodSizer interface {
	SetNeighborhoodSize(k int)
}

// ParameterReporter exposes a classifier's effective parameters for result
// reporting.
type ParameterReporter interface {
	Parameters() map[string]any
}

// Settings configures one evaluation run.
type Settings struct {
	// Times is the number of independent cross-validation repetitions.
	Times int
	// NumFolds is the number of folds per repetition.
	NumFolds int

	// K is the target neighborhood size for fold graphs. When KMax > K the
	// fold graphs are derived at KMax and classifiers that tune k internally
	// receive the full-width lists, reporting the chosen k via Parameters.
	K    int
	KMax int
	// GraphMargin widens the global graph beyond the largest k any stage
	// needs. If 0, defaults to 10.
	GraphMargin int

	// Approximate switches the global graph build to NN-descent with the
	// given Quality (candidate sampling rate); see neighbors.Builder.
	Approximate bool
	Quality     float64

	// Secondary, when non-nil, transforms every fold's distances before the
	// final graphs are derived. SecondaryK is the transform's neighborhood
	// size; if 0, defaults to the effective k.
	Secondary  secondary.Transform
	SecondaryK int

	// Selector, when non-nil, reduces every training fold to prototypes at
	// SelectionRate (non-positive means the selector's automatic rate),
	// with HubnessMode controlling the occurrence estimates.
	Selector      selection.Selector
	SelectionRate float64
	HubnessMode   selection.HubnessMode

	// TestLabels, when non-nil, overrides the dataset labels for scoring
	// test predictions.
	TestLabels []int

	// Workers bounds the goroutines used for shared, non-per-classifier
	// computation (global graph build). If 0, defaults to GOMAXPROCS.
	Workers int

	// Folds supplies an externally generated assignment instead of
	// stratified generation. Its shape must match Times × NumFolds.
	Folds *fold.Assignment

	// Seed drives fold generation and the approximate builder.
	Seed int64

	// Logger receives run progress and per-classifier failures. If nil, a
	// no-op logger is used.
	Logger *zap.Logger
}

// effectiveK is the neighborhood size fold graphs are derived at.
func (s *Settings) effectiveK() int {
	k := s.K
	if s.KMax > k {
		k = s.KMax
	}
	if k < 1 {
		k = 1
	}
	return k
}

// kBig is the global graph neighborhood size: the largest k any downstream
// stage can ask for, plus margin.
func (s *Settings) kBig() int {
	k := s.effectiveK()
	if s.SecondaryK > k {
		k = s.SecondaryK
	}
	margin := s.GraphMargin
	if margin <= 0 {
		margin = 10
	}
	return k + margin
}
