// Package fold generates and persists stratified cross-validation fold
// assignments: class-balanced index partitions repeated over independent
// randomizations.
package fold

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var (
	// ErrShape is returned when an externally supplied assignment does not
	// match the requested times × numFolds layout.
	ErrShape = errors.New("fold: assignment shape mismatch")
	// ErrLabels is returned when a label is outside [0, numClasses).
	ErrLabels = errors.New("fold: label out of class range")
	// ErrConfig is returned for non-positive times or fold counts.
	ErrConfig = errors.New("fold: times and numFolds must be positive")
)

// Assignment holds the fold membership for every repetition: Folds[r][f] is
// the list of instance indexes held out as the test set of fold f in
// repetition r. Within one repetition every index appears in exactly one fold.
type Assignment struct {
	Folds    [][][]int `json:"allFolds"`
	Times    int       `json:"numTimes"`
	NumFolds int       `json:"numFolds"`
}

// Generate builds a stratified assignment. Within each repetition the
// instances of every class are independently permuted, and the i-th instance
// of class c goes to fold (perm[i] + c) mod numFolds. The +c offset rotates
// the starting fold per class so no fold systematically collects the first
// elements of the same class.
func Generate(times, numFolds int, labels []int, numClasses int, rng *rand.Rand) (*Assignment, error) {
	if times <= 0 || numFolds <= 0 {
		return nil, ErrConfig
	}
	byClass := make([][]int, numClasses)
	for idx, c := range labels {
		if c < 0 || c >= numClasses {
			return nil, fmt.Errorf("%w: label %d at index %d", ErrLabels, c, idx)
		}
		byClass[c] = append(byClass[c], idx)
	}

	a := &Assignment{
		Folds:    make([][][]int, times),
		Times:    times,
		NumFolds: numFolds,
	}
	for r := 0; r < times; r++ {
		folds := make([][]int, numFolds)
		for c, members := range byClass {
			perm := rng.Perm(len(members))
			for i, idx := range members {
				f := (perm[i] + c) % numFolds
				folds[f] = append(folds[f], idx)
			}
		}
		for f := range folds {
			sort.Ints(folds[f])
		}
		a.Folds[r] = folds
	}
	return a, nil
}

// Validate checks the top-level shape against the expected repetition and
// fold counts. Per-fold content is not inspected.
func (a *Assignment) Validate(times, numFolds int) error {
	if a.Times != times || a.NumFolds != numFolds {
		return fmt.Errorf("%w: have %d×%d, want %d×%d",
			ErrShape, a.Times, a.NumFolds, times, numFolds)
	}
	if len(a.Folds) != times {
		return fmt.Errorf("%w: %d repetitions, want %d", ErrShape, len(a.Folds), times)
	}
	for r := range a.Folds {
		if len(a.Folds[r]) != numFolds {
			return fmt.Errorf("%w: repetition %d has %d folds, want %d",
				ErrShape, r, len(a.Folds[r]), numFolds)
		}
	}
	return nil
}

// TrainTest assembles the training and test index sets for one
// (repetition, fold) pair. The test set is fold f; the training set is the
// union of all other folds of repetition r. Both are sorted ascending.
func (a *Assignment) TrainTest(r, f int) (train, test []int) {
	test = append(test, a.Folds[r][f]...)
	for g := range a.Folds[r] {
		if g == f {
			continue
		}
		train = append(train, a.Folds[r][g]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}
