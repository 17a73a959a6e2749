package hubminer

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrPredictionLen is returned when a classifier returns the wrong number of
// predictions for a test fold.
var ErrPredictionLen = errors.New("hubminer: prediction length mismatch")

// Estimator holds the classification quality measures of one
// (classifier, repetition, fold) trial: the confusion matrix (rows are true
// classes, columns predicted), per-class precision and recall, accuracy,
// macro and micro F-measure, and the Matthews correlation coefficient.
type Estimator struct {
	Confusion  [][]float64
	Precision  []float64
	Recall     []float64
	Accuracy   float64
	MacroF1    float64
	MicroF1    float64
	MatthewsCC float64
}

// NewEstimator allocates a zeroed estimator over numClasses classes.
func NewEstimator(numClasses int) *Estimator {
	e := &Estimator{
		Confusion: make([][]float64, numClasses),
		Precision: make([]float64, numClasses),
		Recall:    make([]float64, numClasses),
	}
	for i := range e.Confusion {
		e.Confusion[i] = make([]float64, numClasses)
	}
	return e
}

// EstimatorFromPredictions scores one test fold.
func EstimatorFromPredictions(pred, truth []int, numClasses int) (*Estimator, error) {
	if len(pred) != len(truth) {
		return nil, fmt.Errorf("%w: %d predictions for %d test points",
			ErrPredictionLen, len(pred), len(truth))
	}
	e := NewEstimator(numClasses)
	for i, p := range pred {
		t := truth[i]
		if t < 0 || t >= numClasses || p < 0 || p >= numClasses {
			return nil, fmt.Errorf("%w: label pair (%d, %d) at %d", ErrLabelRange, t, p, i)
		}
		e.Confusion[t][p]++
	}
	e.computeFromConfusion()
	return e, nil
}

// computeFromConfusion fills the derived fields. Per-class measures with an
// empty denominator are zero.
func (e *Estimator) computeFromConfusion() {
	c := len(e.Confusion)
	rowSum := make([]float64, c) // true-class counts
	colSum := make([]float64, c) // predicted-class counts
	var total, correct float64
	for t := range e.Confusion {
		for p, v := range e.Confusion[t] {
			rowSum[t] += v
			colSum[p] += v
			total += v
			if t == p {
				correct += v
			}
		}
	}
	if total == 0 {
		return
	}
	e.Accuracy = correct / total

	var macro float64
	for i := 0; i < c; i++ {
		tp := e.Confusion[i][i]
		if colSum[i] > 0 {
			e.Precision[i] = tp / colSum[i]
		}
		if rowSum[i] > 0 {
			e.Recall[i] = tp / rowSum[i]
		}
		if pr := e.Precision[i] + e.Recall[i]; pr > 0 {
			macro += 2 * e.Precision[i] * e.Recall[i] / pr
		}
	}
	e.MacroF1 = macro / float64(c)
	// In single-label classification micro precision and recall coincide
	// with accuracy, and so does micro F1.
	e.MicroF1 = e.Accuracy

	// Multiclass Matthews correlation (the R_k statistic).
	var dot float64
	var pSq, tSq float64
	for i := 0; i < c; i++ {
		dot += colSum[i] * rowSum[i]
		pSq += colSum[i] * colSum[i]
		tSq += rowSum[i] * rowSum[i]
	}
	denom := math.Sqrt(total*total-pSq) * math.Sqrt(total*total-tSq)
	if denom > 0 {
		e.MatthewsCC = (correct*total - dot) / denom
	}
}

// add accumulates o's fields into e.
func (e *Estimator) add(o *Estimator) {
	for i := range e.Confusion {
		floats.Add(e.Confusion[i], o.Confusion[i])
	}
	floats.Add(e.Precision, o.Precision)
	floats.Add(e.Recall, o.Recall)
	e.Accuracy += o.Accuracy
	e.MacroF1 += o.MacroF1
	e.MicroF1 += o.MicroF1
	e.MatthewsCC += o.MatthewsCC
}

// AverageEstimator accumulates per-fold estimators for one classifier and
// normalizes them to a mean only after all repetitions and folds complete.
// Trials counts every attempted (repetition, fold) pair; FullFolds counts the
// trials that produced a well-formed estimator over the full class set. A
// trial whose test failed, or whose confusion matrix does not span all
// classes, contributes to Trials only.
type AverageEstimator struct {
	NumClasses int
	Trials     int
	FullFolds  int

	sum *Estimator
}

// NewAverageEstimator returns an empty accumulator over numClasses classes.
func NewAverageEstimator(numClasses int) *AverageEstimator {
	return &AverageEstimator{
		NumClasses: numClasses,
		sum:        NewEstimator(numClasses),
	}
}

// CountTrial records an attempted (repetition, fold) pair.
func (a *AverageEstimator) CountTrial() { a.Trials++ }

// Accumulate folds one trial's estimator into the running sums. Estimators
// whose confusion matrix dimension does not match are dropped from the
// average (their trial still counts toward Trials).
func (a *AverageEstimator) Accumulate(e *Estimator) {
	if len(e.Confusion) != a.NumClasses {
		return
	}
	a.sum.add(e)
	a.FullFolds++
}

// Mean normalizes the running sums: scalar fields by Trials, per-class and
// confusion fields by FullFolds. Returns nil when nothing was attempted.
func (a *AverageEstimator) Mean() *Estimator {
	if a.Trials == 0 {
		return nil
	}
	m := NewEstimator(a.NumClasses)
	scalar := float64(a.Trials)
	m.Accuracy = a.sum.Accuracy / scalar
	m.MacroF1 = a.sum.MacroF1 / scalar
	m.MicroF1 = a.sum.MicroF1 / scalar
	m.MatthewsCC = a.sum.MatthewsCC / scalar
	if a.FullFolds > 0 {
		inv := 1 / float64(a.FullFolds)
		for i := range m.Confusion {
			floats.AddScaled(m.Confusion[i], inv, a.sum.Confusion[i])
		}
		floats.AddScaled(m.Precision, inv, a.sum.Precision)
		floats.AddScaled(m.Recall, inv, a.sum.Recall)
	}
	return m
}
