package hubminer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimatorFromPredictionsBinary(t *testing.T) {
	truth := []int{0, 0, 1, 1, 1}
	pred := []int{0, 1, 1, 1, 0}
	e, err := EstimatorFromPredictions(pred, truth, 2)
	require.NoError(t, err)

	require.Equal(t, [][]float64{{1, 1}, {1, 2}}, e.Confusion)
	require.InDelta(t, 0.6, e.Accuracy, 1e-12)
	require.InDelta(t, 0.5, e.Precision[0], 1e-12)
	require.InDelta(t, 2.0/3, e.Precision[1], 1e-12)
	require.InDelta(t, 0.5, e.Recall[0], 1e-12)
	require.InDelta(t, 2.0/3, e.Recall[1], 1e-12)
	require.InDelta(t, (0.5+2.0/3)/2, e.MacroF1, 1e-12)
	require.InDelta(t, 0.6, e.MicroF1, 1e-12)
	require.InDelta(t, 1.0/6, e.MatthewsCC, 1e-12)
}

func TestEstimatorPerfectAndWorst(t *testing.T) {
	e, err := EstimatorFromPredictions([]int{0, 1, 2}, []int{0, 1, 2}, 3)
	require.NoError(t, err)
	require.Equal(t, 1.0, e.Accuracy)
	require.Equal(t, 1.0, e.MacroF1)
	require.InDelta(t, 1.0, e.MatthewsCC, 1e-12)

	e, err = EstimatorFromPredictions([]int{1, 0}, []int{0, 1}, 2)
	require.NoError(t, err)
	require.Zero(t, e.Accuracy)
	require.InDelta(t, -1.0, e.MatthewsCC, 1e-12)
}

func TestEstimatorAbsentClassIsZero(t *testing.T) {
	// Class 2 never appears in truth or predictions; its per-class fields
	// stay zero instead of NaN.
	e, err := EstimatorFromPredictions([]int{0, 1}, []int{0, 1}, 3)
	require.NoError(t, err)
	require.Zero(t, e.Precision[2])
	require.Zero(t, e.Recall[2])
}

func TestEstimatorRejectsBadInput(t *testing.T) {
	_, err := EstimatorFromPredictions([]int{0}, []int{0, 1}, 2)
	require.ErrorIs(t, err, ErrPredictionLen)
	_, err = EstimatorFromPredictions([]int{2}, []int{0}, 2)
	require.ErrorIs(t, err, ErrLabelRange)
}

func TestAverageEstimatorPartialDenominators(t *testing.T) {
	a := NewAverageEstimator(2)
	e1, err := EstimatorFromPredictions([]int{0, 1}, []int{0, 1}, 2)
	require.NoError(t, err)
	e2, err := EstimatorFromPredictions([]int{0, 0}, []int{0, 1}, 2)
	require.NoError(t, err)

	// Three attempted trials, one of which failed and was never accumulated.
	a.CountTrial()
	a.Accumulate(e1)
	a.CountTrial()
	a.Accumulate(e2)
	a.CountTrial()

	require.Equal(t, 3, a.Trials)
	require.Equal(t, 2, a.FullFolds)

	m := a.Mean()
	require.InDelta(t, (1.0+0.5)/3, m.Accuracy, 1e-12)
	// Per-class fields normalize by the full-fold count.
	require.InDelta(t, (1.0+0.5)/2, m.Precision[0], 1e-12)
	require.InDelta(t, (1.0+1.0)/2, m.Recall[0], 1e-12)
}

func TestAverageEstimatorDropsMismatchedDimension(t *testing.T) {
	a := NewAverageEstimator(3)
	wrong, err := EstimatorFromPredictions([]int{0, 1}, []int{0, 1}, 2)
	require.NoError(t, err)
	a.CountTrial()
	a.Accumulate(wrong)
	require.Equal(t, 1, a.Trials)
	require.Zero(t, a.FullFolds)
}

func TestAverageEstimatorEmpty(t *testing.T) {
	require.Nil(t, NewAverageEstimator(2).Mean())
}
