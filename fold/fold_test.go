package fold

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomLabels draws n labels with the given per-class weights.
func randomLabels(n, numClasses int, rng *rand.Rand) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = rng.Intn(numClasses)
	}
	return labels
}

func TestGenerateCoversEveryIndexOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	for _, tc := range []struct {
		n, numClasses, times, numFolds int
		name                           string
	}{
		{n: 100, numClasses: 2, times: 1, numFolds: 5, name: "even"},
		{n: 101, numClasses: 3, times: 4, numFolds: 7, name: "uneven"},
		{n: 30, numClasses: 5, times: 2, numFolds: 10, name: "many folds"},
	} {
		labels := randomLabels(tc.n, tc.numClasses, rng)
		a, err := Generate(tc.times, tc.numFolds, labels, tc.numClasses, rng)
		require.NoError(t, err, tc.name)

		for r := 0; r < tc.times; r++ {
			count := make([]int, tc.n)
			for f := 0; f < tc.numFolds; f++ {
				for _, idx := range a.Folds[r][f] {
					count[idx]++
				}
			}
			for idx, c := range count {
				require.Equal(t, 1, c, "%s: repetition %d index %d", tc.name, r, idx)
			}
		}
	}
}

func TestGenerateStratifies(t *testing.T) {
	rng := rand.New(rand.NewSource(32))
	n, numClasses, numFolds := 200, 3, 5
	labels := randomLabels(n, numClasses, rng)
	a, err := Generate(3, numFolds, labels, numClasses, rng)
	require.NoError(t, err)

	for r := range a.Folds {
		for c := 0; c < numClasses; c++ {
			min, max := n, 0
			for f := 0; f < numFolds; f++ {
				var got int
				for _, idx := range a.Folds[r][f] {
					if labels[idx] == c {
						got++
					}
				}
				if got < min {
					min = got
				}
				if got > max {
					max = got
				}
			}
			require.LessOrEqual(t, max-min, 1,
				"repetition %d class %d spread %d..%d", r, c, min, max)
		}
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	rng := rand.New(rand.NewSource(33))
	_, err := Generate(0, 5, []int{0, 1}, 2, rng)
	require.ErrorIs(t, err, ErrConfig)
	_, err = Generate(1, 5, []int{0, 3}, 2, rng)
	require.ErrorIs(t, err, ErrLabels)
}

func TestValidateShape(t *testing.T) {
	rng := rand.New(rand.NewSource(34))
	a, err := Generate(2, 4, randomLabels(40, 2, rng), 2, rng)
	require.NoError(t, err)
	require.NoError(t, a.Validate(2, 4))
	require.ErrorIs(t, a.Validate(3, 4), ErrShape)
	require.ErrorIs(t, a.Validate(2, 5), ErrShape)

	a.Folds[1] = a.Folds[1][:3]
	require.ErrorIs(t, a.Validate(2, 4), ErrShape)
}

func TestTrainTestComplement(t *testing.T) {
	rng := rand.New(rand.NewSource(35))
	n := 60
	a, err := Generate(1, 6, randomLabels(n, 2, rng), 2, rng)
	require.NoError(t, err)

	for f := 0; f < 6; f++ {
		train, test := a.TrainTest(0, f)
		require.Len(t, append(train, test...), n)
		seen := make([]bool, n)
		for _, idx := range train {
			seen[idx] = true
		}
		for _, idx := range test {
			require.False(t, seen[idx], "fold %d: index %d in both sets", f, idx)
			seen[idx] = true
		}
		for idx, ok := range seen {
			require.True(t, ok, "fold %d: index %d missing", f, idx)
		}
		require.IsIncreasing(t, train)
		require.IsIncreasing(t, test)
	}
}
