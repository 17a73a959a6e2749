package selection

import (
	"math/rand"
	"sort"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

// Selector names accepted by ForName and the YAML configuration surface.
const (
	NameRandom     = "random"
	NameLowHubness = "low_hubness"
)

// ForName returns the selector for a configuration name.
func ForName(name string, seed int64) (Selector, error) {
	switch name {
	case NameRandom:
		return Random{Seed: seed}, nil
	case NameLowHubness:
		return LowHubness{}, nil
	}
	return nil, ErrUnknownSelector
}

// Random selects a uniform prototype subset. Its automatic rate is 0.1.
type Random struct {
	Seed int64
}

func (Random) Name() string { return NameRandom }

func (r Random) Select(sub *neighbors.TriMat, g *neighbors.Graph, rate float64) ([]int, error) {
	n := sub.Len()
	count := targetCount(n, rate, 0.1)
	rng := rand.New(rand.NewSource(r.Seed))
	perm := rng.Perm(n)
	local := append([]int(nil), perm[:count]...)
	sort.Ints(local)
	return local, nil
}

// LowHubness keeps the training points with the lowest k-occurrence counts,
// discarding hubs whose neighborhoods carry little discriminative
// information. Its automatic rate is 0.1.
type LowHubness struct{}

func (LowHubness) Name() string { return NameLowHubness }

func (LowHubness) Select(sub *neighbors.TriMat, g *neighbors.Graph, rate float64) ([]int, error) {
	n := sub.Len()
	count := targetCount(n, rate, 0.1)
	occ := g.OccurrenceCounts(n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return occ[order[a]] < occ[order[b]]
	})
	local := order[:count]
	sort.Ints(local)
	return local, nil
}
