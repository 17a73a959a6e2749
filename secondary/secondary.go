// Package secondary implements hubness-aware secondary distance transforms.
// Each transform consumes a fold-local primary distance structure together
// with its neighbor graph at a configured secondary neighborhood size, and
// produces a new training sub-matrix plus test-to-train distance block in the
// transformed space.
package secondary

import (
	"errors"

	"github.com/datapoet/hubminer-sub001/neighbors"
)

var (
	// ErrNeighborhood is returned when a transform needs more neighbors than
	// the supplied graphs carry.
	ErrNeighborhood = errors.New("secondary: neighbor graph smaller than secondary neighborhood")
	// ErrUnknownMode is returned by ForMode for an unrecognized mode name.
	ErrUnknownMode = errors.New("secondary: unknown mode")
)

// Context is the fold-local input to a transform. Graph holds each training
// point's neighbors at the secondary neighborhood size; QueryGraph holds the
// test points' neighbors among the training set at the same size. Neighbor
// indices in both graphs are local training positions.
type Context struct {
	Train       *neighbors.TriMat
	TestToTrain [][]float64
	Graph       *neighbors.Graph
	QueryGraph  *neighbors.Graph
}

// Transform rewrites a fold's primary distances into a secondary space.
// Implementations must not mutate the context's matrices or graphs.
type Transform interface {
	Name() string
	Apply(ctx *Context) (train *neighbors.TriMat, testToTrain [][]float64, err error)
}

// Mode names accepted by ForMode and the YAML configuration surface.
const (
	ModeSimcos       = "simcos"
	ModeSimhub       = "simhub"
	ModeMutualProx   = "mutual_proximity"
	ModeLocalScaling = "local_scaling"
	ModeNICDM        = "nicdm"
)

// ForMode returns the transform for a configuration mode name, using the
// secondary neighborhood size s.
func ForMode(mode string, s int) (Transform, error) {
	switch mode {
	case ModeSimcos:
		return SharedNeighbors{S: s}, nil
	case ModeSimhub:
		return SharedNeighbors{S: s, HubnessWeighted: true}, nil
	case ModeMutualProx:
		return MutualProximity{}, nil
	case ModeLocalScaling:
		return LocalScaling{S: s}, nil
	case ModeNICDM:
		return NICDM{S: s}, nil
	}
	return nil, ErrUnknownMode
}

// checkSize verifies both graphs carry at least s neighbors per point, up to
// what the training set allows.
func checkSize(ctx *Context, s int) error {
	if ctx.Graph.K < s && ctx.Graph.K < ctx.Train.Len()-1 {
		return ErrNeighborhood
	}
	if ctx.QueryGraph != nil && ctx.QueryGraph.K < s && ctx.QueryGraph.K < ctx.Train.Len() {
		return ErrNeighborhood
	}
	return nil
}
