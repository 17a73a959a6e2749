package hubminer

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datapoet/hubminer-sub001/fold"
	"github.com/datapoet/hubminer-sub001/neighbors"
	"github.com/datapoet/hubminer-sub001/secondary"
	"github.com/datapoet/hubminer-sub001/selection"
)

// Result is the outcome of one evaluation run.
type Result struct {
	// RunID identifies the run in logs and downstream reports.
	RunID string
	// Folds is the assignment the run used (generated or supplied).
	Folds *fold.Assignment
	// PerFold holds each classifier's estimator per (repetition, fold)
	// trial in r*numFolds+f order; failed trials leave a nil entry.
	PerFold map[string][]*Estimator
	// Average is each classifier's normalized running estimator.
	Average map[string]*Estimator
	// FullFolds is the number of trials that contributed per-class fields
	// to the average, per classifier.
	FullFolds map[string]int
	// Correct counts, per classifier and per dataset instance, how often
	// the instance was classified correctly across repetitions.
	Correct map[string][]int
	// Elapsed is the cumulative train+test wall time per classifier.
	Elapsed map[string]time.Duration
	// Parameters reports each classifier's effective parameters, when the
	// classifier exposes them.
	Parameters map[string]map[string]any
}

// foldContext is the shared, read-only input handed to every classifier task
// of one (repetition, fold) pair. It is rebuilt per fold and released after
// the join.
type foldContext struct {
	train, test []int
	sub         *neighbors.TriMat
	rect        [][]float64
	graph       *neighbors.Graph
	queryGraph  *neighbors.Graph
	reduced     *selection.Result
	k           int
}

// Evaluate runs repeated stratified cross-validation of the classifiers over
// the dataset and its precomputed distance matrix. The outer
// (repetition, fold) loop is sequential; within a fold one goroutine per
// classifier trains, tests and accumulates. A failure in one classifier's
// trial is logged and excluded from that classifier's aggregate without
// aborting the run; a malformed externally supplied fold assignment is a
// configuration error returned before any computation.
func Evaluate(data *Dataset, dist *neighbors.TriMat, classifiers []Classifier, settings *Settings) (*Result, error) {
	if len(classifiers) == 0 {
		return nil, ErrNoClassifiers
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	if dist.Len() != data.Len() {
		return nil, fmt.Errorf("%w: %d instances, %d matrix rows", ErrDataSize, data.Len(), dist.Len())
	}
	if settings.TestLabels != nil && len(settings.TestLabels) != data.Len() {
		return nil, fmt.Errorf("%w: %d overrides for %d instances",
			ErrTestLabels, len(settings.TestLabels), data.Len())
	}
	logger := settings.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	assignment := settings.Folds
	if assignment != nil {
		if err := assignment.Validate(settings.Times, settings.NumFolds); err != nil {
			return nil, err
		}
	} else {
		rng := rand.New(rand.NewSource(settings.Seed))
		var err error
		assignment, err = fold.Generate(settings.Times, settings.NumFolds,
			data.Labels, data.NumClasses, rng)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{
		RunID:      uuid.NewString(),
		Folds:      assignment,
		PerFold:    make(map[string][]*Estimator),
		Average:    make(map[string]*Estimator),
		FullFolds:  make(map[string]int),
		Correct:    make(map[string][]int),
		Elapsed:    make(map[string]time.Duration),
		Parameters: make(map[string]map[string]any),
	}
	averages := make([]*AverageEstimator, len(classifiers))
	perFold := make([][]*Estimator, len(classifiers))
	correct := make([][]int, len(classifiers))
	elapsed := make([]time.Duration, len(classifiers))
	trials := settings.Times * settings.NumFolds
	for ci := range classifiers {
		averages[ci] = NewAverageEstimator(data.NumClasses)
		perFold[ci] = make([]*Estimator, trials)
		correct[ci] = make([]int, data.Len())
	}

	start := time.Now()
	logger.Info("evaluation started",
		zap.String("run", res.RunID),
		zap.Int("instances", data.Len()),
		zap.Int("classifiers", len(classifiers)),
		zap.Int("times", settings.Times),
		zap.Int("folds", settings.NumFolds))

	// The global graph is built once and read-only afterward.
	builder := neighbors.Builder{
		K:           settings.kBig(),
		Workers:     settings.Workers,
		Approximate: settings.Approximate,
		Quality:     settings.Quality,
		Seed:        settings.Seed,
	}
	global, err := builder.Build(dist)
	if err != nil {
		return nil, err
	}

	truth := data.Labels
	if settings.TestLabels != nil {
		truth = settings.TestLabels
	}

	for r := 0; r < settings.Times; r++ {
		for f := 0; f < settings.NumFolds; f++ {
			ctx, err := deriveFold(assignment, r, f, dist, global, settings)
			if err != nil {
				return nil, fmt.Errorf("hubminer: repetition %d fold %d: %w", r, f, err)
			}

			var wg sync.WaitGroup
			for ci, proto := range classifiers {
				wg.Add(1)
				go func(ci int, proto Classifier) {
					defer wg.Done()
					averages[ci].CountTrial()
					trialStart := time.Now()
					est, preds, err := runTrial(proto, data, ctx, truth, settings)
					elapsed[ci] += time.Since(trialStart)
					if err != nil {
						logger.Error("classifier trial failed",
							zap.String("run", res.RunID),
							zap.String("classifier", proto.Name()),
							zap.Int("repetition", r),
							zap.Int("fold", f),
							zap.Error(err))
						return
					}
					perFold[ci][r*settings.NumFolds+f] = est
					averages[ci].Accumulate(est)
					for ti, p := range preds {
						if p == truth[ctx.test[ti]] {
							correct[ci][ctx.test[ti]]++
						}
					}
				}(ci, proto)
			}
			wg.Wait()
		}
	}

	for ci, proto := range classifiers {
		name := proto.Name()
		res.PerFold[name] = perFold[ci]
		res.Average[name] = averages[ci].Mean()
		res.FullFolds[name] = averages[ci].FullFolds
		res.Correct[name] = correct[ci]
		res.Elapsed[name] = elapsed[ci]
		if pr, ok := proto.(ParameterReporter); ok {
			res.Parameters[name] = pr.Parameters()
		}
	}
	logger.Info("evaluation finished",
		zap.String("run", res.RunID),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// deriveFold assembles the shared fold-local structures: index sets, distance
// sub-matrices, primary neighbor graphs, then optionally the secondary
// distance space and the prototype reduction.
func deriveFold(a *fold.Assignment, r, f int, dist *neighbors.TriMat, global *neighbors.Graph, settings *Settings) (*foldContext, error) {
	train, test := a.TrainTest(r, f)
	k := settings.effectiveK()

	sub := dist.Sub(train)
	rect := dist.Rect(test, train)
	graph, err := neighbors.ProjectTraining(global, sub, train, k)
	if err != nil {
		return nil, err
	}
	queryGraph, err := neighbors.ProjectQueries(global, rect, test, train, k)
	if err != nil {
		return nil, err
	}

	if settings.Secondary != nil {
		sk := settings.SecondaryK
		if sk <= 0 {
			sk = k
		}
		sGraph, sQuery := graph, queryGraph
		if sk != k {
			if sGraph, err = neighbors.ProjectTraining(global, sub, train, sk); err != nil {
				return nil, err
			}
			if sQuery, err = neighbors.ProjectQueries(global, rect, test, train, sk); err != nil {
				return nil, err
			}
		}
		sub2, rect2, err := settings.Secondary.Apply(&secondary.Context{
			Train:       sub,
			TestToTrain: rect,
			Graph:       sGraph,
			QueryGraph:  sQuery,
		})
		if err != nil {
			return nil, err
		}
		// The transform permutes neighbor order, so the final graphs are
		// recomputed in the secondary space.
		sub, rect = sub2, rect2
		finalBuilder := neighbors.Builder{K: k, Workers: settings.Workers}
		if graph, err = finalBuilder.Build(sub); err != nil {
			return nil, err
		}
		queryGraph = neighbors.BuildRect(rect, k)
	}

	ctx := &foldContext{
		train:      train,
		test:       test,
		sub:        sub,
		rect:       rect,
		graph:      graph,
		queryGraph: queryGraph,
		k:          k,
	}

	if settings.Selector != nil {
		// In a transformed space there is no dataset-wide graph to project
		// from; Reduce then builds the prototype graphs fresh.
		projectFrom := global
		if settings.Secondary != nil {
			projectFrom = nil
		}
		reduced, err := selection.Reduce(settings.Selector, settings.HubnessMode,
			settings.SelectionRate, k, settings.Workers,
			train, test, sub, rect, graph, projectFrom)
		if err != nil {
			return nil, err
		}
		ctx.reduced = reduced
	}
	return ctx, nil
}

// runTrial clones the classifier's initial configuration, feeds it the fold
// structures its capabilities declare, trains, tests, and scores. Panics
// inside the classifier are recovered into errors so one classifier cannot
// abort the others.
func runTrial(proto Classifier, data *Dataset, ctx *foldContext, truth []int, settings *Settings) (est *Estimator, preds []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			est, preds = nil, nil
			err = fmt.Errorf("hubminer: %s panicked: %v", proto.Name(), r)
		}
	}()

	c := proto.CloneConfiguration()

	trainIdx, sub, graph := ctx.train, ctx.sub, ctx.graph
	rect, queryGraph := ctx.rect, ctx.queryGraph
	if ctx.reduced != nil {
		trainIdx = ctx.reduced.Prototypes
		sub = ctx.reduced.SubMatrix
		graph = ctx.reduced.Graph
		rect = ctx.reduced.TestToProto
		queryGraph = ctx.reduced.QueryGraph
	}

	c.SetDataIndexes(trainIdx, data)
	if u, ok := c.(DistanceMatrixUser); ok {
		u.SetDistanceMatrix(sub)
	}
	if u, ok := c.(NeighborGraphUser); ok {
		u.SetNeighborGraph(graph)
	}
	if u, ok := c.(NeighborhoodSizer); ok {
		u.SetNeighborhoodSize(ctx.k)
	}

	rt, reducedTrain := c.(ReducedTrainer)
	if reducedTrain && ctx.reduced != nil && settings.HubnessMode == selection.ProtoUnbiased {
		// Bias-compensated training over the unbiased occurrence estimates.
		err = rt.TrainOnReducedData(ctx.reduced)
	} else {
		err = c.Train()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("train: %w", err)
	}

	switch t := c.(type) {
	case NeighborQuerier:
		preds, err = t.TestWithNeighbors(ctx.test, queryGraph)
	case DistanceQuerier:
		preds, err = t.TestWithDistances(ctx.test, rect)
	default:
		preds, err = c.Test(ctx.test)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("test: %w", err)
	}

	testTruth := make([]int, len(ctx.test))
	for i, idx := range ctx.test {
		testTruth[i] = truth[idx]
	}
	est, err = EstimatorFromPredictions(preds, testTruth, data.NumClasses)
	if err != nil {
		return nil, nil, err
	}
	return est, preds, nil
}
