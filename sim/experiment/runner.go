// Package experiment runs batches of scenarios concurrently and summarizes
// their results across runs.
package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/scenario"
	"github.com/sharp-sim/sharp-sim/sim/trace"
	"github.com/sharp-sim/sharp-sim/sim/workload"
)

// Outcome is the result of one scenario in a batch.
type Outcome struct {
	Index    int
	Name     string
	Seed     int64
	Result   *sim.Result
	Recorder *trace.Recorder
	WallTime time.Duration
	Err      error // build failure or a panic inside the run
}

// RunAll builds and runs every scenario with at most workers in flight.
// Outcomes are returned in input order regardless of completion order, and
// each run is seeded from its own scenario, so the batch is deterministic.
// Model files are loaded once and shared. A failing scenario records its
// error in its Outcome; RunAll itself fails only if ctx is done before
// every run was started.
func RunAll(ctx context.Context, scenarios []*scenario.Scenario, workers int) ([]Outcome, error) {
	if workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", workers)
	}
	cache := workload.NewModelCache()
	outcomes := make([]Outcome, len(scenarios))
	sem := semaphore.NewWeighted(int64(workers))

	logrus.Infof("running %d scenarios with %d workers", len(scenarios), workers)
	var startErr error
	for i, s := range scenarios {
		if err := sem.Acquire(ctx, 1); err != nil {
			startErr = fmt.Errorf("starting scenario %d: %w", i, err)
			break
		}
		go func(i int, s *scenario.Scenario) {
			defer sem.Release(1)
			outcomes[i] = runOne(i, s, cache)
		}(i, s)
	}

	// drain in-flight runs, cancelled or not
	if err := sem.Acquire(context.Background(), int64(workers)); err != nil {
		return nil, err
	}
	if startErr != nil {
		return nil, startErr
	}
	return outcomes, nil
}

func runOne(i int, s *scenario.Scenario, cache *workload.ModelCache) (out Outcome) {
	out = Outcome{Index: i, Name: s.Name, Seed: s.SeedOrDefault()}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("scenario %d (%s): panic: %v", i, s.Name, r)
			logrus.Errorf("%v", out.Err)
		}
	}()
	in, err := s.Build(cache)
	if err != nil {
		out.Err = fmt.Errorf("scenario %d (%s): %w", i, s.Name, err)
		return out
	}
	start := time.Now()
	out.Result = in.Run()
	out.WallTime = time.Since(start)
	out.Recorder = in.Recorder
	logrus.Debugf("scenario %d (%s) finished in %v: %d jobs, JCT score %.4f",
		i, s.Name, out.WallTime, out.Result.FinishedJobCount, out.Result.JCTScore)
	return out
}

// Errors returns the errors of the failed outcomes, in order.
func Errors(outcomes []Outcome) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
