package workload

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sharp-sim/sharp-sim/sim"
)

// GeneratorConfig is a fully resolved job stream.
type GeneratorConfig struct {
	JobCount        int
	HostCounts      []HostCountWeight
	StepCounts      []int
	Models          []*ModelInfo
	GpuSpeedupRatio float64
}

// Generator is a sim.JobSource producing JobCount random jobs. Each job
// draws a model uniformly, a host count from the weighted histogram and a
// step count uniformly, in that order, from the context's workload stream.
// Deterministic given the context's seed.
type Generator struct {
	ctx       *sim.Context
	cfg       GeneratorConfig
	rng       *rand.Rand
	hostCount distuv.Categorical
	groups    [][]sim.CommOpGroup // per model, shared by all its jobs
	emitted   int
}

// NewGenerator validates cfg and creates a generator minting jobs in ctx.
func NewGenerator(ctx *sim.Context, cfg GeneratorConfig) (*Generator, error) {
	if cfg.JobCount < 0 {
		return nil, fmt.Errorf("job count must be >= 0, got %d", cfg.JobCount)
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("at least one model is required")
	}
	if len(cfg.StepCounts) == 0 {
		return nil, fmt.Errorf("at least one step count is required")
	}
	if cfg.GpuSpeedupRatio <= 0 {
		return nil, fmt.Errorf("gpu speedup ratio must be > 0, got %g", cfg.GpuSpeedupRatio)
	}
	if _, err := fitHostCounts(cfg.HostCounts, 0); err != nil {
		return nil, err
	}
	rng := ctx.RNG.ForSubsystem(sim.SubsystemWorkload)
	weights := make([]float64, len(cfg.HostCounts))
	for i, b := range cfg.HostCounts {
		weights[i] = b.Weight
	}
	g := &Generator{
		ctx:       ctx,
		cfg:       cfg,
		rng:       rng,
		hostCount: distuv.NewCategorical(weights, rng),
		groups:    make([][]sim.CommOpGroup, len(cfg.Models)),
	}
	for i, m := range cfg.Models {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		g.groups[i] = m.CommOpGroups(cfg.GpuSpeedupRatio)
	}
	return g, nil
}

// Next returns the next job, or nil after JobCount jobs.
func (g *Generator) Next() *sim.Job {
	if g.emitted >= g.cfg.JobCount {
		return nil
	}
	g.emitted++
	model := g.rng.IntN(len(g.groups))
	hostCount := g.cfg.HostCounts[int(g.hostCount.Rand())].HostCount
	stepCount := g.cfg.StepCounts[g.rng.IntN(len(g.cfg.StepCounts))]
	job := g.ctx.NewJob(hostCount, stepCount, g.groups[model])
	logrus.Tracef("generated job %d: model %d, %d hosts, %d steps", job.ID, model, hostCount, stepCount)
	return job
}

// Emitted is the number of jobs produced so far.
func (g *Generator) Emitted() int { return g.emitted }
