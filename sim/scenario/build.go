package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/graph"
	"github.com/sharp-sim/sharp-sim/sim/policy"
	"github.com/sharp-sim/sharp-sim/sim/resource"
	"github.com/sharp-sim/sharp-sim/sim/topology"
	"github.com/sharp-sim/sharp-sim/sim/trace"
	"github.com/sharp-sim/sharp-sim/sim/workload"
)

// Instance is a scenario wired into a controller, ready to run once.
type Instance struct {
	Scenario   *Scenario
	Topology   *topology.FatTree
	Context    *sim.Context
	Controller *sim.Controller
	Generator  *workload.Generator
	Recorder   *trace.Recorder // nil unless trace_level is set
}

// Run simulates up to the scenario's horizon.
func (in *Instance) Run() *sim.Result {
	return in.Controller.Run(in.Scenario.HorizonOrDefault())
}

// BuildTopology creates the fat-tree the scenario describes.
func (s *Scenario) BuildTopology() (*topology.FatTree, error) {
	t := s.Topology
	if len(t.DownLinks) > 0 {
		return topology.New(t.DownLinks, t.UpLinks)
	}
	return topology.NewFromDegree(intOr(t.Height, DefaultHeight), intOr(t.Degree, DefaultDegree))
}

// Build assembles a fresh Instance. Models are loaded through cache, which
// may be shared across concurrent builds. Every call creates independent
// state seeded from the scenario, so two builds run identically.
func (s *Scenario) Build(cache *workload.ModelCache) (*Instance, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ft, err := s.BuildTopology()
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	genCfg, err := s.Workload.Resolve(cache, s.baseDir, ft.HostCount())
	if err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}

	recorder := trace.NewRecorder(trace.TraceLevel(s.TraceLevel))
	ctx := sim.NewContext(sim.NewSimulationKey(s.SeedOrDefault()), s.DurationModel(), recorder)
	gen, err := workload.NewGenerator(ctx, genCfg)
	if err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}

	p := s.Policies
	hostPolicy := policy.NewHostAllocationPolicy(p.HostAllocation,
		floatOr(p.SmartAlpha, policy.DefaultSmartAlpha),
		ctx.RNG.ForSubsystem(sim.SubsystemHostAllocation))
	treePolicy := policy.NewTreeBuildingPolicy(p.TreeBuilding,
		intOr(p.MaxTreeCount, 0),
		graph.NewOracle(p.Oracle),
		ctx.RNG.ForSubsystem(sim.SubsystemTreeBuilding))
	sharingPolicy := policy.NewSharingPolicy(p.Sharing)

	ledger := resource.NewLedger(ft, s.Resources.NodeQuota, s.Resources.LinkQuota)
	controller := sim.NewController(ctx, ledger, gen, hostPolicy, treePolicy, sharingPolicy, sim.ControllerConfig{
		ExclusiveAggrTree:   s.ExclusiveAggrTree,
		RecordTreeConflicts: s.RecordTreeConflicts,
	})

	logrus.Debugf("built scenario %q: %d hosts, %d switches, policies %s/%s/%s, seed %d",
		s.Name, ft.HostCount(), ft.SwitchCount(),
		nameOr(p.HostAllocation, "first"), nameOr(p.TreeBuilding, "none"), nameOr(p.Sharing, "greedy"),
		s.SeedOrDefault())

	return &Instance{
		Scenario:   s,
		Topology:   ft,
		Context:    ctx,
		Controller: controller,
		Generator:  gen,
		Recorder:   recorder,
	}, nil
}

func nameOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
