// Package scenario loads a simulation scenario from YAML and assembles a
// ready-to-run controller from it.
package scenario

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sharp-sim/sharp-sim/sim"
	"github.com/sharp-sim/sharp-sim/sim/graph"
	"github.com/sharp-sim/sharp-sim/sim/policy"
	"github.com/sharp-sim/sharp-sim/sim/trace"
	"github.com/sharp-sim/sharp-sim/sim/workload"
)

// Defaults used when the scenario leaves a field unset.
const (
	DefaultSeed          int64   = 42
	DefaultHeight                = 2
	DefaultDegree                = 16
	DefaultBandwidth     float64 = 12.5e9 // bytes per second
	DefaultSharpAccRatio float64 = 2.0
	DefaultLatency       float64 = 50e-6 // seconds
)

// Scenario is one fully described simulation run.
// Nil pointer fields mean "not set in YAML" and take the defaults above.
type Scenario struct {
	Name                string                `yaml:"name"`
	Seed                *int64                `yaml:"seed"`
	Horizon             *float64              `yaml:"horizon"` // simulated seconds; unset runs to completion
	Topology            TopologyConfig        `yaml:"topology"`
	Resources           ResourceConfig        `yaml:"resources"`
	Network             NetworkConfig         `yaml:"network"`
	Policies            PolicyConfig          `yaml:"policies"`
	Workload            workload.WorkloadSpec `yaml:"workload"`
	ExclusiveAggrTree   bool                  `yaml:"exclusive_aggr_tree"`
	RecordTreeConflicts bool                  `yaml:"record_tree_conflicts"`
	TraceLevel          string                `yaml:"trace_level"`

	// baseDir resolves relative model paths; the directory of the file
	// the scenario was loaded from.
	baseDir string
}

// TopologyConfig selects a radix fat-tree by height and degree, or an
// explicit one by per-layer fan-outs.
type TopologyConfig struct {
	Height    *int  `yaml:"height"`
	Degree    *int  `yaml:"degree"`
	DownLinks []int `yaml:"down_links"`
	UpLinks   []int `yaml:"up_links"`
}

// ResourceConfig holds the SHARP quotas; nil is unlimited.
type ResourceConfig struct {
	NodeQuota *int `yaml:"node_quota"`
	LinkQuota *int `yaml:"link_quota"`
}

// NetworkConfig parameterizes the linear transmission duration model.
type NetworkConfig struct {
	Bandwidth     *float64 `yaml:"bandwidth"`
	SharpAccRatio *float64 `yaml:"sharp_acc_ratio"`
	Latency       *float64 `yaml:"latency"`
}

// PolicyConfig names the three controller policies and their parameters.
type PolicyConfig struct {
	HostAllocation string   `yaml:"host_allocation"`
	SmartAlpha     *float64 `yaml:"smart_alpha"`
	TreeBuilding   string   `yaml:"tree_building"`
	MaxTreeCount   *int     `yaml:"max_tree_count"`
	Oracle         string   `yaml:"oracle"`
	Sharing        string   `yaml:"sharing"`
}

// Load reads, strictly decodes and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario. baseDir resolves relative model
// paths.
func Parse(data []byte, baseDir string) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	s.baseDir = baseDir
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// BaseDir is the directory relative model paths resolve against.
func (s *Scenario) BaseDir() string { return s.baseDir }

// SetBaseDir overrides the directory relative model paths resolve against.
func (s *Scenario) SetBaseDir(dir string) { s.baseDir = dir }

// Validate checks names and parameter ranges. It does not read model files.
func (s *Scenario) Validate() error {
	if s.Horizon != nil && *s.Horizon < 0 {
		return fmt.Errorf("horizon must be >= 0, got %g", *s.Horizon)
	}
	if err := s.Topology.validate(); err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if q := s.Resources.NodeQuota; q != nil && *q < 0 {
		return fmt.Errorf("node_quota must be >= 0, got %d", *q)
	}
	if q := s.Resources.LinkQuota; q != nil && *q < 0 {
		return fmt.Errorf("link_quota must be >= 0, got %d", *q)
	}
	if err := s.Network.validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := s.Policies.validate(); err != nil {
		return fmt.Errorf("policies: %w", err)
	}
	if err := s.Workload.Validate(); err != nil {
		return fmt.Errorf("workload: %w", err)
	}
	if !trace.IsValidTraceLevel(s.TraceLevel) {
		return fmt.Errorf("unknown trace level %q", s.TraceLevel)
	}
	return nil
}

func (t *TopologyConfig) validate() error {
	explicit := len(t.DownLinks) > 0 || len(t.UpLinks) > 0
	if explicit && (t.Height != nil || t.Degree != nil) {
		return fmt.Errorf("height/degree and down_links/up_links are mutually exclusive")
	}
	if explicit && len(t.DownLinks) != len(t.UpLinks) {
		return fmt.Errorf("down_links has %d layers but up_links has %d", len(t.DownLinks), len(t.UpLinks))
	}
	if t.Height != nil && *t.Height < 1 {
		return fmt.Errorf("height must be >= 1, got %d", *t.Height)
	}
	if t.Degree != nil && (*t.Degree < 2 || *t.Degree%2 != 0) {
		return fmt.Errorf("degree must be an even number >= 2, got %d", *t.Degree)
	}
	return nil
}

func (n *NetworkConfig) validate() error {
	if n.Bandwidth != nil && *n.Bandwidth <= 0 {
		return fmt.Errorf("bandwidth must be > 0, got %g", *n.Bandwidth)
	}
	if n.SharpAccRatio != nil && *n.SharpAccRatio <= 0 {
		return fmt.Errorf("sharp_acc_ratio must be > 0, got %g", *n.SharpAccRatio)
	}
	if n.Latency != nil && *n.Latency < 0 {
		return fmt.Errorf("latency must be >= 0, got %g", *n.Latency)
	}
	return nil
}

func (p *PolicyConfig) validate() error {
	if !policy.IsValidHostAllocationPolicy(p.HostAllocation) {
		return fmt.Errorf("unknown host allocation policy %q", p.HostAllocation)
	}
	if !policy.IsValidTreeBuildingPolicy(p.TreeBuilding) {
		return fmt.Errorf("unknown tree building policy %q", p.TreeBuilding)
	}
	if !policy.IsValidSharingPolicy(p.Sharing) {
		return fmt.Errorf("unknown sharing policy %q", p.Sharing)
	}
	if !graph.IsValidOracle(p.Oracle) {
		return fmt.Errorf("unknown oracle %q", p.Oracle)
	}
	if p.SmartAlpha != nil && (*p.SmartAlpha < 0 || *p.SmartAlpha > 1) {
		return fmt.Errorf("smart_alpha must be in [0,1], got %g", *p.SmartAlpha)
	}
	if p.MaxTreeCount != nil && *p.MaxTreeCount < 0 {
		return fmt.Errorf("max_tree_count must be >= 0, got %d", *p.MaxTreeCount)
	}
	return nil
}

// SeedOrDefault is the configured seed or DefaultSeed.
func (s *Scenario) SeedOrDefault() int64 {
	if s.Seed != nil {
		return *s.Seed
	}
	return DefaultSeed
}

// HorizonOrDefault is the configured horizon or +Inf.
func (s *Scenario) HorizonOrDefault() float64 {
	if s.Horizon != nil {
		return *s.Horizon
	}
	return math.Inf(1)
}

// DurationModel is the linear model the scenario's network describes.
func (s *Scenario) DurationModel() sim.LinearDurationModel {
	return sim.LinearDurationModel{
		Bandwidth:     floatOr(s.Network.Bandwidth, DefaultBandwidth),
		SharpAccRatio: floatOr(s.Network.SharpAccRatio, DefaultSharpAccRatio),
		Latency:       floatOr(s.Network.Latency, DefaultLatency),
	}
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}
