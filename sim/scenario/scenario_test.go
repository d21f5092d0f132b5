package scenario

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharp-sim/sharp-sim/sim/workload"
)

const smallScenario = `
name: small
seed: 7
topology:
  height: 2
  degree: 4
resources:
  node_quota: 1
network:
  bandwidth: 1000000
  sharp_acc_ratio: 2
  latency: 0
policies:
  host_allocation: smart
  tree_building: smart
  max_tree_count: 2
  sharing: smart
workload:
  job_count: 6
  host_counts:
    - {host_count: 2, weight: 1}
    - {host_count: 4, weight: 1}
  step_counts: [2, 3]
  models:
    - inline:
        duration: 0.01
        allreduces:
          - {start: 0, size: 1000}
          - {start: 0.002, size: 4000}
`

func TestParse_AppliesDefaults(t *testing.T) {
	// GIVEN a scenario with only a workload
	data := []byte(`
workload:
  job_count: 1
  models:
    - path: model.json
`)

	// WHEN it is parsed
	s, err := Parse(data, "/data")

	// THEN every unset field resolves to its default
	require.NoError(t, err)
	assert.Equal(t, DefaultSeed, s.SeedOrDefault())
	assert.True(t, math.IsInf(s.HorizonOrDefault(), 1))
	model := s.DurationModel()
	assert.Equal(t, DefaultBandwidth, model.Bandwidth)
	assert.Equal(t, DefaultSharpAccRatio, model.SharpAccRatio)
	assert.Equal(t, DefaultLatency, model.Latency)
	assert.Equal(t, "/data", s.BaseDir())

	ft, err := s.BuildTopology()
	require.NoError(t, err)
	assert.Equal(t, DefaultHeight, ft.Height)
	assert.Equal(t, 128, ft.HostCount())
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("seed: 1\nspeed: 2\n"), ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field speed not found")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"negative horizon", "horizon: -1", "horizon"},
		{"odd degree", "topology: {degree: 3}", "degree"},
		{"mixed topology", "topology: {height: 2, down_links: [2], up_links: [1]}", "mutually exclusive"},
		{"ragged links", "topology: {down_links: [2, 2], up_links: [1]}", "up_links"},
		{"negative quota", "resources: {node_quota: -1}", "node_quota"},
		{"zero bandwidth", "network: {bandwidth: 0}", "bandwidth"},
		{"unknown host policy", "policies: {host_allocation: best}", "host allocation"},
		{"unknown tree policy", "policies: {tree_building: tallest}", "tree building"},
		{"unknown sharing policy", "policies: {sharing: fair}", "sharing"},
		{"unknown oracle", "policies: {oracle: optimal}", "oracle"},
		{"alpha out of range", "policies: {smart_alpha: 1.5}", "smart_alpha"},
		{"negative tree count", "policies: {max_tree_count: -1}", "max_tree_count"},
		{"unknown trace level", "trace_level: verbose", "trace level"},
	}
	workloadYAML := "\nworkload: {job_count: 1, models: [{path: m.json}]}\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml+workloadYAML), ".")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	// GIVEN a missing workload THEN validation fails in the workload section
	_, err := Parse([]byte("seed: 1\n"), ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workload")
}

func TestBuild_ExplicitTopology(t *testing.T) {
	s, err := Parse([]byte(`
topology: {down_links: [2, 4], up_links: [1, 2]}
workload: {job_count: 1, host_counts: [{host_count: 64, weight: 1}], models: [{path: m.json}]}
`), ".")
	require.NoError(t, err)

	ft, err := s.BuildTopology()
	require.NoError(t, err)
	assert.Equal(t, 8, ft.HostCount())

	// WHEN no configured job size fits the 8-host cluster THEN Build fails
	_, err = s.Build(workload.NewModelCache())
	require.Error(t, err)
}

func TestBuild_RunsToCompletion(t *testing.T) {
	// GIVEN the small scenario
	s, err := Parse([]byte(smallScenario), ".")
	require.NoError(t, err)

	// WHEN it is built and run
	in, err := s.Build(workload.NewModelCache())
	require.NoError(t, err)
	assert.Nil(t, in.Recorder)
	result := in.Run()

	// THEN every generated job finishes
	assert.Equal(t, 6, result.FinishedJobCount)
	assert.Len(t, result.Jobs, 6)
	assert.Equal(t, 6, in.Generator.Emitted())
	assert.Greater(t, result.SimulatedTime, 0.0)
	assert.Equal(t, 0, in.Controller.Ledger().SwitchUsageSum())
}

func TestBuild_ExactOracle_RunsToCompletion(t *testing.T) {
	// GIVEN the small scenario planning trees with the exact oracle
	s, err := Parse([]byte(smallScenario), ".")
	require.NoError(t, err)
	s.Policies.Oracle = "exact"
	require.NoError(t, s.Validate())

	// WHEN it is built and run
	in, err := s.Build(workload.NewModelCache())
	require.NoError(t, err)
	result := in.Run()

	// THEN every job finishes and the fabric is released
	assert.Equal(t, 6, result.FinishedJobCount)
	assert.Equal(t, 0, in.Controller.Ledger().SwitchUsageSum())
}

func TestBuild_SameSeed_SameResult(t *testing.T) {
	s, err := Parse([]byte(smallScenario), ".")
	require.NoError(t, err)
	cache := workload.NewModelCache()

	a, err := s.Build(cache)
	require.NoError(t, err)
	b, err := s.Build(cache)
	require.NoError(t, err)
	ra, rb := a.Run(), b.Run()

	assert.Equal(t, ra.Jobs, rb.Jobs)
	assert.Equal(t, ra.SimulatedTime, rb.SimulatedTime)
	assert.Equal(t, ra.JCTScore, rb.JCTScore)
	assert.Equal(t, ra.TreeMigrationCount, rb.TreeMigrationCount)
}

func TestBuild_HorizonCutsRun(t *testing.T) {
	s, err := Parse([]byte(smallScenario+"horizon: 0.001\n"), ".")
	require.NoError(t, err)

	in, err := s.Build(workload.NewModelCache())
	require.NoError(t, err)
	result := in.Run()

	assert.Equal(t, 0.001, result.SimulatedTime)
	assert.Less(t, result.FinishedJobCount, len(result.Jobs))
}

func TestLoad_ResolvesModelPathsAgainstScenarioDir(t *testing.T) {
	// GIVEN a scenario file next to a model file, with tracing enabled
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"),
		[]byte(`{"duration": 0.01, "allreduces": [{"start": 0, "size": 1000}]}`), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
topology: {height: 2, degree: 4}
trace_level: jobs
workload:
  job_count: 2
  host_counts: [{host_count: 2, weight: 1}]
  step_counts: [1]
  models: [{path: model.json}]
`), 0o644))

	// WHEN it is loaded and built
	s, err := Load(path)
	require.NoError(t, err)
	cache := workload.NewModelCache()
	in, err := s.Build(cache)
	require.NoError(t, err)
	result := in.Run()

	// THEN the model came from the scenario directory and spans were recorded
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 2, result.FinishedJobCount)
	require.NotNil(t, in.Recorder)
	assert.Positive(t, in.Recorder.Len())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading scenario")
}
