package workload

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sharp-sim/sharp-sim/sim"
)

// ModelInfo is the communication profile of one training step of a model:
// the all-reduces issued during the step and the step's compute duration.
// Files are JSON or YAML with the shape
//
//	{"duration": 0.12, "allreduces": [{"start": 0.01, "size": 4194304}, ...]}
type ModelInfo struct {
	Duration   float64         `yaml:"duration"`
	AllReduces []AllReduceInfo `yaml:"allreduces"`
}

// AllReduceInfo is one all-reduce: offset from the step start and bytes.
type AllReduceInfo struct {
	Start float64 `yaml:"start"`
	Size  int64   `yaml:"size"`
}

// Validate checks that the profile can drive a job.
func (m *ModelInfo) Validate() error {
	if m.Duration < 0 {
		return fmt.Errorf("duration must be >= 0, got %g", m.Duration)
	}
	if len(m.AllReduces) == 0 {
		return fmt.Errorf("at least one all-reduce is required")
	}
	for i, op := range m.AllReduces {
		if op.Start < 0 {
			return fmt.Errorf("allreduces[%d]: start must be >= 0, got %g", i, op.Start)
		}
		if op.Size <= 0 {
			return fmt.Errorf("allreduces[%d]: size must be > 0, got %d", i, op.Size)
		}
	}
	return nil
}

// CommOpGroups turns the profile into a single comm-op group whose barrier is
// the step duration. Times are divided by gpuSpeedupRatio to model faster
// compute with the same traffic.
func (m *ModelInfo) CommOpGroups(gpuSpeedupRatio float64) []sim.CommOpGroup {
	if gpuSpeedupRatio <= 0 {
		panic(fmt.Sprintf("ModelInfo.CommOpGroups: speedup ratio must be > 0, got %g", gpuSpeedupRatio))
	}
	group := sim.CommOpGroup{
		CommOps:  make([]sim.CommOp, len(m.AllReduces)),
		SyncTime: m.Duration / gpuSpeedupRatio,
	}
	for i, op := range m.AllReduces {
		group.CommOps[i] = sim.CommOp{
			StartTimeInGroup: op.Start / gpuSpeedupRatio,
			MessageSize:      op.Size,
			Type:             sim.AllReduce,
		}
	}
	return []sim.CommOpGroup{group}
}

// LoadModelInfo reads and validates a model profile. Unknown fields are
// rejected.
func LoadModelInfo(path string) (*ModelInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model info: %w", err)
	}
	var info ModelInfo
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&info); err != nil {
		return nil, fmt.Errorf("parsing model info %s: %w", path, err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model info %s: %w", path, err)
	}
	return &info, nil
}

// ModelCache loads each model file once. Safe for concurrent use; the
// returned profiles are shared and must not be modified.
type ModelCache struct {
	mu     sync.Mutex
	models map[string]*ModelInfo
}

// NewModelCache creates an empty cache.
func NewModelCache() *ModelCache {
	return &ModelCache{models: make(map[string]*ModelInfo)}
}

// Get returns the profile at path, loading it on first use.
func (c *ModelCache) Get(path string) (*ModelInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.models[path]; ok {
		return info, nil
	}
	info, err := LoadModelInfo(path)
	if err != nil {
		return nil, err
	}
	c.models[path] = info
	return info, nil
}

// Len is the number of cached profiles.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.models)
}
