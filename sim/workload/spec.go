package workload

import (
	"fmt"
	"path/filepath"
)

// WorkloadSpec describes the generated job stream in a scenario file.
type WorkloadSpec struct {
	JobCount        int               `yaml:"job_count"`
	HostCountTrace  *int              `yaml:"host_count_trace,omitempty"` // index into HostCountTraces; default 0
	HostCounts      []HostCountWeight `yaml:"host_counts,omitempty"`      // overrides host_count_trace
	StepCounts      []int             `yaml:"step_counts,omitempty"`      // default DefaultStepCounts
	Models          []ModelSpec       `yaml:"models"`
	GpuSpeedupRatio *float64          `yaml:"gpu_speedup_ratio,omitempty"` // default 1
}

// ModelSpec names a profile file or embeds one.
type ModelSpec struct {
	Path   string     `yaml:"path,omitempty"`
	Inline *ModelInfo `yaml:"inline,omitempty"`
}

// Validate checks the spec without touching the file system.
func (s *WorkloadSpec) Validate() error {
	if s.JobCount < 1 {
		return fmt.Errorf("job_count must be >= 1, got %d", s.JobCount)
	}
	if s.HostCountTrace != nil && len(s.HostCounts) > 0 {
		return fmt.Errorf("host_count_trace and host_counts are mutually exclusive")
	}
	if s.HostCountTrace != nil {
		if _, err := HostCountTrace(*s.HostCountTrace); err != nil {
			return err
		}
	}
	if len(s.HostCounts) > 0 {
		if _, err := fitHostCounts(s.HostCounts, 0); err != nil {
			return fmt.Errorf("host_counts: %w", err)
		}
	}
	for i, n := range s.StepCounts {
		if n < 1 {
			return fmt.Errorf("step_counts[%d] must be >= 1, got %d", i, n)
		}
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	for i, m := range s.Models {
		if (m.Path == "") == (m.Inline == nil) {
			return fmt.Errorf("models[%d]: exactly one of path or inline is required", i)
		}
		if m.Inline != nil {
			if err := m.Inline.Validate(); err != nil {
				return fmt.Errorf("models[%d]: %w", i, err)
			}
		}
	}
	if s.GpuSpeedupRatio != nil && *s.GpuSpeedupRatio <= 0 {
		return fmt.Errorf("gpu_speedup_ratio must be > 0, got %g", *s.GpuSpeedupRatio)
	}
	return nil
}

// Resolve loads the referenced models through cache, resolving relative
// paths against baseDir, and returns a ready generator configuration.
// maxHostCount drops job sizes the cluster cannot hold (0 = no limit).
func (s *WorkloadSpec) Resolve(cache *ModelCache, baseDir string, maxHostCount int) (GeneratorConfig, error) {
	if err := s.Validate(); err != nil {
		return GeneratorConfig{}, err
	}
	cfg := GeneratorConfig{
		JobCount:        s.JobCount,
		StepCounts:      s.StepCounts,
		GpuSpeedupRatio: 1,
	}
	if len(cfg.StepCounts) == 0 {
		cfg.StepCounts = DefaultStepCounts
	}
	if s.GpuSpeedupRatio != nil {
		cfg.GpuSpeedupRatio = *s.GpuSpeedupRatio
	}

	buckets := s.HostCounts
	if len(buckets) == 0 {
		index := 0
		if s.HostCountTrace != nil {
			index = *s.HostCountTrace
		}
		buckets, _ = HostCountTrace(index)
	}
	fitted, err := fitHostCounts(buckets, maxHostCount)
	if err != nil {
		return GeneratorConfig{}, err
	}
	cfg.HostCounts = fitted

	for i, m := range s.Models {
		if m.Inline != nil {
			cfg.Models = append(cfg.Models, m.Inline)
			continue
		}
		path := m.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		info, err := cache.Get(path)
		if err != nil {
			return GeneratorConfig{}, fmt.Errorf("models[%d]: %w", i, err)
		}
		cfg.Models = append(cfg.Models, info)
	}
	return cfg, nil
}
