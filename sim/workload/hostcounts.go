package workload

import "fmt"

// HostCountWeight is one bucket of a job-size histogram.
type HostCountWeight struct {
	HostCount int     `yaml:"host_count"`
	Weight    float64 `yaml:"weight"`
}

// HostCountTraces are job-size histograms observed on production GPU
// clusters. Trace 0 is the default; later traces shift toward larger jobs.
var HostCountTraces = [][]HostCountWeight{
	{{1, 10910}, {2, 9719}, {4, 16374}, {8, 23311}, {16, 23936}, {32, 13268}, {48, 2089}, {64, 329}, {128, 61}},
	{{1, 26464}, {2, 19460}, {4, 24834}, {8, 20690}, {16, 7818}, {32, 725}, {48, 5}},
	{{1, 44237}, {2, 14757}, {4, 18831}, {8, 15689}, {16, 5929}, {32, 550}, {48, 4}},
	{{1, 41606}, {2, 15453}, {4, 19720}, {8, 16430}, {16, 6208}, {32, 576}, {48, 4}},
	{{1, 36941}, {2, 16688}, {4, 21295}, {8, 17742}, {16, 6704}, {32, 622}, {48, 4}},
	{{1, 26464}, {2, 19460}, {4, 24834}, {8, 20690}, {16, 7818}, {32, 725}, {48, 5}},
	{{2, 36941}, {4, 28960}, {8, 24127}, {16, 9117}, {32, 846}, {48, 6}},
	{{2, 26464}, {4, 33771}, {8, 28136}, {16, 10632}, {32, 986}, {48, 7}},
	{{4, 26464}, {8, 52033}, {16, 19663}, {32, 1824}, {48, 13}},
	{{8, 26464}, {16, 67247}, {32, 6241}, {48, 45}},
}

// DefaultStepCounts are the step counts a generated job draws from uniformly.
var DefaultStepCounts = []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// HostCountTrace returns a copy of the built-in histogram with the given index.
func HostCountTrace(index int) ([]HostCountWeight, error) {
	if index < 0 || index >= len(HostCountTraces) {
		return nil, fmt.Errorf("host count trace %d out of range [0,%d)", index, len(HostCountTraces))
	}
	return append([]HostCountWeight(nil), HostCountTraces[index]...), nil
}

// fitHostCounts drops buckets larger than maxHostCount (0 = no limit) and
// reports an error if nothing with positive weight is left.
func fitHostCounts(buckets []HostCountWeight, maxHostCount int) ([]HostCountWeight, error) {
	var out []HostCountWeight
	total := 0.0
	for _, b := range buckets {
		if b.HostCount < 1 {
			return nil, fmt.Errorf("host count must be >= 1, got %d", b.HostCount)
		}
		if b.Weight < 0 {
			return nil, fmt.Errorf("host count %d has negative weight %g", b.HostCount, b.Weight)
		}
		if maxHostCount > 0 && b.HostCount > maxHostCount {
			continue
		}
		out = append(out, b)
		total += b.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("no host count with positive weight fits %d hosts", maxHostCount)
	}
	return out, nil
}
