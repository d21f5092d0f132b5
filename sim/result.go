// Aggregates the per-run metrics returned by Controller.Run.

package sim

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// JobRecord is the accounting of one job, finished or cut off by the horizon.
type JobRecord struct {
	ID                   int     `json:"id"`
	HostCount            int     `json:"host_count"`
	Finished             bool    `json:"finished"`
	CompletedSteps       int     `json:"completed_steps"`
	StartTime            float64 `json:"start_time"`
	FinishTime           float64 `json:"finish_time"` // end of the last completed group if unfinished
	DurationWithSharp    float64 `json:"duration_with_sharp"`
	DurationWithoutSharp float64 `json:"duration_without_sharp"`
	TreeMigrations       int     `json:"tree_migrations"`
	Consensus            int     `json:"consensus"`
}

// JCT is the job's completion time (or partial time for unfinished jobs).
func (r JobRecord) JCT() float64 { return r.FinishTime - r.StartTime }

// FragmentSample is the host fragmentation right after an admission round.
type FragmentSample struct {
	AdmittedJobs       int `json:"admitted_jobs"`
	TakenFragments     int `json:"taken_fragments"`
	AvailableFragments int `json:"available_fragments"`
}

// Result aggregates statistics about one simulation run.
type Result struct {
	FinishedJobCount   int     `json:"finished_job_count"`
	SimulatedTime      float64 `json:"simulated_time"`
	ClusterUtilization float64 `json:"cluster_utilization"`
	JCTScore           float64 `json:"jct_score"` // 0 when SHARP cannot change best-case time
	SharpRatio         float64 `json:"sharp_ratio"`
	SharpUtilization   float64 `json:"sharp_utilization"` // only with a node quota

	TotalHostTime        float64 `json:"total_host_time"`
	TotalJCT             float64 `json:"total_jct"`
	TotalJCTWithSharp    float64 `json:"total_jct_with_sharp"`
	TotalJCTWithoutSharp float64 `json:"total_jct_without_sharp"`
	TotalSharpTime       float64 `json:"total_sharp_time"`
	TotalSharpUsage      float64 `json:"total_sharp_usage"`

	TreeMigrationCount   int     `json:"tree_migration_count"`
	SharpEnabledJobCount int     `json:"sharp_enabled_job_count"`
	ConsensusFrequency   float64 `json:"consensus_frequency"`

	// Wall-clock cost of the injected policies.
	HostAllocationTime time.Duration `json:"host_allocation_time_ns"`
	TreeBuildingTime   time.Duration `json:"tree_building_time_ns"`
	SharingPolicyTime  time.Duration `json:"sharing_policy_time_ns"`
	SharingPolicyCalls int           `json:"sharing_policy_calls"`

	Jobs          []JobRecord      `json:"jobs"`
	HostFragments []FragmentSample `json:"host_fragments,omitempty"`
	TreeConflicts []bool           `json:"tree_conflicts,omitempty"` // per admitted job: no tree assigned
}

// Print writes a human-readable summary of the run.
func (r *Result) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Result ===")
	fmt.Fprintf(w, "Finished Jobs        : %d / %d\n", r.FinishedJobCount, len(r.Jobs))
	fmt.Fprintf(w, "Simulated Time       : %.6f s\n", r.SimulatedTime)
	fmt.Fprintf(w, "Cluster Utilization  : %.4f\n", r.ClusterUtilization)
	fmt.Fprintf(w, "JCT Score            : %.4f\n", r.JCTScore)
	fmt.Fprintf(w, "SHARP Ratio          : %.4f\n", r.SharpRatio)
	fmt.Fprintf(w, "SHARP Utilization    : %.4f\n", r.SharpUtilization)
	if q := r.JCTQuantiles(0.5, 0.9, 0.99); q != nil {
		fmt.Fprintf(w, "JCT p50/p90/p99      : %.6f / %.6f / %.6f s\n", q[0], q[1], q[2])
	}
	fmt.Fprintf(w, "Tree Migrations      : %d\n", r.TreeMigrationCount)
	fmt.Fprintf(w, "Consensus Frequency  : %.4f /s\n", r.ConsensusFrequency)
	fmt.Fprintf(w, "Policy Time (hosts/trees/sharing): %v / %v / %v\n",
		r.HostAllocationTime, r.TreeBuildingTime, r.SharingPolicyTime)
}

// JCTQuantiles returns the empirical quantiles of the finished jobs' JCTs,
// one per p in [0,1]. Returns nil when no job finished.
func (r *Result) JCTQuantiles(ps ...float64) []float64 {
	jcts := make([]float64, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		if j.Finished {
			jcts = append(jcts, j.JCT())
		}
	}
	if len(jcts) == 0 {
		return nil
	}
	slices.Sort(jcts)
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = stat.Quantile(p, stat.Empirical, jcts, nil)
	}
	return out
}
