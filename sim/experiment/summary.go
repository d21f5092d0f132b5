package experiment

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

// Stat is the mean and sample standard deviation of one metric across runs.
// Std is 0 for a single run.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func newStat(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	if len(xs) == 1 {
		return Stat{Mean: xs[0]}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	return Stat{Mean: mean, Std: std}
}

// Summary aggregates the successful runs that share a scenario name.
type Summary struct {
	Name               string `json:"name"`
	Runs               int    `json:"runs"`
	Failed             int    `json:"failed"`
	JCTScore           Stat   `json:"jct_score"`
	SharpRatio         Stat   `json:"sharp_ratio"`
	ClusterUtilization Stat   `json:"cluster_utilization"`
	SharpUtilization   Stat   `json:"sharp_utilization"`
	SimulatedTime      Stat   `json:"simulated_time"`
	TreeMigrations     Stat   `json:"tree_migrations"`
	ConsensusFrequency Stat   `json:"consensus_frequency"`
}

// Summarize groups outcomes by name, in order of first appearance.
func Summarize(outcomes []Outcome) []Summary {
	type series struct {
		summary                                          Summary
		jct, sharp, util, sharpUtil, simTime, migr, cons []float64
	}
	var order []string
	groups := make(map[string]*series)
	for _, o := range outcomes {
		g, ok := groups[o.Name]
		if !ok {
			g = &series{summary: Summary{Name: o.Name}}
			groups[o.Name] = g
			order = append(order, o.Name)
		}
		if o.Err != nil || o.Result == nil {
			g.summary.Failed++
			continue
		}
		r := o.Result
		g.summary.Runs++
		g.jct = append(g.jct, r.JCTScore)
		g.sharp = append(g.sharp, r.SharpRatio)
		g.util = append(g.util, r.ClusterUtilization)
		g.sharpUtil = append(g.sharpUtil, r.SharpUtilization)
		g.simTime = append(g.simTime, r.SimulatedTime)
		g.migr = append(g.migr, float64(r.TreeMigrationCount))
		g.cons = append(g.cons, r.ConsensusFrequency)
	}

	summaries := make([]Summary, 0, len(order))
	for _, name := range order {
		g := groups[name]
		s := g.summary
		s.JCTScore = newStat(g.jct)
		s.SharpRatio = newStat(g.sharp)
		s.ClusterUtilization = newStat(g.util)
		s.SharpUtilization = newStat(g.sharpUtil)
		s.SimulatedTime = newStat(g.simTime)
		s.TreeMigrations = newStat(g.migr)
		s.ConsensusFrequency = newStat(g.cons)
		summaries = append(summaries, s)
	}
	return summaries
}

// PrintSummaries writes one block per summary.
func PrintSummaries(w io.Writer, summaries []Summary) {
	fmt.Fprintln(w, "=== Sweep Summary ===")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s (%d runs, %d failed)\n", s.Name, s.Runs, s.Failed)
		fmt.Fprintf(w, "  JCT Score           : %.4f ± %.4f\n", s.JCTScore.Mean, s.JCTScore.Std)
		fmt.Fprintf(w, "  SHARP Ratio         : %.4f ± %.4f\n", s.SharpRatio.Mean, s.SharpRatio.Std)
		fmt.Fprintf(w, "  Cluster Utilization : %.4f ± %.4f\n", s.ClusterUtilization.Mean, s.ClusterUtilization.Std)
		fmt.Fprintf(w, "  SHARP Utilization   : %.4f ± %.4f\n", s.SharpUtilization.Mean, s.SharpUtilization.Std)
		fmt.Fprintf(w, "  Simulated Time      : %.6f ± %.6f s\n", s.SimulatedTime.Mean, s.SimulatedTime.Std)
		fmt.Fprintf(w, "  Tree Migrations     : %.2f ± %.2f\n", s.TreeMigrations.Mean, s.TreeMigrations.Std)
	}
}
