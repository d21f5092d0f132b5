// Package sim provides the core discrete-event simulation engine for
// collective-communication jobs sharing a SHARP-enabled fat-tree.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - job.go: Job lifecycle (not started → running comm ops → finished) and its event cursor
//   - sharing_group.go: jobs whose aggregation trees conflict, arbitrated one event at a time
//   - controller.go: admission, grouping and the global event loop
//
// # Architecture
//
// The sim package defines the kernel types and the policy interfaces;
// implementations live in sub-packages:
//   - sim/topology/: fat-tree construction, ID encoding, aggregation trees
//   - sim/resource/: the SHARP resource ledger (usage vs. quotas, host occupancy)
//   - sim/policy/: host allocation, tree building and sharing policies
//   - sim/graph/: conflict graph and independent-set oracles
//   - sim/workload/: model profiles and the random job generator
//   - sim/scenario/: YAML scenarios assembled into a ready Controller
//   - sim/experiment/: concurrent batches of runs and cross-run summaries
//   - sim/trace/: span recording
//
// # Key Interfaces
//
// The extension points are single-method interfaces:
//   - JobSource: supplies jobs in admission order
//   - HostAllocationPolicy: picks hosts for a job
//   - TreeBuildingPolicy: assigns aggregation trees to admitted or running jobs
//   - SharingPolicy: decides, before each transmission, whether to wait or transmit and with SHARP or not
//   - DurationModel: prices a transmission
package sim
