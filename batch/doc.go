// Package batch runs a tree of traffic-simulation scenarios in fixed-size batches and
// aggregates per-run trip metrics into one CSV table.
//
// # Reading Guide
//
// Start with these files to understand the pipeline:
//   - scenario.go: discovery of scenario units (lazy walk of the root tree)
//   - scheduler.go: batch partitioning and the per-batch worker pool
//   - tripinfo.go, metrics.go: trip-log parsing and the average-duration metric
//   - sink.go: the append-only CSV result table
//
// # Architecture
//
// The pipeline is Discover → Scheduler → (Runner → Extract) per unit → Sink, batch by
// batch. Only the coordinating goroutine touches the sink; workers own their artifact
// files. The simulation engine and the user control routine sit behind two small
// interfaces:
//   - Service / Session: start an engine instance for one configuration, wait, kill
//   - Hook: the control routine, invoked once per run while the session is live
//
// Concrete implementations live in sub-packages:
//   - batch/sumo/: SUMO process service, command hook, control-port pool
//   - batch/trace/: per-unit outcome records and run summary
package batch
