package batch

import (
	"context"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simbatch/batch/trace"
)

// Config threads the run parameters into a Pipeline.
type Config struct {
	Root      string // scanned for scenarios; trip-logs are written here
	Suffix    string // scenario configuration suffix, DefaultSuffix when empty
	BatchSize int
	Workers   int // <= 0 means runtime.NumCPU()
}

// Pipeline wires discovery, scheduling, and the result sink together.
type Pipeline struct {
	Config Config
	Runner Runner
	Sink   Sink
}

// Run processes every scenario under Config.Root and appends one row per successful unit
// to Sink. The sink must already be initialized; calling Run twice appends twice.
// The returned trace is complete for the batches that ran, even when err != nil.
func (p *Pipeline) Run(ctx context.Context) (*trace.RunTrace, error) {
	if p.Config.BatchSize < 1 {
		return nil, fmt.Errorf("batch size %d: must be positive", p.Config.BatchSize)
	}
	suffix := p.Config.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}

	sched := NewScheduler(p.Runner, p.Config.BatchSize, p.Config.Workers)
	logrus.Infof("Scanning %s for *%s (batch size %d, workers %d)",
		p.Config.Root, suffix, p.Config.BatchSize, sched.workers())

	err := sched.Run(ctx, warnDuplicates(Units(p.Config.Root, suffix)), p.Sink)
	return sched.Trace, err
}

// warnDuplicates passes units through, warning when two share an ID and would therefore
// write the same trip-log artifact.
func warnDuplicates(units iter.Seq[Unit]) iter.Seq[Unit] {
	return func(yield func(Unit) bool) {
		seen := make(map[string]string)
		for u := range units {
			if prev, ok := seen[u.ID]; ok {
				logrus.Warnf("scenario %s shares ID %q with %s; both write %s",
					u.ConfigPath, u.ID, prev, u.ArtifactPath)
			} else {
				seen[u.ID] = u.ConfigPath
			}
			if !yield(u) {
				return
			}
		}
	}
}
