package batch

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simbatch/batch/trace"
)

// Outcome is the result of one unit of work: a sample, or the stage that failed and why.
type Outcome struct {
	Unit    Unit
	Sample  MetricSample
	Stage   trace.Stage
	Err     error
	Elapsed time.Duration
}

// OK reports whether the unit produced a sample.
func (o Outcome) OK() bool { return o.Err == nil }

// Samples returns the samples of successful outcomes, in order.
func Samples(outcomes []Outcome) []MetricSample {
	samples := make([]MetricSample, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			samples = append(samples, o.Sample)
		}
	}
	return samples
}

// Chunk groups seq into consecutive slices of size elements; the last may be shorter.
// Panics if size < 1.
func Chunk[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size < 1 {
		panic("batch: chunk size must be positive")
	}
	return func(yield func([]T) bool) {
		chunk := make([]T, 0, size)
		for v := range seq {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]T, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}
}

// Partition splits items into ceil(len/size) batches.
func Partition[T any](items []T, size int) [][]T {
	return slices.Collect(slices.Chunk(items, size))
}

// Scheduler runs units batch by batch on a bounded worker pool.
type Scheduler struct {
	BatchSize int
	Workers   int // pool bound per batch; <= 0 means runtime.NumCPU()
	Runner    Runner
	Trace     *trace.RunTrace // optional
}

// NewScheduler creates a Scheduler recording into a fresh RunTrace.
func NewScheduler(runner Runner, batchSize, workers int) *Scheduler {
	return &Scheduler{
		BatchSize: batchSize,
		Workers:   workers,
		Runner:    runner,
		Trace:     trace.NewRunTrace(),
	}
}

func (s *Scheduler) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// Run drains units in batches of BatchSize. Each batch is fully resolved and its samples
// appended to sink before the next batch starts. Unit failures never stop the run; a sink
// error or a cancelled context does, leaving earlier batches persisted.
func (s *Scheduler) Run(ctx context.Context, units iter.Seq[Unit], sink Sink) error {
	index := 0
	for chunk := range Chunk(units, s.BatchSize) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stopped before batch %d: %w", index, err)
		}

		start := time.Now()
		outcomes := s.RunBatch(ctx, chunk)
		samples := Samples(outcomes)
		s.record(index, outcomes, time.Since(start))
		if err := sink.Append(samples); err != nil {
			return fmt.Errorf("appending batch %d: %w", index, err)
		}

		logrus.Infof("batch %d done: %d/%d units produced a sample", index, len(samples), len(chunk))
		index++
	}
	return nil
}

// RunBatch runs every unit of one batch on a fresh pool of min(Workers, len(units))
// goroutines and returns outcomes in submission order.
func (s *Scheduler) RunBatch(ctx context.Context, units []Unit) []Outcome {
	outcomes := make([]Outcome, len(units))
	if len(units) == 0 {
		return outcomes
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(s.workers(), len(units)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = s.runUnit(ctx, units[i])
			}
		}()
	}
	for i := range units {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (s *Scheduler) runUnit(ctx context.Context, u Unit) (out Outcome) {
	start := time.Now()
	out.Unit = u
	defer func() {
		if r := recover(); r != nil {
			out.Stage = trace.StageExecute
			out.Err = fmt.Errorf("panic running %s: %v", u.ID, r)
		}
		out.Elapsed = time.Since(start)
	}()

	path, err := s.Runner.Run(ctx, u)
	if err != nil {
		out.Stage = trace.StageExecute
		out.Err = err
		return out
	}

	sample, err := Extract(u.ID, path)
	if err != nil {
		out.Stage = trace.StageExtract
		out.Err = err
		return out
	}
	out.Sample = sample
	return out
}

func (s *Scheduler) record(index int, outcomes []Outcome, elapsed time.Duration) {
	succeeded := 0
	for pos, o := range outcomes {
		rec := trace.UnitRecord{
			UnitID:   o.Unit.ID,
			Batch:    index,
			Position: pos,
			OK:       o.OK(),
			Stage:    o.Stage,
			Elapsed:  o.Elapsed,
		}
		if o.OK() {
			succeeded++
			rec.AverageDuration = o.Sample.AverageDuration
			rec.VehicleCount = o.Sample.VehicleCount
			logrus.Debugf("unit %s: %d vehicles, average duration %.2f", o.Unit.ID, o.Sample.VehicleCount, o.Sample.AverageDuration)
		} else {
			rec.Reason = o.Err.Error()
			logrus.WithFields(logrus.Fields{
				"unit":     o.Unit.ID,
				"artifact": o.Unit.ArtifactPath,
				"stage":    o.Stage,
			}).Warnf("unit produced no sample: %v", o.Err)
		}
		if s.Trace != nil {
			s.Trace.RecordUnit(rec)
		}
	}
	if s.Trace != nil {
		s.Trace.RecordBatch(trace.BatchRecord{
			Index:     index,
			Size:      len(outcomes),
			Succeeded: succeeded,
			Elapsed:   elapsed,
		})
	}
}
