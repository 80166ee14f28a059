package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/simbatch/batch"
	"github.com/inference-sim/simbatch/batch/sumo"
	"github.com/inference-sim/simbatch/batch/trace"
)

// runCmd executes every discovered scenario and writes the result table
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every scenario under the root in batches and aggregate trip metrics",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}

		log := logrus.WithField("invocation", uuid.New().String())
		log.Infof("Root: %s, output: %s", cfg.Root, cfg.Output)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := runBatch(ctx, cfg)
		logSummary(log, trace.Summarize(rt))
		if err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		log.Infof("Results written to %s", cfg.Output)
	},
}

// runBatch wires the engine service, control hook, and result sink for cfg and runs
// the pipeline once. The output table is truncated to its header first.
func runBatch(ctx context.Context, cfg Config) (*trace.RunTrace, error) {
	extra, err := sumo.LoadEnvFile(cfg.Sumo.EnvFile)
	if err != nil {
		return nil, err
	}
	binary, err := sumo.ResolveBinary(cfg.Sumo.Binary, extra)
	if err != nil {
		return nil, err
	}
	env := sumo.Environ(extra)
	logrus.Debugf("Engine binary: %s", binary)

	svc := &sumo.Service{Binary: binary, Args: cfg.Sumo.Args, Env: env}
	var hook batch.Hook = batch.NopHook{}
	if len(cfg.Hook.Command) > 0 {
		workers := cfg.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		ports, err := sumo.NewPortPool(cfg.Hook.PortBase, workers)
		if err != nil {
			return nil, err
		}
		svc.Ports = ports
		h, err := sumo.NewCommandHook(cfg.Hook.Command, env, cfg.Root)
		if err != nil {
			return nil, err
		}
		hook = h
	}

	sink := batch.NewCSVSink(cfg.Output)
	if err := sink.Init(); err != nil {
		return nil, fmt.Errorf("initializing result table: %w", err)
	}

	executor := batch.NewExecutor(svc, hook, cfg.UnitTimeout)
	executor.Grace = cfg.Hook.Grace

	p := &batch.Pipeline{
		Config: batch.Config{
			Root:      cfg.Root,
			Suffix:    cfg.Suffix,
			BatchSize: cfg.BatchSize,
			Workers:   cfg.Workers,
		},
		Runner: executor,
		Sink:   sink,
	}
	return p.Run(ctx)
}

func logSummary(log *logrus.Entry, s *trace.Summary) {
	log.Infof("=== Run Summary ===")
	log.Infof("Batches: %d, scheduled: %d, succeeded: %d, failed: %d",
		s.Batches, s.Scheduled, s.Succeeded, s.Failed)
	for stage, n := range s.FailuresByStage {
		log.Infof("  failed at %s: %d", stage, n)
	}
	if s.Scheduled > 0 {
		log.Infof("Unit wall time: mean %v, max %v", s.MeanElapsed, s.MaxElapsed)
	}
}

func init() {
	addRunFlags(runCmd.Flags())
}
