package sumo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simbatch/batch"
)

// Environment variables handed to a control program.
const (
	EnvUnit        = "SIMBATCH_UNIT"
	EnvConfig      = "SIMBATCH_UNIT_CONFIG"
	EnvArtifact    = "SIMBATCH_UNIT_ARTIFACT"
	EnvControlAddr = "SIMBATCH_CONTROL_ADDR"
	EnvControlPort = "SIMBATCH_CONTROL_PORT"
)

// CommandHook runs a user control program once per run. The program connects to the
// engine at $SIMBATCH_CONTROL_ADDR, drives it, and closes the connection when done.
// An engine started with a control port waits for that connection; a program that exits
// without connecting leaves it waiting until batch.Executor.Grace (or the unit timeout)
// kills it.
type CommandHook struct {
	Argv []string
	Env  []string // base environment; nil inherits ours
	Dir  string
}

// NewCommandHook creates a hook for argv.
func NewCommandHook(argv []string, env []string, dir string) (*CommandHook, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("missing hook command argv")
	}
	return &CommandHook{Argv: argv, Env: env, Dir: dir}, nil
}

// RunEnv is the environment the program sees for run.
func (h *CommandHook) RunEnv(run batch.HookRun) []string {
	extra := map[string]string{
		EnvUnit:     run.Unit.ID,
		EnvConfig:   run.Unit.ConfigPath,
		EnvArtifact: run.Unit.ArtifactPath,
	}
	if run.ControlAddr != "" {
		extra[EnvControlAddr] = run.ControlAddr
		if i := strings.LastIndex(run.ControlAddr, ":"); i >= 0 {
			extra[EnvControlPort] = run.ControlAddr[i+1:]
		}
	}
	base := h.Env
	if base == nil {
		return Environ(extra)
	}
	return MergeEnv(base, extra)
}

// Run executes the program and waits for it. Its output goes to the debug log.
func (h *CommandHook) Run(ctx context.Context, run batch.HookRun) error {
	cmd := exec.CommandContext(ctx, h.Argv[0], h.Argv[1:]...)
	cmd.Env = h.RunEnv(run)
	cmd.Dir = h.Dir

	log := logrus.WithField("unit", run.Unit.ID).WriterLevel(logrus.DebugLevel)
	defer func() { _ = log.Close() }()
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stdout = log
	cmd.Stderr = io.MultiWriter(log, stderr)

	if err := cmd.Run(); err != nil {
		if tail := stderr.String(); tail != "" {
			return fmt.Errorf("%s: %w: %s", h.Argv[0], err, tail)
		}
		return fmt.Errorf("%s: %w", h.Argv[0], err)
	}
	return nil
}
