// Package sumo runs SUMO as an external process behind the batch.Service boundary and
// runs user control programs as batch.Hook implementations.
package sumo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simbatch/batch"
)

const stderrTailBytes = 4096

// Service starts one engine process per run.
type Service struct {
	Binary string    // resolved executable path
	Args   []string  // extra engine arguments, appended last
	Env    []string  // process environment; nil inherits ours
	Ports  *PortPool // when set, each engine listens for a controller on its own port
}

// Argv is the engine command line for one run. port <= 0 omits the control port.
func (s *Service) Argv(configPath, artifactPath string, port int) []string {
	argv := []string{s.Binary, "-c", configPath, "--tripinfo-output", artifactPath}
	if port > 0 {
		argv = append(argv, "--remote-port", strconv.Itoa(port))
	}
	return append(argv, s.Args...)
}

// Start launches the engine. The process is killed if ctx is cancelled.
func (s *Service) Start(ctx context.Context, configPath, artifactPath string) (batch.Session, error) {
	port := 0
	if s.Ports != nil {
		var err error
		if port, err = s.Ports.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	argv := s.Argv(configPath, artifactPath, port)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = s.Env
	stdout := logrus.StandardLogger().WriterLevel(logrus.TraceLevel)
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logrus.Debugf("starting engine: %v", argv)
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		if port > 0 {
			s.Ports.Release(port)
		}
		return nil, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	return &session{
		cmd:    cmd,
		port:   port,
		pool:   s.Ports,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

type session struct {
	cmd    *exec.Cmd
	port   int
	pool   *PortPool
	stdout io.Closer
	stderr *tailBuffer

	once    sync.Once
	waitErr error
}

func (s *session) ControlAddr() string {
	if s.port <= 0 {
		return ""
	}
	return controlAddr(s.port)
}

// Wait reaps the process once and returns the port to the pool.
func (s *session) Wait() error {
	s.once.Do(func() {
		err := s.cmd.Wait()
		_ = s.stdout.Close()
		if s.port > 0 {
			s.pool.Release(s.port)
		}
		if err != nil {
			if tail := s.stderr.String(); tail != "" {
				err = fmt.Errorf("%w: %s", err, tail)
			}
			s.waitErr = err
		}
	})
	return s.waitErr
}

func (s *session) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
