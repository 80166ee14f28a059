package batch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service starts engine instances. Implementations must be safe for concurrent use.
type Service interface {
	// Start launches one engine bound to configPath that writes its trip-log to artifactPath.
	Start(ctx context.Context, configPath, artifactPath string) (Session, error)
}

// Session is one live engine instance.
type Session interface {
	// ControlAddr is the address a control routine connects to, or "" when the
	// engine was started without a control channel.
	ControlAddr() string
	// Wait blocks until the engine exits and reports a failed exit as an error.
	Wait() error
	// Kill terminates the engine. Wait must still be called.
	Kill() error
}

// HookRun describes the live run a Hook is invoked for.
type HookRun struct {
	Unit        Unit
	ControlAddr string
}

// Hook is the user-supplied control routine. Run is called exactly once per unit,
// after the engine has started and before it is waited on.
type Hook interface {
	Run(ctx context.Context, run HookRun) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, run HookRun) error

// Run calls f.
func (f HookFunc) Run(ctx context.Context, run HookRun) error { return f(ctx, run) }

// NopHook lets the engine run to completion uncontrolled.
type NopHook struct{}

// Run does nothing.
func (NopHook) Run(context.Context, HookRun) error { return nil }

// Runner executes one unit and returns the path of its trip-log artifact.
type Runner interface {
	Run(ctx context.Context, u Unit) (string, error)
}

// ErrEngineOutlivedHook is returned when a controlled engine is still running Grace after
// its hook returned, typically because the control program never connected.
var ErrEngineOutlivedHook = errors.New("engine still running after control hook returned")

// Executor is the Runner that drives a Service and a Hook.
type Executor struct {
	Service Service
	Hook    Hook
	Timeout time.Duration // per-unit bound; 0 disables
	// Grace bounds how long a controlled engine (one with a control address) may keep
	// running once the hook has returned successfully; it is then killed. 0 disables.
	Grace time.Duration
}

// NewExecutor creates an Executor. A nil hook means NopHook.
func NewExecutor(service Service, hook Hook, timeout time.Duration) *Executor {
	if hook == nil {
		hook = NopHook{}
	}
	return &Executor{Service: service, Hook: hook, Timeout: timeout}
}

// Run starts the engine for u, invokes the hook once, and waits for the engine to exit.
// If the hook fails the engine is killed. The artifact path is returned even on error so
// callers can name it in diagnostics.
func (e *Executor) Run(ctx context.Context, u Unit) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	sess, err := e.Service.Start(ctx, u.ConfigPath, u.ArtifactPath)
	if err != nil {
		return u.ArtifactPath, fmt.Errorf("starting engine for %s: %w", u.ID, err)
	}

	hookErr := e.Hook.Run(ctx, HookRun{Unit: u, ControlAddr: sess.ControlAddr()})
	if hookErr != nil {
		hookErr = fmt.Errorf("control hook for %s: %w", u.ID, hookErr)
		if killErr := sess.Kill(); killErr != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("killing engine: %w", killErr))
		}
	}

	waitErr := e.wait(sess, hookErr == nil && sess.ControlAddr() != "")
	if waitErr != nil {
		waitErr = fmt.Errorf("engine for %s: %w", u.ID, waitErr)
	}
	if hookErr != nil {
		// the engine was killed on purpose; its exit status adds nothing
		return u.ArtifactPath, hookErr
	}
	return u.ArtifactPath, waitErr
}

// wait reaps the session, killing it if bounded and it outlives Grace.
func (e *Executor) wait(sess Session, bounded bool) error {
	if !bounded || e.Grace <= 0 {
		return sess.Wait()
	}
	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	timer := time.NewTimer(e.Grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
	}
	if err := sess.Kill(); err != nil {
		<-done
		return errors.Join(fmt.Errorf("%w (%v)", ErrEngineOutlivedHook, e.Grace), fmt.Errorf("killing engine: %w", err))
	}
	<-done
	return fmt.Errorf("%w (%v)", ErrEngineOutlivedHook, e.Grace)
}
