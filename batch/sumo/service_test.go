package sumo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simbatch/batch"
	"github.com/inference-sim/simbatch/internal/testutil"
)

func TestService_Argv(t *testing.T) {
	s := &Service{Binary: "/opt/sumo/bin/sumo", Args: []string{"--no-step-log", "true"}}

	assert.Equal(t,
		[]string{"/opt/sumo/bin/sumo", "-c", "/d/a.sumocfg", "--tripinfo-output", "/d/tripinfo_a.xml", "--no-step-log", "true"},
		s.Argv("/d/a.sumocfg", "/d/tripinfo_a.xml", 0))
	assert.Equal(t,
		[]string{"/opt/sumo/bin/sumo", "-c", "/d/a.sumocfg", "--tripinfo-output", "/d/tripinfo_a.xml", "--remote-port", "8813", "--no-step-log", "true"},
		s.Argv("/d/a.sumocfg", "/d/tripinfo_a.xml", 8813))
}

func TestService_Start_WritesArtifact(t *testing.T) {
	// GIVEN the fake engine
	dir := t.TempDir()
	s := &Service{Binary: testutil.WriteFakeEngine(t, dir)}
	artifact := filepath.Join(dir, "tripinfo_s1.xml")

	// WHEN a run is started and waited on
	sess, err := s.Start(context.Background(), filepath.Join(dir, "s1.sumocfg"), artifact)
	require.NoError(t, err)
	require.NoError(t, sess.Wait())

	// THEN the trip-log is readable by the extractor
	m, err := batch.Extract("s1", artifact)
	require.NoError(t, err)
	assert.Equal(t, 3, m.VehicleCount)
	assert.Equal(t, 20.0, m.AverageDuration)
	assert.Empty(t, sess.ControlAddr())
}

func TestService_Start_FailedExitCarriesStderr(t *testing.T) {
	dir := t.TempDir()
	s := &Service{Binary: testutil.WriteFakeEngine(t, dir)}

	sess, err := s.Start(context.Background(), filepath.Join(dir, "crash.sumocfg"), filepath.Join(dir, "tripinfo_crash.xml"))
	require.NoError(t, err)
	err = sess.Wait()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Contains(t, err.Error(), "cannot load")
	// Wait is idempotent
	assert.Equal(t, err, sess.Wait())
}

func TestService_Start_MissingBinary(t *testing.T) {
	s := &Service{Binary: filepath.Join(t.TempDir(), "no-such-sumo")}

	_, err := s.Start(context.Background(), "a.sumocfg", "tripinfo_a.xml")

	assert.Error(t, err)
}

func TestService_Start_PortsExclusiveAndReleased(t *testing.T) {
	// GIVEN a pool with a single port
	dir := t.TempDir()
	pool, err := NewPortPool(9100, 1)
	require.NoError(t, err)
	s := &Service{Binary: testutil.WriteFakeEngine(t, dir), Ports: pool}

	// WHEN one run holds the port
	sess, err := s.Start(context.Background(), filepath.Join(dir, "a.sumocfg"), filepath.Join(dir, "tripinfo_a.xml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", sess.ControlAddr())

	// THEN a second start cannot get a port until the first is reaped
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Start(ctx, filepath.Join(dir, "b.sumocfg"), filepath.Join(dir, "tripinfo_b.xml"))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, sess.Wait())
	assert.Equal(t, 1, pool.Free())
}

func TestService_Start_PortReleasedOnStartFailure(t *testing.T) {
	pool, err := NewPortPool(9200, 1)
	require.NoError(t, err)
	s := &Service{Binary: filepath.Join(t.TempDir(), "no-such-sumo"), Ports: pool}

	_, err = s.Start(context.Background(), "a.sumocfg", "tripinfo_a.xml")

	require.Error(t, err)
	assert.Equal(t, 1, pool.Free())
}

func TestExecutorWithService_EndToEnd(t *testing.T) {
	// GIVEN an executor over the fake engine with a hook that sees the live run
	dir := t.TempDir()
	s := &Service{Binary: testutil.WriteFakeEngine(t, dir)}
	var seen []string
	hook := batch.HookFunc(func(_ context.Context, run batch.HookRun) error {
		seen = append(seen, run.Unit.ID)
		return nil
	})
	e := batch.NewExecutor(s, hook, time.Minute)
	u := batch.NewUnit(dir, filepath.Join(dir, "s9.sumocfg"), batch.DefaultSuffix)

	// WHEN the unit runs
	path, err := e.Run(context.Background(), u)

	// THEN the derived artifact exists and the hook ran once
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tripinfo_s9.xml"), path)
	assert.Equal(t, []string{"s9"}, seen)
	_, err = batch.ParseTripInfo(path)
	assert.NoError(t, err)
}
