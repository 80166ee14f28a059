package batch

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inference-sim/simbatch/internal/testutil"
)

// fakeRunner writes trip-logs directly instead of starting an engine. Behaviour is chosen
// by unit ID prefix: "fail" returns an error, "panic" panics, "bad" writes a malformed log,
// "empty" writes a log with no trips; anything else writes trips of 10, 20 and 30 seconds.
type fakeRunner struct {
	t      *testing.T
	delay  map[string]time.Duration
	events *eventLog

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func newFakeRunner(t *testing.T) *fakeRunner {
	return &fakeRunner{t: t, delay: map[string]time.Duration{}}
}

func (r *fakeRunner) Run(ctx context.Context, u Unit) (string, error) {
	r.calls.Add(1)
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxActive.Load()
		if n <= m || r.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if r.events != nil {
		r.events.add("run:" + u.ID)
	}
	if d := r.delay[u.ID]; d > 0 {
		time.Sleep(d)
	}

	switch {
	case strings.HasPrefix(u.ID, "fail"):
		return u.ArtifactPath, errors.New("engine exited with status 1")
	case strings.HasPrefix(u.ID, "panic"):
		panic("control hook blew up")
	case strings.HasPrefix(u.ID, "bad"):
		testutil.WriteFile(r.t, u.ArtifactPath, "<tripinfos><tripinfo duration=")
	case strings.HasPrefix(u.ID, "empty"):
		testutil.WriteFile(r.t, u.ArtifactPath, "<tripinfos/>")
	default:
		testutil.WriteTripInfo(r.t, u.ArtifactPath, 10, 20, 30)
	}
	return u.ArtifactPath, nil
}

// memSink records appended batches.
type memSink struct {
	batches [][]MetricSample
	events  *eventLog
	err     error
}

func (s *memSink) Append(samples []MetricSample) error {
	if s.events != nil {
		s.events.add("append")
	}
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, samples)
	return nil
}

func (s *memSink) rows() []MetricSample {
	var out []MetricSample
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// unitsIn builds units with the given IDs whose artifacts live in dir.
func unitsIn(dir string, ids ...string) []Unit {
	units := make([]Unit, 0, len(ids))
	for _, id := range ids {
		units = append(units, Unit{
			ID:           id,
			ConfigPath:   dir + string(os.PathSeparator) + id + DefaultSuffix,
			ArtifactPath: ArtifactPath(dir, id),
		})
	}
	return units
}
