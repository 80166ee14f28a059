// Package testutil provides shared test infrastructure for the batch runner.
// It consolidates trip-log fixtures, scenario trees, and a fake engine used across
// batch/, batch/sumo/ and cmd/ tests.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TripInfoXML renders a well-formed trip-log with one tripinfo per duration.
func TripInfoXML(durations ...float64) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<tripinfos>\n")
	for i, d := range durations {
		fmt.Fprintf(&b, "    <tripinfo id=\"veh%d\" depart=\"%d.00\" duration=\"%.2f\" routeLength=\"512.30\"/>\n", i, i, d)
	}
	b.WriteString("</tripinfos>\n")
	return b.String()
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// WriteTripInfo writes a well-formed trip-log to path.
func WriteTripInfo(t *testing.T, path string, durations ...float64) string {
	t.Helper()
	return WriteFile(t, path, TripInfoXML(durations...))
}

// WriteScenarioTree creates an empty scenario configuration for each relative path under
// root and returns the absolute paths in argument order.
func WriteScenarioTree(t *testing.T, root string, rel ...string) []string {
	t.Helper()
	abs, err := filepath.Abs(root)
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", root, err)
	}
	paths := make([]string, 0, len(rel))
	for _, r := range rel {
		paths = append(paths, WriteFile(t, filepath.Join(abs, r), "<configuration/>\n"))
	}
	return paths
}

// fakeEngine mimics the engine's command line: it writes a three-trip log
// (10, 20, 30 seconds) to --tripinfo-output. A config path containing "crash" exits
// non-zero, one containing "garbage" writes an unparseable log.
const fakeEngine = `#!/bin/sh
cfg=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -c) cfg="$2"; shift 2 ;;
    --tripinfo-output) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
case "$cfg" in
  *crash*) echo "fake engine: cannot load $cfg" >&2; exit 3 ;;
  *garbage*) printf '<tripinfos><tripinfo duration="1"' > "$out"; exit 0 ;;
esac
cat > "$out" <<EOF
<tripinfos>
    <tripinfo id="veh0" duration="10.00"/>
    <tripinfo id="veh1" duration="20.00"/>
    <tripinfo id="veh2" duration="30.00"/>
</tripinfos>
EOF
`

// WriteFakeEngine installs the fake engine script in dir and returns its path.
// Skips the test on Windows.
func WriteFakeEngine(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine requires /bin/sh")
	}
	path := filepath.Join(dir, "fake-sumo")
	if err := os.WriteFile(path, []byte(fakeEngine), 0o755); err != nil {
		t.Fatalf("Failed to write fake engine: %v", err)
	}
	return path
}

// ReadLines returns the non-empty lines of the file at path.
func ReadLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
