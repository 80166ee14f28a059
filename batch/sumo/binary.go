package sumo

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultBinary is the command-line engine.
const DefaultBinary = "sumo"

// ResolveBinary locates the engine executable. A name with a path separator is used as
// given. Otherwise $SUMO_HOME/bin/<name> wins when it exists (env is consulted before the
// process environment), falling back to a PATH lookup.
func ResolveBinary(name string, env map[string]string) (string, error) {
	if name == "" {
		name = DefaultBinary
	}
	if strings.ContainsAny(name, `/\`) {
		return name, nil
	}

	home := env["SUMO_HOME"]
	if home == "" {
		home = os.Getenv("SUMO_HOME")
	}
	if home != "" {
		candidate := filepath.Join(home, "bin", name)
		if runtime.GOOS == "windows" && filepath.Ext(candidate) == "" {
			candidate += ".exe"
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("resolving engine binary %q: %w", name, err)
	}
	return path, nil
}
