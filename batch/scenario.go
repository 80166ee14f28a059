package batch

import (
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
)

// DefaultSuffix is the scenario configuration file suffix.
const DefaultSuffix = ".sumocfg"

// Unit is one scenario to run and measure.
type Unit struct {
	ID           string // configuration file name without the suffix
	ConfigPath   string // absolute path of the configuration file
	ArtifactPath string // <root>/tripinfo_<ID>.xml
}

// NewUnit derives a Unit from a configuration path found under root.
func NewUnit(root, configPath, suffix string) Unit {
	id := strings.TrimSuffix(filepath.Base(configPath), suffix)
	return Unit{
		ID:           id,
		ConfigPath:   configPath,
		ArtifactPath: ArtifactPath(root, id),
	}
}

// ArtifactPath returns the trip-log path for a unit ID.
func ArtifactPath(root, id string) string {
	return filepath.Join(root, "tripinfo_"+id+".xml")
}

// Discover walks root and yields the absolute path of every non-directory entry whose name
// ends with suffix, in filepath.WalkDir order. Unreadable directories are skipped.
// Each range over the sequence performs a fresh walk.
func Discover(root, suffix string) iter.Seq[string] {
	return func(yield func(string) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return
		}
		_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// unreadable entry; WalkDir does not descend, keep going with siblings
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(d.Name(), suffix) {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Units maps Discover's paths to Units. Artifacts are derived under the absolute root.
func Units(root, suffix string) iter.Seq[Unit] {
	return func(yield func(Unit) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return
		}
		for path := range Discover(abs, suffix) {
			if !yield(NewUnit(abs, path, suffix)) {
				return
			}
		}
	}
}
