package sumo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads KEY=VALUE pairs from a dotenv file. A missing file is not an error.
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}
	return env, nil
}

// MergeEnv overlays extra onto base (KEY=VALUE form). Keys in extra replace those in base;
// new keys are appended in sorted order.
func MergeEnv(base []string, extra map[string]string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := extra[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// Environ is MergeEnv over the current process environment.
func Environ(extra map[string]string) []string {
	return MergeEnv(os.Environ(), extra)
}
