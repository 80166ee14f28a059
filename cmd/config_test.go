package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simbatch/internal/testutil"
)

// runFlags returns a parsed run flag set, as cobra would hand it to the command.
func runFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	addRunFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, ".sumocfg", cfg.Suffix)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, "sumo", cfg.Sumo.Binary)
	assert.Equal(t, 8813, cfg.Hook.PortBase)
	assert.Equal(t, 30*time.Second, cfg.Hook.Grace)

	// output is root-relative, so defaults only validate once resolved
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.Root = t.TempDir()
	require.NoError(t, cfg.Resolve())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_NestedSections(t *testing.T) {
	// GIVEN a file overriding some top-level and nested keys
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "simbatch.yaml"), `
root: /data/scenarios
batch_size: 8
unit_timeout: 90s
sumo:
  binary: sumo-gui
  args: ["--no-step-log", "true"]
hook:
  command: [python3, dynamic_control.py]
  port_base: 9000
  grace: 5s
`)
	cfg := DefaultConfig()

	// WHEN loaded over the defaults
	require.NoError(t, LoadConfig(path, &cfg))

	// THEN file values win and untouched defaults survive
	assert.Equal(t, "/data/scenarios", cfg.Root)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.UnitTimeout)
	assert.Equal(t, "sumo-gui", cfg.Sumo.Binary)
	assert.Equal(t, []string{"--no-step-log", "true"}, cfg.Sumo.Args)
	assert.Equal(t, []string{"python3", "dynamic_control.py"}, cfg.Hook.Command)
	assert.Equal(t, 9000, cfg.Hook.PortBase)
	assert.Equal(t, 5*time.Second, cfg.Hook.Grace)
	assert.Equal(t, ".sumocfg", cfg.Suffix)
}

func TestLoadConfig_UnknownFieldRejected(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "simbatch.yaml"), "batchsize: 3\n")
	cfg := DefaultConfig()

	err := LoadConfig(path, &cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batchsize")
}

func TestLoadConfig_EmptyFileKeepsDefaults(t *testing.T) {
	path := testutil.WriteFile(t, filepath.Join(t.TempDir(), "simbatch.yaml"), "")
	cfg := DefaultConfig()

	require.NoError(t, LoadConfig(path, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Output = "/tmp/output.csv"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, false},
		{"negative workers", func(c *Config) { c.Workers = -1 }, false},
		{"empty suffix", func(c *Config) { c.Suffix = "" }, false},
		{"empty output", func(c *Config) { c.Output = "" }, false},
		{"negative unit timeout", func(c *Config) { c.UnitTimeout = -time.Second }, false},
		{"hook with bad port base", func(c *Config) { c.Hook.Command = []string{"ctl"}; c.Hook.PortBase = 0 }, false},
		{"negative hook grace", func(c *Config) { c.Hook.Grace = -time.Second }, false},
		{"bad port base without hook", func(c *Config) { c.Hook.PortBase = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestConfig_ResolveFillsRootRelativeDefaults(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Root = root

	require.NoError(t, cfg.Resolve())

	assert.Equal(t, filepath.Join(root, "output.csv"), cfg.Output)
	assert.Equal(t, filepath.Join(root, ".env"), cfg.Sumo.EnvFile)
}

func TestLoadConfigFromFlags_Precedence(t *testing.T) {
	// GIVEN a file, an env override, and an explicit flag for overlapping keys
	dir := t.TempDir()
	path := testutil.WriteFile(t, filepath.Join(dir, "simbatch.yaml"),
		"root: "+dir+"\nbatch_size: 2\nworkers: 2\nsuffix: .cfg\n")
	t.Setenv("SIMBATCH_BATCH_SIZE", "4")
	t.Setenv("SIMBATCH_WORKERS", "6")

	// WHEN the effective configuration is built
	cfg, err := loadConfig(runFlags(t, "--config", path, "--workers", "3"))

	// THEN flag beats env beats file beats defaults
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, ".cfg", cfg.Suffix)
	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "sumo", cfg.Sumo.Binary)
	assert.Equal(t, filepath.Join(dir, "output.csv"), cfg.Output)
}

func TestLoadConfigFromFlags_InvalidRejected(t *testing.T) {
	_, err := loadConfig(runFlags(t, "--root", t.TempDir(), "--batch-size", "-1"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigFromFlags_SliceFlags(t *testing.T) {
	cfg, err := loadConfig(runFlags(t, "--root", t.TempDir(),
		"--hook", "python3,dynamic_control.py", "--sumo-args", "--no-step-log,true"))
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "dynamic_control.py"}, cfg.Hook.Command)
	assert.Equal(t, []string{"--no-step-log", "true"}, cfg.Sumo.Args)
}

func TestLoadConfigFromFlags_HookGrace(t *testing.T) {
	cfg, err := loadConfig(runFlags(t, "--root", t.TempDir(), "--hook-grace", "2s"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Hook.Grace)
}
