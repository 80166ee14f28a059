package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/simbatch/batch"
	"github.com/inference-sim/simbatch/batch/sumo"
)

// ErrInvalidConfig marks a configuration that cannot drive a run.
var ErrInvalidConfig = errors.New("invalid configuration")

// envPrefix namespaces environment overrides: --batch-size ↔ SIMBATCH_BATCH_SIZE.
const envPrefix = "SIMBATCH"

// Config represents the full batch configuration file.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Root        string        `yaml:"root"`
	Output      string        `yaml:"output"` // default <root>/output.csv
	Suffix      string        `yaml:"suffix"`
	BatchSize   int           `yaml:"batch_size"`
	Workers     int           `yaml:"workers"`      // 0 = one per CPU
	UnitTimeout time.Duration `yaml:"unit_timeout"` // 0 = unbounded
	Sumo        SumoConfig    `yaml:"sumo"`
	Hook        HookConfig    `yaml:"hook"`
}

// SumoConfig describes how the engine is launched.
type SumoConfig struct {
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args"`
	EnvFile string   `yaml:"env_file"` // default <root>/.env
}

// HookConfig describes the control program. An empty command runs engines uncontrolled.
type HookConfig struct {
	Command  []string      `yaml:"command"`
	PortBase int           `yaml:"port_base"`
	Grace    time.Duration `yaml:"grace"` // engine lifetime after the hook returns; 0 = unbounded
}

// DefaultConfig returns the configuration used when neither file, env, nor flags say otherwise.
func DefaultConfig() Config {
	return Config{
		Root:      ".",
		Suffix:    batch.DefaultSuffix,
		BatchSize: 5,
		Sumo:      SumoConfig{Binary: sumo.DefaultBinary},
		Hook:      HookConfig{PortBase: sumo.DefaultPortBase, Grace: 30 * time.Second},
	}
}

// LoadConfig overlays the YAML file at path onto cfg.
// Uses strict field checking: typos must cause errors.
func LoadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// addCommonFlags registers the flags shared by every command.
func addCommonFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML configuration file")
	fs.String("root", "", "Root directory scanned for scenarios (default \".\")")
	fs.String("suffix", "", "Scenario configuration suffix (default \""+batch.DefaultSuffix+"\")")
}

// addRunFlags registers the flags of the run command.
func addRunFlags(fs *pflag.FlagSet) {
	addCommonFlags(fs)
	fs.String("output", "", "Result table path (default <root>/output.csv)")
	fs.Int("batch-size", 0, "Scenarios per batch (default 5)")
	fs.Int("workers", 0, "Parallel runs per batch (default one per CPU)")
	fs.Duration("unit-timeout", 0, "Kill a run after this long (default unbounded)")
	fs.String("sumo-binary", "", "Engine executable or name (default \"sumo\", resolved via SUMO_HOME then PATH)")
	fs.StringSlice("sumo-args", nil, "Extra engine arguments")
	fs.String("env-file", "", "dotenv file for engine and hook (default <root>/.env)")
	fs.StringSlice("hook", nil, "Control program argv, e.g. python3,dynamic_control.py")
	fs.Int("port-base", 0, "First control port handed to engines when a hook is set (default 8813)")
	fs.Duration("hook-grace", 0, "Kill an engine still running this long after its hook returned (default 30s)")
}

// newViper binds flags and SIMBATCH_* environment variables.
func newViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// loadConfig builds the effective configuration: defaults, then the YAML file, then
// environment, then flags. The result is resolved and validated.
func loadConfig(fs *pflag.FlagSet) (Config, error) {
	v, err := newViper(fs)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if path := v.GetString("config"); path != "" {
		if err := LoadConfig(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyOverrides(v, &cfg)

	if err := cfg.Resolve(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyOverrides copies every key set through env or an explicit flag onto cfg.
// Keys that only exist on some commands are ignored when unset.
func applyOverrides(v *viper.Viper, cfg *Config) {
	if v.IsSet("root") {
		cfg.Root = v.GetString("root")
	}
	if v.IsSet("suffix") {
		cfg.Suffix = v.GetString("suffix")
	}
	if v.IsSet("output") {
		cfg.Output = v.GetString("output")
	}
	if v.IsSet("batch-size") {
		cfg.BatchSize = v.GetInt("batch-size")
	}
	if v.IsSet("workers") {
		cfg.Workers = v.GetInt("workers")
	}
	if v.IsSet("unit-timeout") {
		cfg.UnitTimeout = v.GetDuration("unit-timeout")
	}
	if v.IsSet("sumo-binary") {
		cfg.Sumo.Binary = v.GetString("sumo-binary")
	}
	if v.IsSet("sumo-args") {
		cfg.Sumo.Args = v.GetStringSlice("sumo-args")
	}
	if v.IsSet("env-file") {
		cfg.Sumo.EnvFile = v.GetString("env-file")
	}
	if v.IsSet("hook") {
		cfg.Hook.Command = v.GetStringSlice("hook")
	}
	if v.IsSet("port-base") {
		cfg.Hook.PortBase = v.GetInt("port-base")
	}
	if v.IsSet("hook-grace") {
		cfg.Hook.Grace = v.GetDuration("hook-grace")
	}
}

// Resolve makes Root absolute and fills root-relative defaults.
func (c *Config) Resolve() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is empty", ErrInvalidConfig)
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolving root %s: %w", c.Root, err)
	}
	c.Root = root
	if c.Output == "" {
		c.Output = filepath.Join(root, "output.csv")
	}
	if c.Sumo.EnvFile == "" {
		c.Sumo.EnvFile = filepath.Join(root, ".env")
	}
	return nil
}

// Validate reports the first setting that cannot drive a run.
func (c *Config) Validate() error {
	switch {
	case c.Root == "":
		return fmt.Errorf("%w: root is empty", ErrInvalidConfig)
	case c.Output == "":
		return fmt.Errorf("%w: output is empty", ErrInvalidConfig)
	case c.Suffix == "":
		return fmt.Errorf("%w: suffix is empty", ErrInvalidConfig)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size %d must be at least 1", ErrInvalidConfig, c.BatchSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d must not be negative", ErrInvalidConfig, c.Workers)
	case c.UnitTimeout < 0:
		return fmt.Errorf("%w: unit_timeout %v must not be negative", ErrInvalidConfig, c.UnitTimeout)
	case c.Hook.Grace < 0:
		return fmt.Errorf("%w: hook grace %v must not be negative", ErrInvalidConfig, c.Hook.Grace)
	case len(c.Hook.Command) > 0 && (c.Hook.PortBase < 1 || c.Hook.PortBase > 65535):
		return fmt.Errorf("%w: hook port_base %d outside 1..65535", ErrInvalidConfig, c.Hook.PortBase)
	}
	return nil
}
