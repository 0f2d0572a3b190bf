package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Escalation defaults, in seconds.
const (
	DefaultInterruptTimeout = 10
	DefaultTermTimeout      = 5
	DefaultKillTimeout      = 5
)

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Listen:     "127.0.0.1:8777",
		Host:       "127.0.0.1",
		StateDir:   defaultStateDir(),
		PortEnvVar: "PORT",
		Timeouts: TimeoutConfig{
			Interrupt: DefaultInterruptTimeout,
			Term:      DefaultTermTimeout,
			Kill:      DefaultKillTimeout,
		},
		Probe: ProbeConfig{
			Deadline: Duration{30 * time.Second},
			Interval: Duration{250 * time.Millisecond},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

func defaultStateDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".rootlessspawner")
	}
	return ".rootlessspawner"
}

// Load reads the configuration from the provided path, applying defaults for
// unset fields and validating the result.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	cfg.StateDir = os.ExpandEnv(cfg.StateDir)
	cfg.HomeRoot = os.ExpandEnv(cfg.HomeRoot)
	cfg.SharedDir = os.ExpandEnv(cfg.SharedDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Validate checks invariants that the YAML schema cannot express.
func (c *Config) Validate() error {
	if c.Timeouts.Interrupt < 0 {
		return fmt.Errorf("timeouts.interrupt: must not be negative")
	}
	if c.Timeouts.Term < 0 {
		return fmt.Errorf("timeouts.term: must not be negative")
	}
	if c.Timeouts.Kill < 0 {
		return fmt.Errorf("timeouts.kill: must not be negative")
	}
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("listen: invalid address %q: %w", c.Listen, err)
		}
	}
	if c.StateDir == "" {
		return fmt.Errorf("stateDir: must not be empty")
	}
	if c.PortEnvVar == "" {
		return fmt.Errorf("portEnvVar: must not be empty")
	}
	if c.Probe.Enabled && c.Probe.Deadline.Duration <= 0 {
		return fmt.Errorf("probe.deadline: must be positive when the probe is enabled")
	}
	return nil
}
