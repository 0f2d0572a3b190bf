// Package config loads the supervisor configuration file.
package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config mirrors the YAML configuration document.
type Config struct {
	// Listen is the control API address.
	Listen string `yaml:"listen"`

	// Host is the address reported to the hub for spawned endpoints.
	Host string `yaml:"host"`

	// StateDir holds the per-job state files.
	StateDir string `yaml:"stateDir"`

	// HomeRoot, when set, is where per-job home directories are
	// provisioned. SharedDir is linked into each home as "Shared".
	HomeRoot  string `yaml:"homeRoot"`
	SharedDir string `yaml:"sharedDir"`

	// PortEnvVar names the environment variable carrying the allocated
	// port to the child.
	PortEnvVar string `yaml:"portEnvVar"`

	Timeouts TimeoutConfig `yaml:"timeouts"`
	Probe    ProbeConfig   `yaml:"probe"`
	Log      LogConfig     `yaml:"log"`
}

// TimeoutConfig holds the stop escalation timeouts, in seconds.
type TimeoutConfig struct {
	Interrupt int `yaml:"interrupt"`
	Term      int `yaml:"term"`
	Kill      int `yaml:"kill"`
}

// InterruptDuration returns the interrupt tier wait.
func (t TimeoutConfig) InterruptDuration() time.Duration {
	return time.Duration(t.Interrupt) * time.Second
}

// TermDuration returns the terminate tier wait.
func (t TimeoutConfig) TermDuration() time.Duration {
	return time.Duration(t.Term) * time.Second
}

// KillDuration returns the kill tier wait.
func (t TimeoutConfig) KillDuration() time.Duration {
	return time.Duration(t.Kill) * time.Second
}

// ProbeConfig controls the post-launch TCP readiness wait.
type ProbeConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Deadline Duration `yaml:"deadline"`
	Interval Duration `yaml:"interval"`
}

// LogConfig selects logger verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
