// Package config loads the runtime configuration file and the build
// target descriptors.
package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-ci/kestrel/internal/policy"
	"github.com/kestrel-ci/kestrel/internal/target"
)

// DefaultDataFileName names the per-suite impact analysis data file
// when the config does not override it.
const DefaultDataFileName = "coverage.json"

// DefaultHistoryFileName names the sequence report history database.
const DefaultHistoryFileName = "history.db"

// Workspace locates the runtime's on-disk state.
type Workspace struct {
	// ActiveRoot hosts per-suite impact analysis data files.
	ActiveRoot string `yaml:"active_root"`

	// ArtifactDir receives per-run coverage artifacts and output logs.
	ArtifactDir string `yaml:"artifact_dir"`

	// DataFileName overrides the impact analysis data file name.
	DataFileName string `yaml:"data_file_name"`

	// HistoryFileName overrides the history database file name,
	// resolved relative to ActiveRoot.
	HistoryFileName string `yaml:"history_file_name"`
}

// Targets configures the build graph inputs and exclusions.
type Targets struct {
	// DescriptorDir holds the CUE build target descriptors.
	DescriptorDir string `yaml:"descriptor_dir"`

	ExcludedRegularTests      []target.ExcludedTarget `yaml:"excluded_regular_tests"`
	ExcludedInstrumentedTests []target.ExcludedTarget `yaml:"excluded_instrumented_tests"`
}

// Engine configures the local test engine.
type Engine struct {
	// InstrumentationBinary wraps instrumented targets; empty means
	// targets emit their own coverage artifacts.
	InstrumentationBinary string `yaml:"instrumentation_binary"`

	// MaxConcurrency bounds concurrently running test targets.
	// Defaults to the hardware thread count.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Config is the runtime configuration file.
type Config struct {
	RepoRoot  string       `yaml:"repo_root"`
	Workspace Workspace    `yaml:"workspace"`
	Targets   Targets      `yaml:"targets"`
	Engine    Engine       `yaml:"engine"`
	Policies  policy.State `yaml:"policies"`
}

// Load reads and validates a YAML config file, filling unset fields
// with defaults. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := policy.Default()
	if c.Policies.ExecutionFailure == "" {
		c.Policies.ExecutionFailure = d.ExecutionFailure
	}
	if c.Policies.FailedTestCoverage == "" {
		c.Policies.FailedTestCoverage = d.FailedTestCoverage
	}
	if c.Policies.TestFailure == "" {
		c.Policies.TestFailure = d.TestFailure
	}
	if c.Policies.IntegrityFailure == "" {
		c.Policies.IntegrityFailure = d.IntegrityFailure
	}
	if c.Policies.TestSharding == "" {
		c.Policies.TestSharding = d.TestSharding
	}
	if c.Policies.TargetOutputCapture == "" {
		c.Policies.TargetOutputCapture = d.TargetOutputCapture
	}
	if c.Workspace.DataFileName == "" {
		c.Workspace.DataFileName = DefaultDataFileName
	}
	if c.Workspace.HistoryFileName == "" {
		c.Workspace.HistoryFileName = DefaultHistoryFileName
	}
	if c.Engine.MaxConcurrency <= 0 {
		c.Engine.MaxConcurrency = runtime.NumCPU()
	}
}

// Validate rejects configs missing required locations or carrying
// invalid policy values.
func (c *Config) Validate() error {
	if c.RepoRoot == "" {
		return fmt.Errorf("repo_root is required")
	}
	if c.Workspace.ActiveRoot == "" {
		return fmt.Errorf("workspace.active_root is required")
	}
	if c.Targets.DescriptorDir == "" {
		return fmt.Errorf("targets.descriptor_dir is required")
	}
	return c.Policies.Validate()
}
