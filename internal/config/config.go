// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration of the vwlearners command from a TOML file.
//
// Example:
//
//	engine = "vw"
//	library_path = "/opt/vw/lib/libvw_c_wrapper.so"
//	metrics_addr = ":9090"
//	learn = true
//	parallelism = 4
//
//	[[learner]]
//	name = "house"
//	command = "--quiet"
//
//	[[learner]]
//	name = "bandit"
//	command = "--cb 4 --quiet"
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Learner to create.
type Learner struct {
	Name    string `toml:"name"`
	Command string `toml:"command"`
}

// Config of the vwlearners command.
type Config struct {
	// Engine configuration, in the format "<engine>[:<config>]". Empty selects the default engine.
	Engine string

	// LibraryPath of the native VW library. Only used by the "vw" engine, if Engine has no config.
	LibraryPath string

	// MetricsAddr where to serve prometheus metrics. Empty disables it.
	MetricsAddr string

	// Learn from the examples (as opposed to only predicting).
	Learn bool

	// Parallelism is the maximum number of learners created or fed concurrently.
	Parallelism int

	Learners []Learner
}

// Default configuration.
func Default() Config {
	return Config{
		Learn:       true,
		Parallelism: 4,
	}
}

// fileConfig is the TOML layout.
type fileConfig struct {
	Engine      string    `toml:"engine"`
	LibraryPath string    `toml:"library_path"`
	MetricsAddr string    `toml:"metrics_addr"`
	Learn       bool      `toml:"learn"`
	Parallelism int       `toml:"parallelism"`
	Learners    []Learner `toml:"learner"`
}

// Load reads the TOML file and overlays its values over Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to load config from %q", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("config %q: unknown keys %q", path, undecoded)
	}

	cfg := Default()
	if meta.IsDefined("engine") {
		cfg.Engine = strings.TrimSpace(raw.Engine)
	}
	if meta.IsDefined("library_path") {
		cfg.LibraryPath = strings.TrimSpace(raw.LibraryPath)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("learn") {
		cfg.Learn = raw.Learn
	}
	if meta.IsDefined("parallelism") {
		cfg.Parallelism = raw.Parallelism
	}
	if meta.IsDefined("learner") {
		cfg.Learners = raw.Learners
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.WithMessagef(err, "config %q", path)
	}
	return cfg, nil
}

// Validate checks the configuration and fills in the names of unnamed learners.
//
// Unnamed learners are named after their command, with a "#2", "#3", ... suffix when the command
// is repeated. Explicit names must be unique.
func (cfg *Config) Validate() error {
	if cfg.Parallelism < 1 {
		return errors.Errorf("parallelism must be >= 1, got %d", cfg.Parallelism)
	}
	names := make(map[string]bool, len(cfg.Learners))
	for i := range cfg.Learners {
		l := &cfg.Learners[i]
		l.Command = strings.TrimSpace(l.Command)
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			continue
		}
		if names[l.Name] {
			return errors.Errorf("learner #%d: duplicate name %q", i, l.Name)
		}
		names[l.Name] = true
	}
	for i := range cfg.Learners {
		l := &cfg.Learners[i]
		if l.Name != "" {
			continue
		}
		l.Name = l.Command
		for n := 2; names[l.Name]; n++ {
			l.Name = fmt.Sprintf("%s#%d", l.Command, n)
		}
		names[l.Name] = true
	}
	return nil
}

// EngineConfig returns the configuration string to pass to engines.NewWithConfig.
// The library path is appended to a bare "vw" engine name.
func (cfg *Config) EngineConfig() string {
	if cfg.LibraryPath != "" && cfg.Engine == "vw" {
		return cfg.Engine + ":" + cfg.LibraryPath
	}
	return cfg.Engine
}
