// Package config loads scheduler tuning from YAML. The reference
// implementation hardcodes its equivalent knobs (CO_STACK_SIZE and
// friends) as compile-time constants; this mirrors the pack-wide convention
// (cue-lang/cue, dohr-michael-ozzie, zkoranges-go-claw all load YAML
// config) so the same knobs are tunable at runtime instead.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taisei-project/cosched/cotask"
)

// SchedulerConfig is the YAML-loadable tuning surface for a CoSched.
type SchedulerConfig struct {
	// ScratchArenaBytes sizes each task's private scratch allocator.
	ScratchArenaBytes int `yaml:"scratch_arena_bytes"`
	// TickRate is how many StepFrame calls per second the host loop
	// (cmd/cosched-demo) aims for.
	TickRate int `yaml:"tick_rate"`
	// DebugCanary is read from YAML and kept in the config; no code in
	// this module acts on it.
	DebugCanary bool `yaml:"debug_canary"`
}

// Default returns the out-of-the-box tuning, matching cotask's own
// defaults.
func Default() SchedulerConfig {
	return SchedulerConfig{
		ScratchArenaBytes: cotask.DefaultPoolConfig().ScratchArenaSize,
		TickRate:          60,
		DebugCanary:       false,
	}
}

// Load reads and parses a SchedulerConfig from a YAML file at path, filling
// in defaults for any field the file doesn't set.
func Load(path string) (SchedulerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SchedulerConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML bytes into a SchedulerConfig, as Load does.
func Parse(data []byte) (SchedulerConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SchedulerConfig{}, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if cfg.ScratchArenaBytes <= 0 {
		return SchedulerConfig{}, fmt.Errorf("config: scratch_arena_bytes must be positive, got %d", cfg.ScratchArenaBytes)
	}
	if cfg.TickRate <= 0 {
		return SchedulerConfig{}, fmt.Errorf("config: tick_rate must be positive, got %d", cfg.TickRate)
	}
	return cfg, nil
}

// TickInterval is the fixed-step duration implied by TickRate.
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// PoolConfig adapts the loaded config into a cotask.PoolConfig.
func (c SchedulerConfig) PoolConfig() cotask.PoolConfig {
	return cotask.PoolConfig{ScratchArenaSize: c.ScratchArenaBytes}
}
