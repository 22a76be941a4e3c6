// Package config loads engine tunables from a YAML file: start from
// hard-coded defaults, then let anything present in the file win.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fidobridge/ctaphid/ctaphid"
)

// Config is the on-disk tunable surface for an Engine. Fields absent from
// the file keep their Default() value.
type Config struct {
	MaxChannels     int    `yaml:"max_channels"`
	IdleLifetimeMS  int64  `yaml:"idle_lifetime_ms"`
	TxnTimeoutMS    int64  `yaml:"txn_timeout_ms"`
	EnableCBOR      bool   `yaml:"enable_cbor"`
	DeviceMajor     uint8  `yaml:"device_major"`
	DeviceMinor     uint8  `yaml:"device_minor"`
	DeviceBuild     uint8  `yaml:"device_build"`
	U2FVersion      string `yaml:"u2f_version"`
	PeriodicTickMS  int64  `yaml:"periodic_tick_ms"`
}

// Default returns the tunables ctaphid.DefaultOptions recommends, in the
// on-disk shape.
func Default() Config {
	opts := ctaphid.DefaultOptions()
	return Config{
		MaxChannels:    opts.MaxChannels,
		IdleLifetimeMS: opts.IdleLifetimeMS,
		TxnTimeoutMS:   opts.TxnTimeoutMS,
		EnableCBOR:     false,
		DeviceMajor:    opts.DeviceVersion.Major,
		DeviceMinor:    opts.DeviceVersion.Minor,
		DeviceBuild:    opts.DeviceVersion.Build,
		U2FVersion:     "U2F_V2",
		PeriodicTickMS: ctaphid.DefaultPeriodicTick.Milliseconds(),
	}
}

// Load reads a YAML config file at path, applying its contents over
// Default(). A blank path is not an error and returns Default() unchanged;
// a non-blank path naming a missing file returns an error wrapping
// ErrNotExist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.MaxChannels <= 0 {
		return Config{}, fmt.Errorf("config: max_channels must be positive, got %d", cfg.MaxChannels)
	}
	return cfg, nil
}

// Options converts the on-disk Config into ctaphid.Options.
func (c Config) Options() ctaphid.Options {
	// WINK and LOCK are always advertised; only CBOR varies by configuration.
	caps := ctaphid.CapWink | ctaphid.CapLock
	if c.EnableCBOR {
		caps |= ctaphid.CapCBOR
	}
	return ctaphid.Options{
		MaxChannels:    c.MaxChannels,
		IdleLifetimeMS: c.IdleLifetimeMS,
		TxnTimeoutMS:   c.TxnTimeoutMS,
		Capability:     caps,
		DeviceVersion: ctaphid.DeviceVersion{
			Major: c.DeviceMajor,
			Minor: c.DeviceMinor,
			Build: c.DeviceBuild,
		},
	}
}

// PeriodicTick is the configured PeriodicTick cadence as a time.Duration.
func (c Config) PeriodicTick() time.Duration {
	return time.Duration(c.PeriodicTickMS) * time.Millisecond
}
