package config

import "time"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type coreDefaultApplier struct{}

func (coreDefaultApplier) Domain() string { return "core" }

func (coreDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.ShellFile == "" {
		cfg.ShellFile = "index.html"
	}
	if cfg.Stage == "" {
		cfg.Stage = "dev"
	}
	return nil
}

type stagingDefaultApplier struct{}

func (stagingDefaultApplier) Domain() string { return "staging" }

func (stagingDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Staging.StaticDir == "" {
		cfg.Staging.StaticDir = "public"
	}
	if cfg.Staging.PackageDir == "" {
		cfg.Staging.PackageDir = ".esbuild/.build"
	}
	// Unknown values are left in place for Validate to reject.
	if cfg.Staging.Offline == "" {
		cfg.Staging.Offline = OfflineAuto
	} else if m := NormalizeOfflineMode(string(cfg.Staging.Offline)); m != "" {
		cfg.Staging.Offline = m
	}
	if cfg.Staging.OfflineDir == "" {
		cfg.Staging.OfflineDir = "static"
	}
	return nil
}

type watchDefaultApplier struct{}

func (watchDefaultApplier) Domain() string { return "watch" }

func (watchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 100 * time.Millisecond
	}
	return nil
}

type notifyDefaultApplier struct{}

func (notifyDefaultApplier) Domain() string { return "notify" }

func (notifyDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "spabuild.outcome"
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	coreDefaultApplier{},
	stagingDefaultApplier{},
	watchDefaultApplier{},
	notifyDefaultApplier{},
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
