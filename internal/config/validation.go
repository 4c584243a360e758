package config

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
)

// Validate checks values that defaults cannot repair.
func Validate(cfg *Config) error {
	if _, ok := bundler.ParseKind(cfg.Backend); !ok {
		return ferrors.InvalidConfig("unknown backend").WithContext("backend", cfg.Backend).Build()
	}
	if NormalizeOfflineMode(string(cfg.Staging.Offline)) == "" {
		return ferrors.InvalidConfig("staging.offline must be auto, always or never").
			WithContext("value", string(cfg.Staging.Offline)).
			Build()
	}
	if filepath.IsAbs(cfg.ShellFile) || strings.HasPrefix(filepath.Clean(cfg.ShellFile), "..") {
		return ferrors.InvalidConfig("shell_file must be relative to the output directory").
			WithContext("shell_file", cfg.ShellFile).
			Build()
	}
	return nil
}
