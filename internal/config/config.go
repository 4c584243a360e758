package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
)

// DefaultFile is the configuration file name looked up in the project root.
const DefaultFile = "spabuild.yaml"

// Config is the per-run plugin configuration supplied by the deployment project.
type Config struct {
	// Backend optionally forces a backend (module-bundler|native-es-bundler or webpack|esbuild).
	Backend    string `yaml:"backend,omitempty"`
	Entry      string `yaml:"entry,omitempty"`
	Output     string `yaml:"output,omitempty"`
	ConfigFile string `yaml:"config_file,omitempty"`
	PublicDir  string `yaml:"public_dir,omitempty"`
	ShellFile  string `yaml:"shell_file,omitempty"`
	// Strict is nil when the file does not decide; the CLI then falls back to the CI indicator.
	Strict *bool `yaml:"strict,omitempty"`
	// Stages restricts the deployment stages the plugin runs for. Empty means all.
	Stages            []string      `yaml:"stages,omitempty"`
	Stage             string        `yaml:"stage,omitempty"`
	InjectGitRevision bool          `yaml:"inject_git_revision,omitempty"`
	Staging           StagingConfig `yaml:"staging"`
	Watch             WatchConfig   `yaml:"watch"`
	Notify            NotifyConfig  `yaml:"notify"`
}

// StagingConfig controls where built assets are copied for the deployment pipeline.
type StagingConfig struct {
	StaticDir    string      `yaml:"static_dir,omitempty"`
	PackageDir   string      `yaml:"package_dir,omitempty"`
	Offline      OfflineMode `yaml:"offline,omitempty"`
	OfflineDir   string      `yaml:"offline_dir,omitempty"`
	Functions    []string    `yaml:"functions,omitempty"`
	Destinations []string    `yaml:"destinations,omitempty"`
}

// WatchConfig tunes watch sessions.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce,omitempty"`
	MetricsAddr string        `yaml:"metrics_addr,omitempty"`
}

// NotifyConfig enables outcome notifications.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// ShouldExecute reports whether the plugin runs for the given deployment stage.
func (c *Config) ShouldExecute(stage string) bool {
	if len(c.Stages) == 0 {
		return true
	}
	for _, s := range c.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// Load reads the configuration file at path, resolved against the project
// root when relative. A missing file yields defaults; a present but malformed
// file is an InvalidConfig error. The root's environment files are loaded first
// and ${VAR} references are expanded before parsing.
func Load(root, path string) (*Config, error) {
	loadEnvFiles(root)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// no file: defaults only
	case err != nil:
		return nil, ferrors.InvalidConfig("read configuration file").WithCause(err).WithContext("path", path).Build()
	default:
		dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, ferrors.InvalidConfig("parse configuration file").WithCause(err).WithContext("path", path).Build()
		}
	}

	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}

	strict := false
	example := Config{
		Entry:     "src/index.js",
		ShellFile: "index.html",
		Strict:    &strict,
		Stages:    []string{"dev", "prod"},
		Stage:     "dev",
		Staging: StagingConfig{
			StaticDir:  "public",
			PackageDir: ".esbuild/.build",
			Offline:    OfflineAuto,
			OfflineDir: "static",
		},
		Watch:  WatchConfig{Debounce: 100 * time.Millisecond},
		Notify: NotifyConfig{Subject: "spabuild.outcome"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
