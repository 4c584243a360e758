// Package resolve merges user overrides with backend defaults into an immutable
// bundler.BuildConfig.
//
// Resolution order is backend defaults, then the backend's own config file when it
// exists, then user overrides. Overrides cascade: a custom entry point moves the
// source root with it. Resolution only reads the filesystem; it never creates
// directories or invokes a bundler.
package resolve

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/config"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
)

// Request carries everything besides the plugin config that resolution depends on.
type Request struct {
	ProjectRoot string
	Mode        bundler.Mode
	// Define holds extra compile-time substitutions (e.g. the git revision).
	Define map[string]string
}

// Resolve produces the BuildConfig for one build invocation.
func Resolve(cfg *config.Config, desc bundler.Descriptor, req Request) (bundler.BuildConfig, error) {
	mode, ok := bundler.ParseMode(string(req.Mode))
	if !ok {
		return bundler.BuildConfig{}, ferrors.InvalidConfig("mode must be development or production").
			WithContext("mode", string(req.Mode)).
			Build()
	}
	root, err := filepath.Abs(req.ProjectRoot)
	if err != nil {
		return bundler.BuildConfig{}, ferrors.InvalidConfig("resolve project root").WithCause(err).Build()
	}

	configFile, explicitConfig := desc.Defaults.ConfigFile, false
	if cfg.ConfigFile != "" {
		configFile, explicitConfig = cfg.ConfigFile, true
	}
	configFile = abs(root, configFile)

	var fileOpts bundler.FileOptions
	hasConfigFile := false
	switch _, statErr := os.Stat(configFile); {
	case configFile == "":
	case statErr == nil:
		hasConfigFile = true
		if desc.LoadConfigFile != nil {
			fileOpts, err = desc.LoadConfigFile(configFile)
			if err != nil {
				return bundler.BuildConfig{}, ferrors.InvalidConfig("load backend config file").
					WithCause(err).
					WithContext("config_file", configFile).
					Build()
			}
		}
	case errors.Is(statErr, fs.ErrNotExist) && explicitConfig:
		return bundler.BuildConfig{}, ferrors.InvalidConfig("backend config file not found").
			WithContext("config_file", configFile).
			Build()
	case !errors.Is(statErr, fs.ErrNotExist):
		return bundler.BuildConfig{}, ferrors.InvalidConfig("stat backend config file").WithCause(statErr).Build()
	}
	if !hasConfigFile {
		configFile = ""
	}

	entries := []string{desc.Defaults.Entry}
	if len(fileOpts.EntryPoints) > 0 {
		entries = fileOpts.EntryPoints
	}
	if cfg.Entry != "" {
		entries = []string{cfg.Entry}
	}
	for i, e := range entries {
		entries[i] = abs(root, e)
	}
	if len(entries) == 0 || entries[0] == "" {
		return bundler.BuildConfig{}, ferrors.InvalidConfig("no entry point configured").Build()
	}

	// A backend config file that is consulted but sets no output leaves nothing
	// to fall back on: its defaults are the ones the user chose.
	output := desc.Defaults.OutputDir
	if hasConfigFile && desc.LoadConfigFile != nil {
		output = fileOpts.OutputDir
	}
	if cfg.Output != "" {
		output = cfg.Output
	}
	if strings.TrimSpace(output) == "" {
		return bundler.BuildConfig{}, ferrors.InvalidConfig("no output directory: backend config has no output section and no override was given").
			WithContext("backend", string(desc.Kind)).
			WithContext("config_file", configFile).
			Build()
	}
	output = abs(root, output)

	public := desc.Defaults.PublicDir
	if fileOpts.PublicDir != "" {
		public = fileOpts.PublicDir
	}
	if cfg.PublicDir != "" {
		public = cfg.PublicDir
	}

	bc := bundler.BuildConfig{
		Backend:     desc.Kind,
		ProjectRoot: root,
		EntryPoints: entries,
		SourceRoot:  filepath.Dir(entries[0]),
		PublicRoot:  abs(root, public),
		OutputDir:   output,
		ConfigFile:  configFile,
		ShellFile:   shellFile(cfg.ShellFile),
		Mode:        mode,
		Define:      merge(fileOpts.Define, req.Define),
		Loader:      merge(fileOpts.Loader, nil),
	}
	if err := checkOutput(bc); err != nil {
		return bundler.BuildConfig{}, err
	}
	return bc, nil
}

// checkOutput rejects output paths whose clearing would destroy project inputs,
// and output paths inside an input root, where every write would look like a
// source change to a watch session.
func checkOutput(bc bundler.BuildConfig) error {
	inputs := []struct{ key, path string }{
		{"project_root", bc.ProjectRoot},
		{"source_root", bc.SourceRoot},
		{"public_root", bc.PublicRoot},
	}
	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		if within(in.path, bc.OutputDir) {
			return ferrors.InvalidConfig("output directory contains a project input").
				WithContext("output_dir", bc.OutputDir).
				WithContext(in.key, in.path).
				Build()
		}
		if in.path != bc.ProjectRoot && within(bc.OutputDir, in.path) {
			return ferrors.InvalidConfig("output directory lies inside a project input").
				WithContext("output_dir", bc.OutputDir).
				WithContext(in.key, in.path).
				Build()
		}
	}
	return nil
}

// within reports whether p equals dir or lies beneath it.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func shellFile(p string) string {
	if p == "" {
		return ""
	}
	return filepath.ToSlash(filepath.Clean(p))
}

func abs(root, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func merge(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
