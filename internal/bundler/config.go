package bundler

import "maps"

// BuildConfig is the fully resolved, backend-specific input for one build pass.
// All paths are absolute. It is produced by the resolver and never mutated; use
// Clone before handing a copy to code that might modify the maps.
type BuildConfig struct {
	Backend     Kind
	ProjectRoot string
	EntryPoints []string
	SourceRoot  string
	PublicRoot  string
	OutputDir   string
	// ConfigFile is the backend's own config file, empty when none is used.
	ConfigFile string
	// ShellFile is the HTML shell, relative to OutputDir, excluded from staging.
	ShellFile string
	Mode      Mode
	Define    map[string]string
	Loader    map[string]string
}

// Clone returns a deep copy.
func (c BuildConfig) Clone() BuildConfig {
	out := c
	out.EntryPoints = append([]string(nil), c.EntryPoints...)
	out.Define = maps.Clone(c.Define)
	out.Loader = maps.Clone(c.Loader)
	return out
}

// Defaults are the paths a backend assumes when the user overrides nothing.
// Paths are relative to the project root.
type Defaults struct {
	Entry      string
	PublicDir  string
	OutputDir  string
	ConfigFile string
}

// FileOptions are the values a backend config file may contribute. Empty fields
// mean the file did not set them.
type FileOptions struct {
	EntryPoints []string          `yaml:"entryPoints"`
	OutputDir   string            `yaml:"outdir"`
	PublicDir   string            `yaml:"publicDir"`
	Define      map[string]string `yaml:"define"`
	Loader      map[string]string `yaml:"loader"`
}
