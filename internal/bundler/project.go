package bundler

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

type packageManifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// PackageDependencies returns the union of dependencies and devDependencies
// declared in the project's package.json. A missing manifest yields an empty map.
func PackageDependencies(projectRoot string) (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(projectRoot, "package.json"))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var pkg packageManifest
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	deps := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for name, v := range pkg.Dependencies {
		deps[name] = v
	}
	for name, v := range pkg.DevDependencies {
		deps[name] = v
	}
	return deps, nil
}

// Markers are the capability signals that a backend is usable in a project.
// Any one of them is sufficient.
type Markers struct {
	// Packages are npm package names looked up in package.json and node_modules.
	Packages []string
	// Files are paths relative to the project root.
	Files []string
}

// Probe reports the first marker found, or "" when none is present.
func (m Markers) Probe(projectRoot string, deps map[string]string) string {
	for _, name := range m.Packages {
		if _, ok := deps[name]; ok {
			return "package.json:" + name
		}
		if isDir(filepath.Join(projectRoot, "node_modules", name)) {
			return "node_modules/" + name
		}
	}
	for _, f := range m.Files {
		if st, err := os.Stat(filepath.Join(projectRoot, f)); err == nil && !st.IsDir() {
			return f
		}
	}
	return ""
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
