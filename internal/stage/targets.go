package stage

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	"git.home.luguber.info/inful/spabuild/internal/config"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
)

// Reasons recorded on triples.
const (
	ReasonPackage  = "package"
	ReasonOffline  = "offline"
	ReasonFunction = "function"
	ReasonExplicit = "explicit"
)

// offlinePackage is the dependency whose presence enables offline staging in auto mode.
const offlinePackage = "serverless-offline"

// destination is a candidate staging target derived from configuration.
type destination struct {
	path   string
	reason string
	// requires is a directory that must exist for the destination to be used.
	requires string
}

// candidates lists every destination the configuration can produce, in plan order.
func candidates(bc bundler.BuildConfig, sc config.StagingConfig) []destination {
	var out []destination
	if pkg := join(bc.ProjectRoot, sc.PackageDir); pkg != "" {
		out = append(out, destination{path: filepath.Join(pkg, sc.StaticDir), reason: ReasonPackage, requires: pkg})
	}
	if sc.Offline != config.OfflineNever {
		if dir := join(bc.ProjectRoot, sc.OfflineDir); dir != "" {
			out = append(out, destination{path: dir, reason: ReasonOffline})
		}
	}
	for _, fn := range sc.Functions {
		out = append(out, destination{path: filepath.Join(join(bc.ProjectRoot, fn), sc.StaticDir), reason: ReasonFunction})
	}
	for _, d := range sc.Destinations {
		out = append(out, destination{path: join(bc.ProjectRoot, d), reason: ReasonExplicit})
	}
	for i := range out {
		out[i].path = filepath.Clean(out[i].path)
	}
	return out
}

// conflict describes why dest cannot receive staged output and names the
// directory it collides with. It returns empty strings when dest is usable.
// A destination must not overlap the output or public root, nor contain the
// source root.
func conflict(dest string, bc bundler.BuildConfig) (string, string) {
	switch {
	case overlaps(dest, bc.OutputDir):
		return "staging destination overlaps the build output directory", bc.OutputDir
	case bc.PublicRoot != "" && overlaps(dest, bc.PublicRoot):
		return "staging destination overlaps the public directory", bc.PublicRoot
	case bc.SourceRoot != "" && contains(dest, bc.SourceRoot):
		return "staging destination contains the source directory", bc.SourceRoot
	}
	return "", ""
}

// ValidateDestinations rejects configured staging destinations that conflict
// with the build's own directories. It runs before any build so that a bad
// configuration never touches the output directory.
func ValidateDestinations(bc bundler.BuildConfig, sc config.StagingConfig) error {
	for _, d := range candidates(bc, sc) {
		if msg, dir := conflict(d.path, bc); msg != "" {
			return ferrors.InvalidConfig(msg).
				WithContext("destination", d.path).
				WithContext("reason", d.reason).
				WithContext("conflicts_with", dir).
				Build()
		}
	}
	return nil
}

// NewPlan computes the staging plan for a finished build from the deployment
// collaborators present in the project. It is recomputed for every pass since
// collaborators such as the packaging folder appear and disappear at runtime.
func NewPlan(bc bundler.BuildConfig, sc config.StagingConfig) (Plan, error) {
	exclude := ExcludeShell(bc.ShellFile)
	offline := sc.Offline == config.OfflineAlways
	if sc.Offline == config.OfflineAuto {
		deps, err := bundler.PackageDependencies(bc.ProjectRoot)
		if err != nil {
			slog.Warn("Cannot read package.json for offline detection", "error", err)
		}
		_, offline = deps[offlinePackage]
	}

	var plan Plan
	seen := map[string]bool{}
	for _, d := range candidates(bc, sc) {
		if d.requires != "" && !isDir(d.requires) {
			continue
		}
		if d.reason == ReasonOffline && !offline {
			continue
		}
		if seen[d.path] {
			continue
		}
		if msg, dir := conflict(d.path, bc); msg != "" {
			return Plan{}, ferrors.StagingError(msg).
				WithContext("destination", d.path).
				WithContext("reason", d.reason).
				WithContext("conflicts_with", dir).
				Build()
		}
		seen[d.path] = true
		plan.Triples = append(plan.Triples, Triple{
			Source:      bc.OutputDir,
			Destination: d.path,
			Exclude:     exclude,
			Reason:      d.reason,
		})
	}

	if len(plan.Triples) == 0 {
		slog.Info("No staging destinations detected; build output stays in place", "output_dir", bc.OutputDir)
	}
	return plan, nil
}

func join(root, p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

// overlaps reports whether either path contains the other.
func overlaps(a, b string) bool {
	return contains(a, b) || contains(b, a)
}

func contains(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
