package bundler

import (
	"log/slog"

	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
)

// Select decides the active backend. An explicit override must be registered and
// have one of its capability markers present; otherwise backends are probed in
// registry order and the first match wins.
func Select(reg *Registry, override Kind, projectRoot string) (Descriptor, error) {
	deps, err := PackageDependencies(projectRoot)
	if err != nil {
		return Descriptor{}, ferrors.InvalidConfig("read package.json").
			WithCause(err).
			WithContext("project_root", projectRoot).
			Build()
	}

	if override != "" {
		desc, ok := reg.Lookup(override)
		if !ok {
			return Descriptor{}, ferrors.UnsupportedBackend("backend is not registered").
				WithContext("backend", string(override)).
				Build()
		}
		marker := desc.Markers.Probe(projectRoot, deps)
		if marker == "" {
			return Descriptor{}, ferrors.UnsupportedBackend("backend capability not present in project").
				WithContext("backend", string(override)).
				WithContext("project_root", projectRoot).
				Build()
		}
		slog.Debug("Backend selected by override", logfields.Backend(string(override)), slog.String("marker", marker))
		return desc, nil
	}

	for _, kind := range reg.Kinds() {
		desc, _ := reg.Lookup(kind)
		if marker := desc.Markers.Probe(projectRoot, deps); marker != "" {
			slog.Debug("Backend detected", logfields.Backend(string(kind)), slog.String("marker", marker))
			return desc, nil
		}
	}
	return Descriptor{}, ferrors.BackendNotDetected("no bundler backend marker found").
		WithContext("project_root", projectRoot).
		WithContext("probed", reg.Kinds()).
		Build()
}
