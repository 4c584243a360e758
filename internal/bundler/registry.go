package bundler

import "log/slog"

// Descriptor is everything the orchestrator knows about one backend.
type Descriptor struct {
	Kind     Kind
	Markers  Markers
	Defaults Defaults
	// LoadConfigFile parses the backend's config file for values the resolver
	// needs. Nil means the file is opaque and only passed through to the engine.
	LoadConfigFile func(path string) (FileOptions, error)
	// New constructs the engine.
	New func() Engine
}

// Registry maps backend kinds to descriptors. Registration order is the
// detection priority order.
type Registry struct {
	order  []Kind
	byKind map[Kind]Descriptor
}

// NewRegistry creates a registry from descriptors in priority order.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{byKind: make(map[Kind]Descriptor, len(descs))}
	for _, d := range descs {
		r.Register(d)
	}
	return r
}

// Register appends a descriptor. Duplicate kinds are ignored.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.byKind[d.Kind]; exists {
		slog.Debug("Ignoring duplicate backend registration", "backend", d.Kind)
		return
	}
	r.order = append(r.order, d.Kind)
	r.byKind[d.Kind] = d
}

// Lookup returns the descriptor for kind.
func (r *Registry) Lookup(kind Kind) (Descriptor, bool) {
	d, ok := r.byKind[kind]
	return d, ok
}

// Kinds lists registered kinds in priority order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}
