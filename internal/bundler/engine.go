package bundler

import (
	"context"

	"git.home.luguber.info/inful/spabuild/internal/diagnostics"
)

// Engine drives one bundler backend.
//
// Build blocks until the backend reports completion. A compile that finishes with
// errors is a normal result carried in the report; a non-nil error means the
// engine itself crashed. The returned Handle is nil for backends without
// incremental compilation, which callers treat as "watch unsupported".
type Engine interface {
	Build(ctx context.Context, cfg BuildConfig) (diagnostics.Report, Handle, error)
}

// Handle is a live build session kept by engines that support incremental rebuilds.
type Handle interface {
	// Changes delivers a notification per detected source change. It is closed by Close.
	Changes() <-chan struct{}
	// Rebuild runs an incremental pass against the session's BuildConfig.
	Rebuild(ctx context.Context) (diagnostics.Report, error)
	Close() error
}

// PathIgnorer is implemented by handles whose change feed can skip whole
// directories. Callers that write into the watched tree, such as the stager,
// register their targets here so their own writes do not trigger a rebuild.
type PathIgnorer interface {
	IgnorePaths(dirs ...string)
}
