// Package bundler defines the contract between the orchestrator and a bundler
// backend: the backend kinds, the immutable BuildConfig handed to an engine, the
// Engine and Handle interfaces, and the capability-keyed Registry the backend
// selector resolves against.
//
// Concrete engines live in sub-packages (esbuild, webpack) and are registered
// explicitly; nothing is loaded from a path computed at runtime.
package bundler
