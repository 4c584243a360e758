// Package errors provides the classified error primitives used across spabuild.
//
// Every failure the build orchestrator surfaces carries a category that tells
// operators which layer broke: backend detection, configuration resolution, the
// bundler engine itself, or artifact staging. A compiled-with-errors build is not
// an error at all; it is reported as a diagnostics.Outcome value.
//
// Key features:
//   - ErrorCategory: broad classification (backend, config, engine, staging, ...)
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - RetryStrategy: whether retrying can help (never, or only after user action)
//   - ClassifiedError: structured error with category, severity and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing formatting
//
// Example usage:
//
//	err := errors.StagingError("copy build output").
//		WithContext("destination", dst).
//		WithCause(copyErr).
//		Build()
//	stderrors.Is(err, errors.ErrStagingFailure) // true
package errors
