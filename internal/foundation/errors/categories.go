package errors

import (
	stderrors "errors"
	"maps"
)

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig represents user-facing configuration and input errors.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// CategoryBackend represents bundler backend detection and capability errors.
	CategoryBackend ErrorCategory = "backend"

	// CategoryEngine represents a bundler engine that crashed instead of reporting diagnostics.
	CategoryEngine     ErrorCategory = "engine"
	CategoryStaging    ErrorCategory = "staging"
	CategoryFileSystem ErrorCategory = "filesystem"

	// CategoryRuntime represents runtime and infrastructure errors.
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// Sentinels for the orchestrator's error taxonomy. Classified errors built by the
// convenience constructors below wrap one of these so callers can use errors.Is.
var (
	ErrBackendNotDetected = stderrors.New("no bundler backend detected")
	ErrUnsupportedBackend = stderrors.New("unsupported bundler backend")
	ErrInvalidConfig      = stderrors.New("invalid build configuration")
	ErrBuildEngineFailure = stderrors.New("bundler engine failure")
	ErrStagingFailure     = stderrors.New("artifact staging failure")
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy tells the caller whether rerunning can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never" // Permanent failure, don't retry
	RetryUserAction RetryStrategy = "user"  // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
