package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	kind     error
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(err)
}

// WithCause sets the wrapped error.
func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

// withKind records the taxonomy sentinel the built error will match via errors.Is.
func (b *ErrorBuilder) withKind(kind error) *ErrorBuilder {
	b.kind = kind
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// UserAction sets the retry strategy to require user intervention.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	return b.WithRetry(RetryUserAction)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		retry:    b.retry,
		message:  b.message,
		kind:     b.kind,
		cause:    b.cause,
		context:  b.context,
	}
}

// Convenience constructors for the orchestrator's taxonomy. Each built error
// matches its sentinel with errors.Is independently of any attached cause.

// BackendNotDetected reports that no known backend marker exists in the project.
func BackendNotDetected(message string) *ErrorBuilder {
	return NewError(CategoryBackend, message).Fatal().UserAction().withKind(ErrBackendNotDetected)
}

// UnsupportedBackend reports an override naming a backend the project cannot run.
func UnsupportedBackend(message string) *ErrorBuilder {
	return NewError(CategoryBackend, message).Fatal().UserAction().withKind(ErrUnsupportedBackend)
}

// InvalidConfig reports a configuration that cannot be resolved into a build.
func InvalidConfig(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().UserAction().withKind(ErrInvalidConfig)
}

// EngineFailure reports a bundler that crashed rather than reporting diagnostics.
func EngineFailure(message string) *ErrorBuilder {
	return NewError(CategoryEngine, message).Fatal().withKind(ErrBuildEngineFailure)
}

// StagingError reports a post-build copy failure.
func StagingError(message string) *ErrorBuilder {
	return NewError(CategoryStaging, message).withKind(ErrStagingFailure)
}

// ValidationError creates a validation error.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

// RuntimeError creates a runtime error.
func RuntimeError(message string) *ErrorBuilder {
	return NewError(CategoryRuntime, message).Fatal()
}
