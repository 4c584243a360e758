package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "spabuild.yaml").
			Build()

		require.Equal(t, CategoryConfig, err.Category())
		require.Equal(t, SeverityFatal, err.Severity())
		require.Equal(t, "invalid configuration", err.Message())

		require.Equal(t, "spabuild.yaml", err.Context()["file"])
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("resolve: %w", InvalidConfig("no output path").Build())

		require.True(t, IsClassified(err))
		require.True(t, HasCategory(err, CategoryConfig))
		require.Equal(t, CategoryConfig, GetCategory(err))
		require.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := StagingError("copy failed").Build()
		derived := base.WithContext("destination", "/srv")

		require.NotContains(t, base.Context(), "destination")
		require.Equal(t, "/srv", derived.Context()["destination"])
	})
}

func TestTaxonomySentinels(t *testing.T) {
	cause := stderrors.New("EACCES")

	tests := []struct {
		name     string
		err      error
		sentinel error
		category ErrorCategory
	}{
		{"BackendNotDetected", BackendNotDetected("none").Build(), ErrBackendNotDetected, CategoryBackend},
		{"UnsupportedBackend", UnsupportedBackend("no webpack").Build(), ErrUnsupportedBackend, CategoryBackend},
		{"InvalidConfig", InvalidConfig("no output").WithCause(cause).Build(), ErrInvalidConfig, CategoryConfig},
		{"EngineFailure", EngineFailure("panic").WithCause(cause).Build(), ErrBuildEngineFailure, CategoryEngine},
		{"StagingError", StagingError("copy").WithCause(cause).Build(), ErrStagingFailure, CategoryStaging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.err, tt.sentinel)
			require.Equal(t, tt.category, GetCategory(tt.err))
		})
	}

	t.Run("cause stays reachable", func(t *testing.T) {
		err := StagingError("copy").WithCause(cause).Build()
		require.ErrorIs(t, err, cause)
		require.ErrorIs(t, err, ErrStagingFailure)
		require.NotErrorIs(t, err, ErrBuildEngineFailure)
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := stderrors.New("original error")
		err := WrapError(originalErr, CategoryFileSystem, "read failure").
			WithContext("path", "/tmp/x").
			Build()

		require.Equal(t, CategoryFileSystem, err.Category())
		require.Equal(t, SeverityError, err.Severity())
		require.Equal(t, RetryNever, err.RetryStrategy())
		require.ErrorIs(t, err, originalErr)

		require.Equal(t, RetryUserAction, InvalidConfig("no output").Build().RetryStrategy())
	})

	t.Run("Equality on category and message", func(t *testing.T) {
		a := InvalidConfig("no output").Build()
		b := InvalidConfig("no output").WithContext("x", 1).Build()
		require.ErrorIs(t, a, b)
		require.NotErrorIs(t, a, InvalidConfig("other").Build())
	})
}
