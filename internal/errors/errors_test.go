package errors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsSetCode(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		code Code
	}{
		{"configuration", Configuration("bad config"), CodeConfiguration},
		{"validation", Validation("bad input"), CodeValidation},
		{"resource", Resource("exhausted"), CodeResource},
		{"lifecycle", Lifecycle("bad transition"), CodeLifecycle},
		{"task execution", TaskExecution("task failed"), CodeTaskExecution},
		{"coordination", Coordination("worker unreachable"), CodeCoordination},
		{"internal", Internal("unreachable state"), CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, tc.err.Code)
		})
	}
}

func TestErrorStringIncludesCauseWhenWrapped(t *testing.T) {
	cause := Internal("socket reset")
	wrapped := Wrap(CodeCoordination, "assignment failed", cause)

	require.Contains(t, wrapped.Error(), "COORDINATION_ERROR")
	require.Contains(t, wrapped.Error(), "assignment failed")
	require.Contains(t, wrapped.Error(), "socket reset")
}

func TestWithDetailAccumulates(t *testing.T) {
	err := Validation("bad config").
		WithDetail("field", "maxConcurrency").
		WithDetail("limit", 50000)

	require.Len(t, err.Details, 2)
	require.Equal(t, "maxConcurrency", err.Details["field"])
	require.Equal(t, 50000, err.Details["limit"])
}

func TestCodeOfAndIs(t *testing.T) {
	err := Resource("too many tests")

	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, CodeResource, code)
	require.True(t, Is(err, CodeResource))
	require.False(t, Is(err, CodeValidation))

	_, ok = CodeOf(require.AnError)
	require.False(t, ok)
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := Internal("dial tcp: connection refused")
	wrapped := Wrap(CodeCoordination, "register failed", cause)

	require.ErrorIs(t, wrapped, cause)
}
