package vuser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vajraedge/internal/ramp"
)

func TestConcurrencyControllerTargetConcurrencyDelegates(t *testing.T) {
	strategy, err := ramp.NewLinear(10, 100, 60)
	require.NoError(t, err)

	c := NewConcurrencyController(strategy, 10, 100, 0)
	require.Equal(t, uint32(55), c.TargetConcurrency(30))
}

func TestConcurrencyControllerShouldThrottle(t *testing.T) {
	strategy, err := ramp.NewLinear(100, 100, 1)
	require.NoError(t, err)

	noLimit := NewConcurrencyController(strategy, 100, 100, 0)
	require.False(t, noLimit.ShouldThrottle(1_000_000))

	limited := NewConcurrencyController(strategy, 100, 100, 500)
	require.False(t, limited.ShouldThrottle(499))
	require.True(t, limited.ShouldThrottle(500))
	require.True(t, limited.ShouldThrottle(501))
}

func TestConcurrencyControllerRampProgress(t *testing.T) {
	strategy, err := ramp.NewLinear(10, 100, 60)
	require.NoError(t, err)

	c := NewConcurrencyController(strategy, 10, 100, 0)
	require.InDelta(t, 0, c.RampProgress(0), 0.01)
	require.InDelta(t, 50, c.RampProgress(30), 0.01)
	require.InDelta(t, 100, c.RampProgress(60), 0.01)
}

func TestConcurrencyControllerRampProgressDegenerateCase(t *testing.T) {
	strategy, err := ramp.NewLinear(50, 50, 1)
	require.NoError(t, err)

	c := NewConcurrencyController(strategy, 50, 50, 0)
	require.Equal(t, float64(100), c.RampProgress(0))
}
