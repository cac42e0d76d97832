package ramp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearBoundaryBehaviours(t *testing.T) {
	l, err := NewLinear(10, 100, 60)
	require.NoError(t, err)

	require.Equal(t, uint32(10), l.TargetConcurrency(0))
	require.Equal(t, uint32(55), l.TargetConcurrency(30))
	require.Equal(t, uint32(100), l.TargetConcurrency(60))
	require.Equal(t, uint32(100), l.TargetConcurrency(90))
	require.Equal(t, uint32(10), l.TargetConcurrency(-1))
}

func TestStepBoundaryBehaviours(t *testing.T) {
	s, err := NewStep(10, 10, 30, 100)
	require.NoError(t, err)

	require.Equal(t, uint32(10), s.TargetConcurrency(0))
	require.Equal(t, uint32(10), s.TargetConcurrency(29))
	require.Equal(t, uint32(20), s.TargetConcurrency(30))
	require.Equal(t, uint32(80), s.TargetConcurrency(210))
	require.Equal(t, uint32(100), s.TargetConcurrency(1_000_000))
}

func TestNewLinearRejectsInvalidConfiguration(t *testing.T) {
	_, err := NewLinear(0, 100, 60)
	require.Error(t, err)

	_, err = NewLinear(100, 10, 60)
	require.Error(t, err)

	_, err = NewLinear(10, 100, 0)
	require.Error(t, err)
}

func TestNewStepRejectsInvalidConfiguration(t *testing.T) {
	_, err := NewStep(10, 0, 30, 100)
	require.Error(t, err)

	_, err = NewStep(10, 10, 0, 100)
	require.Error(t, err)

	_, err = NewStep(10, 10, 30, 5)
	require.Error(t, err)
}

func TestStrategyInterfaceSatisfiedByBothRampTypes(t *testing.T) {
	var strategies []Strategy

	l, err := NewLinear(1, 2, 1)
	require.NoError(t, err)
	strategies = append(strategies, l)

	s, err := NewStep(1, 1, 1, 2)
	require.NoError(t, err)
	strategies = append(strategies, s)

	for _, strat := range strategies {
		require.NotZero(t, strat.TargetConcurrency(0))
	}
}
