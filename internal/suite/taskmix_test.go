package suite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTaskMixRejectsZeroWeight(t *testing.T) {
	_, err := NewTaskMix(map[string]uint32{"A": 1, "B": 0})
	require.Error(t, err)
}

func TestNewTaskMixRejectsEmpty(t *testing.T) {
	_, err := NewTaskMix(map[string]uint32{})
	require.Error(t, err)
}

func TestTaskMixSelectEmpiricalRatioWithinTolerance(t *testing.T) {
	mix, err := NewTaskMix(map[string]uint32{"A": 1, "B": 1})
	require.NoError(t, err)

	const trials = 10_000
	var countA int
	for i := 0; i < trials; i++ {
		if mix.Select() == "A" {
			countA++
		}
	}

	ratio := float64(countA) / float64(trials)
	require.InDelta(t, 0.5, ratio, 0.05)
}

func TestTaskMixSelectOnlyReturnsKnownTypes(t *testing.T) {
	mix, err := NewTaskMix(map[string]uint32{"A": 9, "B": 1})
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		selected := mix.Select()
		require.Contains(t, []string{"A", "B"}, selected)
	}
}

func TestTaskMixTaskTypesReturnsAllConfiguredNames(t *testing.T) {
	mix, err := NewTaskMix(map[string]uint32{"A": 1, "B": 2, "C": 3})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"A", "B", "C"}, mix.TaskTypes())
}
