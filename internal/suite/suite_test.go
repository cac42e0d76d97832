package suite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vajraedge/internal/types"
)

func TestTestSuiteValidateRejectsEmpty(t *testing.T) {
	s := TestSuite{SuiteID: "s1"}
	require.Error(t, s.Validate())
}

func TestTestSuiteValidateRejectsDuplicateScenarioIDs(t *testing.T) {
	s := TestSuite{
		SuiteID: "s1",
		Scenarios: []TestScenario{
			{ScenarioID: "sc1"},
			{ScenarioID: "sc1"},
		},
	}
	require.Error(t, s.Validate())
}

func TestTestSuiteValidatePassesForDistinctScenarios(t *testing.T) {
	s := TestSuite{
		SuiteID: "s1",
		Scenarios: []TestScenario{
			{ScenarioID: "sc1"},
			{ScenarioID: "sc2"},
		},
	}
	require.NoError(t, s.Validate())
}

func TestWorstStatusPrefersFailedOverStoppedOverCompleted(t *testing.T) {
	require.Equal(t, types.StatusFailed, worstStatus(types.StatusCompleted, types.StatusFailed))
	require.Equal(t, types.StatusFailed, worstStatus(types.StatusStopped, types.StatusFailed))
	require.Equal(t, types.StatusStopped, worstStatus(types.StatusCompleted, types.StatusStopped))
	require.Equal(t, types.StatusCompleted, worstStatus(types.StatusCompleted, types.StatusCompleted))
}

