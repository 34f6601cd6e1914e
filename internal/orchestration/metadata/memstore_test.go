package metadata

import (
	"testing"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/stretchr/testify/require"
)

func TestUpsertContextIsInsertOnlyOnce(t *testing.T) {
	store := NewMemStore()

	first, err := store.UpsertOrchestratorContext(OrchestratorContext{PipelineID: "p1"})
	require.NoError(t, err)

	second, err := store.UpsertOrchestratorContext(OrchestratorContext{PipelineID: "p1"})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

func TestActiveExecutionRoundTripsProperties(t *testing.T) {
	store := NewMemStore()

	exec := PipelineExecution{
		PipelineID:     "p1",
		LastKnownState: StateNew,
		Properties:     ExecutionProperties{StopInitiated: false, IR: []byte("id: p1")},
	}
	stored, err := store.UpsertExecution(exec)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	active, err := store.GetActiveExecutionForPipeline("p1")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, []byte("id: p1"), active.Properties.IR)
	require.False(t, active.Properties.StopInitiated)
}

func TestCompareAndSwapExecutionState(t *testing.T) {
	store := NewMemStore()
	stored, err := store.UpsertExecution(PipelineExecution{PipelineID: "p1", LastKnownState: StateNew})
	require.NoError(t, err)

	ok, err := store.CompareAndSwapExecutionState(stored.ID, StateRunning, StateComplete)
	require.NoError(t, err)
	require.False(t, ok, "CAS from wrong expected state must not apply")

	ok, err = store.CompareAndSwapExecutionState(stored.ID, StateNew, StateRunning)
	require.NoError(t, err)
	require.True(t, ok)

	updated, err := store.GetExecutionByID(stored.ID)
	require.NoError(t, err)
	require.Equal(t, StateRunning, updated.LastKnownState)
}

func TestNodeExecutionLifecycle(t *testing.T) {
	store := NewMemStore()
	nodeUID := ids.NodeUID{PipelineID: "p1", NodeID: "Trainer"}

	created, err := store.CreateNodeExecution(NodeExecution{
		PipelineID:     nodeUID.PipelineID,
		NodeID:         nodeUID.NodeID,
		LastKnownState: StateNew,
	})
	require.NoError(t, err)

	execs, err := store.ListNodeExecutions(nodeUID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	require.Equal(t, StateNew, execs[0].LastKnownState)

	created.LastKnownState = StateComplete
	_, err = store.UpdateNodeExecution(created)
	require.NoError(t, err)

	execs, err = store.ListNodeExecutions(nodeUID)
	require.NoError(t, err)
	require.Equal(t, StateComplete, execs[0].LastKnownState)
}
