package pstate

import (
	"testing"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/status"
	"github.com/stretchr/testify/require"
)

func trainerPipeline() *ir.PipelineIR {
	p := &ir.PipelineIR{ID: "pipeline1", Nodes: []ir.NodeDef{{ID: "Trainer", Feasible: true}}}
	p.SetMode(ir.ASYNC)
	return p
}

// Scenario 1: create and load; after marking the execution COMPLETE
// directly in the store, load fails NOT_FOUND.
func TestCreateAndLoad(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := trainerPipeline()

	created, commit, err := New(store, pipeline)
	require.NoError(t, err)
	require.NoError(t, commit())

	loaded, commit2, err := Load(store, "pipeline1")
	require.NoError(t, err)
	require.NoError(t, commit2())
	require.Equal(t, created.PipelineUID(), loaded.PipelineUID())
	require.Equal(t, "pipeline1", loaded.Pipeline().ID)

	_, err = store.UpsertExecution(metadata.PipelineExecution{
		ID:             loaded.Execution().ID,
		ContextID:      loaded.Execution().ContextID,
		PipelineID:     loaded.Execution().PipelineID,
		LastKnownState: metadata.StateComplete,
		Properties:     loaded.Execution().Properties,
	})
	require.NoError(t, err)

	_, _, err = Load(store, "pipeline1")
	require.Error(t, err)
	require.True(t, status.Is(err, status.NotFound))
}

// Scenario 2: duplicate create fails ALREADY_EXISTS.
func TestDuplicateCreateFails(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := trainerPipeline()

	_, commit, err := New(store, pipeline)
	require.NoError(t, err)
	require.NoError(t, commit())

	_, _, err = New(store, pipeline)
	require.Error(t, err)
	require.True(t, status.Is(err, status.AlreadyExists))
}

// Scenario 3: stop-initiation round-trips across reload.
func TestStopInitiationRoundTrip(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := trainerPipeline()

	ps, commit, err := New(store, pipeline)
	require.NoError(t, err)
	require.False(t, ps.IsStopInitiated())

	ps.InitiateStop()
	require.True(t, ps.IsStopInitiated())
	require.NoError(t, commit())

	reloaded, _, err := Load(store, "pipeline1")
	require.NoError(t, err)
	require.True(t, reloaded.IsStopInitiated())
}

// Scenario 4: node stop/start toggle round-trips across reload.
func TestNodeStopStartToggle(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := trainerPipeline()
	trainer := ids.NodeUID{PipelineID: "pipeline1", NodeID: "Trainer"}

	ps, commit, err := New(store, pipeline)
	require.NoError(t, err)

	require.NoError(t, ps.InitiateNodeStop(trainer))
	require.NoError(t, commit())

	reloaded, commit2, err := Load(store, "pipeline1")
	require.NoError(t, err)
	require.True(t, reloaded.IsNodeStopInitiated(trainer))

	reloaded.InitiateNodeStart(trainer)
	require.NoError(t, commit2())

	final, _, err := Load(store, "pipeline1")
	require.NoError(t, err)
	require.False(t, final.IsNodeStopInitiated(trainer))
}

func TestInitiateNodeStopUnknownNodeIsInternal(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := trainerPipeline()

	ps, _, err := New(store, pipeline)
	require.NoError(t, err)

	err = ps.InitiateNodeStop(ids.NodeUID{PipelineID: "pipeline1", NodeID: "NoSuchNode"})
	require.Error(t, err)
	require.True(t, status.Is(err, status.Internal))
}
