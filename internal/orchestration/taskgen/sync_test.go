package taskgen

import (
	"testing"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/stretchr/testify/require"
)

func twoNodePipeline() *ir.PipelineIR {
	p := &ir.PipelineIR{
		ID: "p1",
		Nodes: []ir.NodeDef{
			{ID: "ExampleGen", Feasible: true},
			{ID: "Trainer", Dependencies: []string{"ExampleGen"}, Feasible: true},
		},
	}
	p.SetMode(ir.SYNC)
	return p
}

func noTaskInQueue(string) bool { return false }

func TestSyncGeneratorOnlyEmitsRootNodeFirst(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := twoNodePipeline()
	gen := NewSyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: noTaskInQueue})

	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, ids.NodeID("ExampleGen"), tasks[0].NodeUID().NodeID)
}

func TestSyncGeneratorEmitsDownstreamOnceUpstreamComplete(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := twoNodePipeline()
	exampleGen := ids.NodeUID{PipelineID: "p1", NodeID: "ExampleGen"}

	_, err := store.CreateNodeExecution(metadata.NodeExecution{
		PipelineID: exampleGen.PipelineID, NodeID: exampleGen.NodeID, LastKnownState: metadata.StateComplete,
	})
	require.NoError(t, err)

	gen := NewSyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: noTaskInQueue})
	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, ids.NodeID("Trainer"), tasks[0].NodeUID().NodeID)
}

func TestSyncGeneratorTerminatesWhenAllComplete(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := twoNodePipeline()

	for _, n := range []string{"ExampleGen", "Trainer"} {
		_, err := store.CreateNodeExecution(metadata.NodeExecution{
			PipelineID: "p1", NodeID: ids.NodeID(n), LastKnownState: metadata.StateComplete,
		})
		require.NoError(t, err)
	}

	gen := NewSyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: noTaskInQueue})
	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestSyncGeneratorNeverRepeatsQueuedTaskID(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := twoNodePipeline()

	alwaysQueued := func(string) bool { return true }
	gen := NewSyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: alwaysQueued})

	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Empty(t, tasks, "generate must never return a task whose id is already queued")
}
