package taskgen

import (
	"testing"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/stretchr/testify/require"
)

func asyncTrainerPipeline() *ir.PipelineIR {
	p := &ir.PipelineIR{ID: "p1", Nodes: []ir.NodeDef{{ID: "Trainer", Feasible: true}}}
	p.SetMode(ir.ASYNC)
	return p
}

func TestAsyncGeneratorFiresSourceNodeOnce(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := asyncTrainerPipeline()

	gen := NewAsyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: noTaskInQueue}, nil)
	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestAsyncGeneratorSkipsStopInitiatedNodes(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := asyncTrainerPipeline()

	gen := NewAsyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: noTaskInQueue},
		map[string]bool{"Trainer": true})
	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestAsyncGeneratorRefiresWhenUpstreamRecompletes(t *testing.T) {
	store := metadata.NewMemStore()
	pipeline := &ir.PipelineIR{
		ID: "p1",
		Nodes: []ir.NodeDef{
			{ID: "Source", Feasible: true},
			{ID: "Trainer", Dependencies: []string{"Source"}, Feasible: true},
		},
	}
	pipeline.SetMode(ir.ASYNC)

	now := time.Now()
	_, err := store.CreateNodeExecution(metadata.NodeExecution{
		PipelineID: "p1", NodeID: "Source", LastKnownState: metadata.StateComplete, CreateTime: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = store.CreateNodeExecution(metadata.NodeExecution{
		PipelineID: "p1", NodeID: "Trainer", LastKnownState: metadata.StateComplete, CreateTime: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	gen := NewAsyncGenerator(Params{Store: store, Pipeline: pipeline, TaskInQueue: noTaskInQueue}, nil)
	tasks, err := gen.Generate()
	require.NoError(t, err)
	require.Empty(t, tasks, "Trainer already ran after Source's last completion")

	// Source re-completes after Trainer's last success: Trainer becomes
	// eligible again.
	_, err = store.CreateNodeExecution(metadata.NodeExecution{
		PipelineID: "p1", NodeID: "Source", LastKnownState: metadata.StateComplete, CreateTime: now,
	})
	require.NoError(t, err)

	tasks, err = gen.Generate()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, ids.NodeID("Trainer"), tasks[0].NodeUID().NodeID)
}
