package taskqueue

import (
	"testing"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndContains(t *testing.T) {
	q := NewInMemory()
	nodeUID := ids.NodeUID{PipelineID: "p1", NodeID: "Trainer"}
	tk := task.ExecNodeTask{Node: nodeUID}

	require.False(t, q.ContainsTaskID(tk.ID()))
	q.Enqueue(tk)
	require.True(t, q.ContainsTaskID(tk.ID()))
	require.Equal(t, 1, q.Len())
}

func TestDrainPreservesOrder(t *testing.T) {
	q := NewInMemory()
	a := task.ExecNodeTask{Node: ids.NodeUID{PipelineID: "p1", NodeID: "A"}}
	b := task.ExecNodeTask{Node: ids.NodeUID{PipelineID: "p1", NodeID: "B"}}

	q.Enqueue(a)
	q.Enqueue(b)

	drained := q.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, a.ID(), drained[0].ID())
	require.Equal(t, b.ID(), drained[1].ID())
	require.Equal(t, 0, q.Len())
}

func TestRemove(t *testing.T) {
	q := NewInMemory()
	nodeUID := ids.NodeUID{PipelineID: "p1", NodeID: "Trainer"}
	tk := task.ExecNodeTask{Node: nodeUID}

	q.Enqueue(tk)
	q.Remove(tk.ID())

	require.False(t, q.ContainsTaskID(tk.ID()))
	require.Equal(t, 0, q.Len())
}
