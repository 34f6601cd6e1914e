// Package task defines the tagged Task variants placed on the task queue.
package task

import "github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"

// Task is implemented by every task variant. ID returns the task's
// deterministic queue id.
type Task interface {
	ID() string
	NodeUID() ids.NodeUID
}

// ExecNodeTask asks the executor to run, or gracefully cancel, a node.
type ExecNodeTask struct {
	Node        ids.NodeUID
	RunID       string
	IsCancelled bool
}

func (t ExecNodeTask) ID() string           { return ids.ExecNodeTaskID(t.Node, t.RunID) }
func (t ExecNodeTask) NodeUID() ids.NodeUID { return t.Node }

// CancelNodeTask asks the queue to drop or cancel a pending ExecNodeTask.
type CancelNodeTask struct {
	Node  ids.NodeUID
	RunID string
}

func (t CancelNodeTask) ID() string           { return ids.CancelNodeTaskID(t.Node, t.RunID) }
func (t CancelNodeTask) NodeUID() ids.NodeUID { return t.Node }
