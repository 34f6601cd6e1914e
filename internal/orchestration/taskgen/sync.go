package taskgen

import (
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
)

// SyncGenerator drives a finite DAG run to completion: a node becomes
// eligible once every upstream node has a COMPLETE execution. It
// terminates (reports no tasks) once every node is complete.
type SyncGenerator struct {
	Params
}

// NewSyncGenerator constructs a SYNC-mode generator.
func NewSyncGenerator(p Params) *SyncGenerator {
	return &SyncGenerator{Params: p}
}

func (g *SyncGenerator) Generate() ([]task.Task, error) {
	var tasks []task.Task
	allComplete := true

	for _, node := range g.Pipeline.Nodes {
		uid := nodeUID(g.Pipeline, node.ID)

		complete, err := isComplete(g.Store, uid)
		if err != nil {
			return nil, err
		}
		if complete {
			continue
		}
		allComplete = false

		active, err := hasActiveExecution(g.Store, uid)
		if err != nil {
			return nil, err
		}
		if active {
			continue
		}

		eligible, err := g.dependenciesComplete(node.Dependencies)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}

		taskID := ids.ExecNodeTaskID(uid, "")
		if g.TaskInQueue(taskID) {
			continue
		}

		if err := dispatchNodeExecution(g.Store, uid); err != nil {
			return nil, err
		}
		tasks = append(tasks, task.ExecNodeTask{Node: uid})
	}

	if allComplete {
		return nil, nil
	}
	return tasks, nil
}

func (g *SyncGenerator) dependenciesComplete(deps []string) (bool, error) {
	for _, dep := range deps {
		complete, err := isComplete(g.Store, nodeUID(g.Pipeline, dep))
		if err != nil {
			return false, err
		}
		if !complete {
			return false, nil
		}
	}
	return true, nil
}
