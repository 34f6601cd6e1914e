package taskgen

import (
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
)

// AsyncGenerator drives a continuous, long-running graph: a feasible node
// fires whenever its resolved inputs have changed since its last
// successful execution. Nodes whose stop flag is currently set are never
// emitted as forward-progress tasks here; their cancellation (if any live
// work remains) is handled separately by the reconciliation tick.
type AsyncGenerator struct {
	Params
	StopInitiatedNodes map[string]bool
}

// NewAsyncGenerator constructs an ASYNC-mode generator.
func NewAsyncGenerator(p Params, stopInitiatedNodes map[string]bool) *AsyncGenerator {
	if stopInitiatedNodes == nil {
		stopInitiatedNodes = map[string]bool{}
	}
	return &AsyncGenerator{Params: p, StopInitiatedNodes: stopInitiatedNodes}
}

func (g *AsyncGenerator) Generate() ([]task.Task, error) {
	var tasks []task.Task

	for _, node := range g.Pipeline.Nodes {
		if !node.Feasible {
			continue
		}
		if g.StopInitiatedNodes[node.ID] {
			continue
		}

		uid := nodeUID(g.Pipeline, node.ID)

		active, err := hasActiveExecution(g.Store, uid)
		if err != nil {
			return nil, err
		}
		if active {
			continue
		}

		changed, err := g.inputsChanged(uid, node.Dependencies)
		if err != nil {
			return nil, err
		}
		if !changed {
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

	return tasks, nil
}

// inputsChanged reports whether uid's resolved inputs have changed since
// its last successful execution: any upstream dependency completing after
// that point counts as a change, and a dependency-free node is eligible
// until its first execution completes.
func (g *AsyncGenerator) inputsChanged(uid ids.NodeUID, deps []string) (bool, error) {
	lastSuccess, err := lastSuccessTime(g.Store, uid)
	if err != nil {
		return false, err
	}

	if len(deps) == 0 {
		return lastSuccess.IsZero(), nil
	}

	for _, dep := range deps {
		depUID := nodeUID(g.Pipeline, dep)
		depSuccess, err := lastSuccessTime(g.Store, depUID)
		if err != nil {
			return false, err
		}
		if depSuccess.IsZero() {
			continue
		}
		if depSuccess.After(lastSuccess) {
			return true, nil
		}
	}
	return false, nil
}
