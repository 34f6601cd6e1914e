// Package taskgen implements the task-generation contract: turning one
// pipeline's durable state into a batch of tasks to enqueue. Both
// concrete generators are stateless per call; they read the metadata
// store and may create new NodeExecution records to reflect dispatch, but
// never enqueue anything directly and never block on executors — the
// caller (internal/orchestration/ops) drains the returned batch.
package taskgen

import (
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
)

// TaskInQueue reports whether a task with the given id is already queued.
// It is the generator's only view into the task queue; generators never
// hold a TaskQueue reference directly.
type TaskInQueue func(taskID string) bool

// Generator turns a pipeline's current metadata-store state into an
// ordered batch of tasks. For each node it emits zero or one task per
// call.
type Generator interface {
	Generate() ([]task.Task, error)
}

// Params bundles the constructor arguments shared by both generator
// modes.
type Params struct {
	Store       metadata.MetadataStore
	Pipeline    *ir.PipelineIR
	TaskInQueue TaskInQueue
}
