// Package pstate implements PipelineState: a scoped, metadata-backed
// handle to exactly one PipelineExecution and its OrchestratorContext.
//
// The upstream source acquires this as a language-native "enter/exit"
// context manager so that any mutation performed inside the block is
// flushed back to the metadata store on exit. Per spec.md §9 this is
// re-architected as an explicit Commit function returned alongside the
// state, intended to be used with defer:
//
//	state, commit, err := pstate.Load(store, pipelineUID)
//	if err != nil { return err }
//	defer func() { _ = commit() }()
//	state.InitiateStop()
package pstate

import (
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/status"
)

// Commit flushes mutations made on a PipelineState back to the metadata
// store. It writes the context first, then the execution, so a crash
// between the two writes leaves a context pointing at a still-valid (if
// stale) execution rather than a dangling context. It is safe to call more
// than once.
type Commit func() error

// PipelineState is a scoped, lock-held, metadata-backed view of one
// pipeline's orchestration state. Two PipelineStates for the same pipeline
// must never coexist; that invariant is enforced by the caller's global
// lock (see internal/orchestration/ops), not by this package.
type PipelineState struct {
	store     metadata.MetadataStore
	context   metadata.OrchestratorContext
	execution metadata.PipelineExecution
	pipeline  *ir.PipelineIR
}

// New creates a fresh PipelineState for pipeline. It fails with
// ALREADY_EXISTS if an active PipelineExecution already exists for this
// pipeline id. On success it inserts an OrchestratorContext if one is not
// already present, inserts a PipelineExecution with LastKnownState = NEW,
// and stores the serialized IR as an execution property.
func New(store metadata.MetadataStore, pipeline *ir.PipelineIR) (*PipelineState, Commit, error) {
	pipelineID := ids.PipelineID(pipeline.ID)

	existing, err := store.GetActiveExecutionForPipeline(pipelineID)
	if err != nil {
		return nil, nil, status.New(status.Unknown, "checking for active execution: %s", err)
	}
	if existing != nil {
		return nil, nil, status.New(status.AlreadyExists,
			"an active PipelineExecution already exists for pipeline %q", pipelineID)
	}

	ctx, err := store.UpsertOrchestratorContext(metadata.OrchestratorContext{PipelineID: pipelineID})
	if err != nil {
		return nil, nil, status.New(status.Unknown, "creating orchestrator context: %s", err)
	}

	irBlob, err := ir.Marshal(pipeline)
	if err != nil {
		return nil, nil, status.New(status.Internal, "serializing pipeline IR: %s", err)
	}

	exec, err := store.UpsertExecution(metadata.PipelineExecution{
		ContextID:      ctx.ID,
		PipelineID:     pipelineID,
		LastKnownState: metadata.StateNew,
		Properties:     metadata.ExecutionProperties{IR: irBlob},
	})
	if err != nil {
		return nil, nil, status.New(status.Unknown, "creating pipeline execution: %s", err)
	}

	ps := &PipelineState{store: store, context: ctx, execution: exec, pipeline: pipeline}
	return ps, ps.commit, nil
}

// Load reopens the latest active PipelineExecution for pipelineID. It
// fails with NOT_FOUND if no active execution exists, even if a stale
// context remains.
func Load(store metadata.MetadataStore, pipelineID ids.PipelineID) (*PipelineState, Commit, error) {
	exec, err := store.GetActiveExecutionForPipeline(pipelineID)
	if err != nil {
		return nil, nil, status.New(status.Unknown, "loading active execution: %s", err)
	}
	if exec == nil {
		return nil, nil, status.New(status.NotFound, "no active PipelineExecution for pipeline %q", pipelineID)
	}

	contexts, err := store.ListOrchestratorContexts()
	if err != nil {
		return nil, nil, status.New(status.Unknown, "listing orchestrator contexts: %s", err)
	}
	var ctx metadata.OrchestratorContext
	found := false
	for _, c := range contexts {
		if c.ID == exec.ContextID {
			ctx = c
			found = true
			break
		}
	}
	if !found {
		return nil, nil, status.New(status.Internal,
			"pipeline execution %q references missing context %q", exec.ID, exec.ContextID)
	}

	return newFromLoaded(store, ctx, *exec)
}

// LoadFromContext is equivalent to Load but given an already-fetched
// context, avoiding a redundant context scan during reconciliation.
func LoadFromContext(store metadata.MetadataStore, ctx metadata.OrchestratorContext) (*PipelineState, Commit, error) {
	exec, err := store.GetExecutionForContext(ctx)
	if err != nil {
		return nil, nil, status.New(status.Unknown, "loading execution for context: %s", err)
	}
	if exec == nil || !exec.LastKnownState.IsActive() {
		return nil, nil, status.New(status.NotFound,
			"no active PipelineExecution for context %q (pipeline %q)", ctx.ID, ctx.PipelineID)
	}
	return newFromLoaded(store, ctx, *exec)
}

func newFromLoaded(store metadata.MetadataStore, ctx metadata.OrchestratorContext, exec metadata.PipelineExecution) (*PipelineState, Commit, error) {
	pipeline, err := ir.Unmarshal(exec.Properties.IR)
	if err != nil {
		return nil, nil, status.New(status.Internal, "deserializing pipeline IR for %q: %s", ctx.PipelineID, err)
	}
	ps := &PipelineState{store: store, context: ctx, execution: exec, pipeline: pipeline}
	return ps, ps.commit, nil
}

// commit writes the context, then the execution, back to the metadata
// store. Context writes are idempotent inserts (contexts never mutate
// after creation) so this really only ever flushes the execution.
func (ps *PipelineState) commit() error {
	if _, err := ps.store.UpsertOrchestratorContext(ps.context); err != nil {
		return status.New(status.Unknown, "committing orchestrator context: %s", err)
	}
	exec, err := ps.store.UpsertExecution(ps.execution)
	if err != nil {
		return status.New(status.Unknown, "committing pipeline execution: %s", err)
	}
	ps.execution = exec
	return nil
}

// InitiateStop sets the pipeline-wide stop_initiated flag. Idempotent.
func (ps *PipelineState) InitiateStop() {
	ps.execution.Properties.StopInitiated = true
}

// IsStopInitiated reads the pipeline-wide stop flag.
func (ps *PipelineState) IsStopInitiated() bool {
	return ps.execution.Properties.StopInitiated
}

// InitiateNodeStart clears the per-node stop flag for nodeUID. Idempotent.
func (ps *PipelineState) InitiateNodeStart(nodeUID ids.NodeUID) {
	if ps.execution.Properties.NodeStopInitiated == nil {
		return
	}
	delete(ps.execution.Properties.NodeStopInitiated, string(nodeUID.NodeID))
}

// InitiateNodeStop sets the per-node stop flag for nodeUID. Idempotent.
// Must be called only for nodes present in the IR; unknown nodes yield
// INTERNAL.
func (ps *PipelineState) InitiateNodeStop(nodeUID ids.NodeUID) error {
	if _, ok := ps.pipeline.Node(string(nodeUID.NodeID)); !ok {
		return status.New(status.Internal, "node %q is not part of pipeline %q", nodeUID.NodeID, nodeUID.PipelineID)
	}
	if ps.execution.Properties.NodeStopInitiated == nil {
		ps.execution.Properties.NodeStopInitiated = make(map[string]bool)
	}
	ps.execution.Properties.NodeStopInitiated[string(nodeUID.NodeID)] = true
	return nil
}

// IsNodeStopInitiated reads the per-node stop flag.
func (ps *PipelineState) IsNodeStopInitiated(nodeUID ids.NodeUID) bool {
	return ps.execution.Properties.NodeStopInitiated[string(nodeUID.NodeID)]
}

// Pipeline returns the IR this state was constructed or loaded with.
func (ps *PipelineState) Pipeline() *ir.PipelineIR { return ps.pipeline }

// Execution returns the current in-memory PipelineExecution snapshot.
func (ps *PipelineState) Execution() metadata.PipelineExecution { return ps.execution }

// Context returns the OrchestratorContext this state belongs to.
func (ps *PipelineState) Context() metadata.OrchestratorContext { return ps.context }

// PipelineUID returns the pipeline id this state governs.
func (ps *PipelineState) PipelineUID() ids.PipelineID { return ps.context.PipelineID }

// SetExecutionState transitions the in-memory execution state; the change
// is flushed on the next Commit call.
func (ps *PipelineState) SetExecutionState(s metadata.ExecutionState) {
	ps.execution.LastKnownState = s
}
