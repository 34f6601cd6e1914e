// Package ops exposes the pipeline lifecycle entry points and the
// reconciliation tick: the control loop that reconciles persisted
// pipeline/node state against in-flight execution and the task queue. It
// is the hard part of this repository (spec.md §1) and is modeled closely
// on the upstream tfx.orchestration.experimental.core.pipeline_ops module.
package ops

import (
	"sync"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/pstate"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/status"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/task"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/taskgen"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/taskqueue"
	"go.uber.org/zap"
)

// DefaultWaitForInactivationTimeout matches the upstream's 120-second
// default for stop_pipeline/stop_node.
const DefaultWaitForInactivationTimeout = 120 * time.Second

// Orchestrator holds the single, process-wide lock that serializes every
// orchestration-relevant mutation and the entire reconciliation tick (see
// spec.md §5). The upstream applies this as a decorator
// (`_pipeline_ops_lock`) around both public entry points and helpers that
// call each other; in Go, rather than building a reentrant mutex for a
// case that never actually recurses, each public method below takes the
// lock exactly once and every internal helper it calls is lock-free,
// called only while the lock is already held. See DESIGN.md.
type Orchestrator struct {
	store  metadata.MetadataStore
	logger *zap.Logger

	mu sync.Mutex
}

// New constructs an Orchestrator around a metadata store. logger may be
// nil, in which case a no-op logger is used.
func New(store metadata.MetadataStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{store: store, logger: logger}
}

// InitiatePipelineStart acquires PipelineState.New(ir) under the global
// lock and returns the resulting state. ALREADY_EXISTS propagates
// unchanged.
func (o *Orchestrator) InitiatePipelineStart(pipeline *ir.PipelineIR) (*pstate.PipelineState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ps, commit, err := pstate.New(o.store, pipeline)
	if err != nil {
		return nil, o.fail("InitiatePipelineStart", err)
	}
	if err := commit(); err != nil {
		return nil, o.fail("InitiatePipelineStart", err)
	}
	return ps, nil
}

// StopPipeline initiates a pipeline stop and waits, outside the lock, for
// its execution to become inactive.
func (o *Orchestrator) StopPipeline(pipelineID ids.PipelineID, timeout time.Duration) error {
	execID, err := o.initiateStopLocked(pipelineID)
	if err != nil {
		return o.fail("StopPipeline", err)
	}
	return o.fail("StopPipeline", o.waitForExecutionInactivation(execID, timeout))
}

func (o *Orchestrator) initiateStopLocked(pipelineID ids.PipelineID) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ps, commit, err := pstate.Load(o.store, pipelineID)
	if err != nil {
		return "", err
	}
	ps.InitiateStop()
	if err := commit(); err != nil {
		return "", err
	}
	return ps.Execution().ID, nil
}

// InitiateNodeStart loads the parent pipeline state and clears the
// per-node stop flag for nodeUID.
func (o *Orchestrator) InitiateNodeStart(nodeUID ids.NodeUID) (*pstate.PipelineState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ps, commit, err := pstate.Load(o.store, nodeUID.PipelineID)
	if err != nil {
		return nil, o.fail("InitiateNodeStart", err)
	}
	ps.InitiateNodeStart(nodeUID)
	if err := commit(); err != nil {
		return nil, o.fail("InitiateNodeStart", err)
	}
	return ps, nil
}

// StopNode initiates a node stop and, if exactly one active execution for
// that node exists, waits outside the lock for it to become inactive.
func (o *Orchestrator) StopNode(nodeUID ids.NodeUID, timeout time.Duration) error {
	activeExecID, err := o.initiateNodeStopLocked(nodeUID)
	if err != nil {
		return o.fail("StopNode", err)
	}
	if activeExecID == "" {
		return nil
	}
	return o.fail("StopNode", o.waitForNodeExecutionInactivation(nodeUID, activeExecID, timeout))
}

func (o *Orchestrator) initiateNodeStopLocked(nodeUID ids.NodeUID) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ps, commit, err := pstate.Load(o.store, nodeUID.PipelineID)
	if err != nil {
		return "", err
	}
	if _, ok := ps.Pipeline().Node(string(nodeUID.NodeID)); !ok {
		return "", status.New(status.Internal, "stop_node failed, unable to find node to stop: %s", nodeUID)
	}
	if err := ps.InitiateNodeStop(nodeUID); err != nil {
		return "", err
	}
	if err := commit(); err != nil {
		return "", err
	}

	executions, err := o.store.ListNodeExecutions(nodeUID)
	if err != nil {
		return "", status.New(status.Unknown, "listing node executions for %s: %s", nodeUID, err)
	}
	var active []metadata.NodeExecution
	for _, e := range executions {
		if e.LastKnownState.IsActive() {
			active = append(active, e)
		}
	}
	if len(active) == 0 {
		return "", nil
	}
	if len(active) > 1 {
		return "", status.New(status.Internal, "unexpected multiple active executions for node: %s", nodeUID)
	}
	return active[0].ID, nil
}

// GenerateTasks is the reconciliation tick: it scans metadata, classifies
// every pipeline, drives cancellation for stop-initiated pipelines and
// nodes, and invokes a task generator per active pipeline, enqueuing
// results onto taskQueue. It runs entirely under the global lock.
func (o *Orchestrator) GenerateTasks(taskQueue taskqueue.TaskQueue) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.fail("GenerateTasks", o.generateTasksLocked(taskQueue))
}

func (o *Orchestrator) generateTasksLocked(tq taskqueue.TaskQueue) error {
	states, err := o.scanPipelineStates()
	if err != nil {
		return err
	}
	if len(states) == 0 {
		o.logger.Info("no active pipelines to run")
		return nil
	}

	var stopInitiated, active []*pstate.PipelineState
	for _, ps := range states {
		switch {
		case ps.IsStopInitiated():
			stopInitiated = append(stopInitiated, ps)
		case ps.Execution().LastKnownState.IsActive():
			active = append(active, ps)
		default:
			return status.New(status.Internal,
				"pipeline %q is neither active nor stop-initiated", ps.PipelineUID())
		}
	}

	if len(stopInitiated) > 0 {
		if err := o.processStopInitiatedPipelines(tq, stopInitiated); err != nil {
			return err
		}
	}
	if len(active) > 0 {
		if err := o.processActivePipelines(tq, active); err != nil {
			return err
		}
	}
	return nil
}

// scanPipelineStates enumerates all OrchestratorContexts and loads the
// PipelineState for each. Contexts whose load fails with NOT_FOUND are
// stale and skipped; any other failure aborts the tick. Whether transient
// store errors should instead be retried within a tick is an open
// question spec.md explicitly declines to resolve (see DESIGN.md) — this
// implementation does not retry, matching the upstream.
func (o *Orchestrator) scanPipelineStates() ([]*pstate.PipelineState, error) {
	contexts, err := pstate.GetOrchestratorContexts(o.store)
	if err != nil {
		return nil, status.New(status.Unknown, "listing orchestrator contexts: %s", err)
	}

	var out []*pstate.PipelineState
	for _, c := range contexts {
		ps, _, err := pstate.LoadFromContext(o.store, c)
		if err != nil {
			if status.Is(err, status.NotFound) {
				o.logger.Info("ignoring stale orchestrator context", zap.String("pipeline_id", string(c.PipelineID)))
				continue
			}
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

func (o *Orchestrator) processStopInitiatedPipelines(tq taskqueue.TaskQueue, states []*pstate.PipelineState) error {
	for _, ps := range states {
		hasActiveWork := false
		for _, nodeUID := range pstate.AllNodeUIDs(ps.Pipeline()) {
			node, _ := ps.Pipeline().Node(string(nodeUID.NodeID))
			enqueued, err := o.maybeEnqueueCancellationTask(tq, node, nodeUID)
			if err != nil {
				return err
			}
			if enqueued {
				hasActiveWork = true
			}
		}
		if !hasActiveWork {
			ps.SetExecutionState(metadata.StateCanceled)
			if _, err := o.store.UpsertExecution(ps.Execution()); err != nil {
				return status.New(status.Unknown, "marking pipeline %q canceled: %s", ps.PipelineUID(), err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) processActivePipelines(tq taskqueue.TaskQueue, states []*pstate.PipelineState) error {
	for _, ps := range states {
		if ps.Execution().LastKnownState == metadata.StateNew {
			ps.SetExecutionState(metadata.StateRunning)
			if _, err := o.store.UpsertExecution(ps.Execution()); err != nil {
				return status.New(status.Unknown, "transitioning pipeline %q to RUNNING: %s", ps.PipelineUID(), err)
			}
		}

		stopInitiatedNodes := map[string]bool{}
		for _, nodeUID := range pstate.AllNodeUIDs(ps.Pipeline()) {
			if ps.IsNodeStopInitiated(nodeUID) {
				stopInitiatedNodes[string(nodeUID.NodeID)] = true
				node, _ := ps.Pipeline().Node(string(nodeUID.NodeID))
				if _, err := o.maybeEnqueueCancellationTask(tq, node, nodeUID); err != nil {
					return err
				}
			}
		}

		generator, err := o.generatorFor(ps, tq, stopInitiatedNodes)
		if err != nil {
			return err
		}
		tasks, err := generator.Generate()
		if err != nil {
			return status.New(status.Unknown, "generating tasks for pipeline %q: %s", ps.PipelineUID(), err)
		}
		for _, t := range tasks {
			tq.Enqueue(t)
		}
	}
	return nil
}

func (o *Orchestrator) generatorFor(ps *pstate.PipelineState, tq taskqueue.TaskQueue, stopInitiatedNodes map[string]bool) (taskgen.Generator, error) {
	params := taskgen.Params{Store: o.store, Pipeline: ps.Pipeline(), TaskInQueue: tq.ContainsTaskID}
	switch ps.Pipeline().Mode {
	case ir.SYNC:
		return taskgen.NewSyncGenerator(params), nil
	case ir.ASYNC:
		return taskgen.NewAsyncGenerator(params, stopInitiatedNodes), nil
	default:
		return nil, status.New(status.FailedPrecondition,
			"only SYNC and ASYNC pipeline execution modes are supported; found %q", ps.Pipeline().Mode)
	}
}

// maybeEnqueueCancellationTask decides how to stop a node whose stop has
// been requested, with restart resilience: if the queue already holds its
// ExecNodeTask, a CancelNodeTask is enqueued; otherwise, if metadata shows
// an execution still active (e.g. after an orchestrator restart emptied
// the in-memory queue), a synthetic ExecNodeTask{IsCancelled:true} is
// enqueued so the executor gets a chance to finalize gracefully. It
// returns whether any live work was found, the one caller-visible signal
// the stop-initiated pipeline sweep needs.
func (o *Orchestrator) maybeEnqueueCancellationTask(tq taskqueue.TaskQueue, node ir.NodeDef, nodeUID ids.NodeUID) (bool, error) {
	if !node.Feasible {
		return false, nil
	}

	execTaskID := ids.ExecNodeTaskID(nodeUID, "")
	if tq.ContainsTaskID(execTaskID) {
		tq.Enqueue(task.CancelNodeTask{Node: nodeUID})
		return true, nil
	}

	executions, err := o.store.ListNodeExecutions(nodeUID)
	if err != nil {
		return false, status.New(status.Unknown, "listing node executions for %s: %s", nodeUID, err)
	}
	for _, e := range executions {
		if e.LastKnownState.IsActive() {
			tq.Enqueue(task.ExecNodeTask{Node: nodeUID, IsCancelled: true})
			return true, nil
		}
	}
	return false, nil
}

// waitForExecutionInactivation polls the metadata store at
// min(10s, timeout/4) intervals until the PipelineExecution becomes
// inactive or the deadline passes.
func (o *Orchestrator) waitForExecutionInactivation(execID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWaitForInactivationTimeout
	}
	interval := pollInterval(timeout)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		exec, err := o.store.GetExecutionByID(execID)
		if err != nil {
			return status.New(status.Unknown, "polling execution %s: %s", execID, err)
		}
		if exec == nil || !exec.LastKnownState.IsActive() {
			return nil
		}
		sleepUntil(deadline, interval)
	}
	return status.New(status.DeadlineExceeded, "timed out (%s) waiting for execution %s inactivation", timeout, execID)
}

// waitForNodeExecutionInactivation polls a specific NodeExecution until it
// becomes inactive or the deadline passes.
func (o *Orchestrator) waitForNodeExecutionInactivation(nodeUID ids.NodeUID, execID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultWaitForInactivationTimeout
	}
	interval := pollInterval(timeout)
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		executions, err := o.store.ListNodeExecutions(nodeUID)
		if err != nil {
			return status.New(status.Unknown, "polling node execution %s: %s", execID, err)
		}
		found := false
		for _, e := range executions {
			if e.ID == execID {
				found = true
				if !e.LastKnownState.IsActive() {
					return nil
				}
			}
		}
		if !found {
			return nil
		}
		sleepUntil(deadline, interval)
	}
	return status.New(status.DeadlineExceeded, "timed out (%s) waiting for node execution %s inactivation", timeout, execID)
}

func pollInterval(timeout time.Duration) time.Duration {
	quarter := timeout / 4
	if quarter < 10*time.Second {
		return quarter
	}
	return 10 * time.Second
}

func sleepUntil(deadline time.Time, interval time.Duration) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}
	if interval > remaining {
		interval = remaining
	}
	time.Sleep(interval)
}

// fail logs and re-packages err as a structured status error, unless it
// is already one, matching the upstream's _to_status_not_ok_error
// decorator.
func (o *Orchestrator) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	wrapped := status.Wrap(op, err)
	o.logger.Error("orchestration operation failed",
		zap.String("op", op),
		zap.String("code", status.CodeOf(wrapped).String()),
		zap.Error(wrapped))
	return wrapped
}
