package taskgen

import (
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
)

// latestExecution returns the most recent NodeExecution for nodeUID, or
// nil if the node has never run. Both MetadataStore implementations
// return ListNodeExecutions already ordered most-recent-first.
func latestExecution(store metadata.MetadataStore, nodeUID ids.NodeUID) (*metadata.NodeExecution, error) {
	execs, err := store.ListNodeExecutions(nodeUID)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, nil
	}
	latest := execs[0]
	return &latest, nil
}

// hasActiveExecution reports whether nodeUID currently has an active (NEW
// or RUNNING) execution, enforcing the "at most one active NodeExecution"
// invariant from the generator's side: it never dispatches a second task
// while one is in flight.
func hasActiveExecution(store metadata.MetadataStore, nodeUID ids.NodeUID) (bool, error) {
	latest, err := latestExecution(store, nodeUID)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.LastKnownState.IsActive(), nil
}

// isComplete reports whether nodeUID's most recent execution is COMPLETE.
func isComplete(store metadata.MetadataStore, nodeUID ids.NodeUID) (bool, error) {
	latest, err := latestExecution(store, nodeUID)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.LastKnownState == metadata.StateComplete, nil
}

// lastSuccessTime returns the create time of nodeUID's most recent COMPLETE
// execution, or the zero time if it has never completed.
func lastSuccessTime(store metadata.MetadataStore, nodeUID ids.NodeUID) (time.Time, error) {
	execs, err := store.ListNodeExecutions(nodeUID)
	if err != nil {
		return time.Time{}, err
	}
	for _, e := range execs {
		if e.LastKnownState == metadata.StateComplete {
			return e.CreateTime, nil
		}
	}
	return time.Time{}, nil
}

// dispatchNodeExecution records a new NodeExecution in the NEW state to
// reflect that a task for nodeUID is about to be enqueued.
func dispatchNodeExecution(store metadata.MetadataStore, nodeUID ids.NodeUID) error {
	_, err := store.CreateNodeExecution(metadata.NodeExecution{
		PipelineID:     nodeUID.PipelineID,
		NodeID:         nodeUID.NodeID,
		LastKnownState: metadata.StateNew,
	})
	return err
}

func nodeUID(pipeline *ir.PipelineIR, nodeID string) ids.NodeUID {
	return ids.NodeUID{PipelineID: ids.PipelineID(pipeline.ID), NodeID: ids.NodeID(nodeID)}
}
