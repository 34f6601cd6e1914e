package pstate

import (
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
)

// GetOrchestratorContexts enumerates all contexts in the metadata store.
// Kept as a thin wrapper, mirroring the upstream's
// pstate.get_orchestrator_contexts module-level helper, so callers in
// internal/orchestration/ops don't reach into the metadata package
// directly for this one read.
func GetOrchestratorContexts(store metadata.MetadataStore) ([]metadata.OrchestratorContext, error) {
	return store.ListOrchestratorContexts()
}

// AllNodeUIDs returns the NodeUID of every node declared in pipeline, in
// IR order, mirroring the upstream's pstate.get_all_pipeline_nodes.
func AllNodeUIDs(pipeline *ir.PipelineIR) []ids.NodeUID {
	out := make([]ids.NodeUID, 0, len(pipeline.Nodes))
	for _, n := range pipeline.Nodes {
		out = append(out, ids.NodeUID{PipelineID: ids.PipelineID(pipeline.ID), NodeID: ids.NodeID(n.ID)})
	}
	return out
}
