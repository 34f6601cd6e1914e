// Package api exposes the small operator HTTP surface around the
// orchestration core: health, a pipeline census (debug dump), and the
// lifecycle entry points, in the teacher's own
// internal/cognitive/api.CognitiveHandler style (a handler struct wrapping
// the domain engine, RegisterRoutes mounting it on a chi.Router).
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ir"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ops"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/pstate"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/status"
	"github.com/go-chi/chi/v5"
)

// OrchestrationHandler adapts the orchestration core to HTTP.
type OrchestrationHandler struct {
	orchestrator *ops.Orchestrator
	store        metadata.MetadataStore
}

// NewOrchestrationHandler constructs a handler around an Orchestrator and
// its backing metadata store (needed for the read-only census endpoint,
// which has no orchestrator-level equivalent since it never mutates
// state).
func NewOrchestrationHandler(o *ops.Orchestrator, store metadata.MetadataStore) *OrchestrationHandler {
	return &OrchestrationHandler{orchestrator: o, store: store}
}

// RegisterRoutes mounts the operator surface on r.
func (h *OrchestrationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/healthz", h.Healthz)
	r.Route("/api/pipelines", func(r chi.Router) {
		r.Get("/", h.ListPipelines)
		r.Post("/", h.StartPipeline)
		r.Post("/{pipelineID}/stop", h.StopPipeline)
		r.Post("/{pipelineID}/nodes/{nodeID}/stop", h.StopNode)
		r.Post("/{pipelineID}/nodes/{nodeID}/start", h.StartNode)
	})
}

// Healthz reports process liveness; it intentionally knows nothing about
// the orchestrator's internal state, matching the teacher's
// health.Handler being independent of the cognitive engine.
func (h *OrchestrationHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startPipelineRequest struct {
	ID    string       `json:"id"`
	Mode  string       `json:"mode"`
	Nodes []nodeDefDTO `json:"nodes"`
}

type nodeDefDTO struct {
	ID           string   `json:"id"`
	Dependencies []string `json:"dependencies,omitempty"`
	Feasible     bool     `json:"feasible"`
}

// StartPipeline initiates a new pipeline run from a JSON pipeline
// definition.
func (h *OrchestrationHandler) StartPipeline(w http.ResponseWriter, r *http.Request) {
	var req startPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pipeline := &ir.PipelineIR{ID: req.ID, ModeName: req.Mode}
	for _, n := range req.Nodes {
		pipeline.Nodes = append(pipeline.Nodes, ir.NodeDef{
			ID:           n.ID,
			Dependencies: n.Dependencies,
			Feasible:     n.Feasible,
		})
	}
	if err := pipeline.NormalizeMode(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ps, err := h.orchestrator.InitiatePipelineStart(pipeline)
	if err != nil {
		writeStatusError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"pipeline_id": ps.PipelineUID(),
		"state":       ps.Execution().LastKnownState.String(),
	})
}

// ListPipelines dumps the current pipeline census: every orchestrator
// context paired with its execution's last known state. This is the
// "debug-dump" ambient surface from SPEC_FULL.md, not a dashboard: it is
// a flat JSON snapshot, not an aggregated or time-series view.
func (h *OrchestrationHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	contexts, err := pstate.GetOrchestratorContexts(h.store)
	if err != nil {
		writeStatusError(w, err)
		return
	}

	type entry struct {
		PipelineID string `json:"pipeline_id"`
		State      string `json:"state"`
	}
	census := make([]entry, 0, len(contexts))
	for _, c := range contexts {
		exec, err := h.store.GetExecutionForContext(c)
		if err != nil {
			writeStatusError(w, err)
			return
		}
		state := "UNKNOWN"
		if exec != nil {
			state = exec.LastKnownState.String()
		}
		census = append(census, entry{PipelineID: string(c.PipelineID), State: state})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipelines": census,
		"count":     len(census),
	})
}

// StopPipeline initiates a pipeline stop, optionally waiting up to
// ?timeout=<duration> for it to become inactive (0 or absent selects the
// orchestrator's default).
func (h *OrchestrationHandler) StopPipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := ids.PipelineID(chi.URLParam(r, "pipelineID"))
	timeout := parseTimeout(r)

	if err := h.orchestrator.StopPipeline(pipelineID, timeout); err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pipeline_id": string(pipelineID), "state": "stop_initiated"})
}

// StopNode initiates a node stop, optionally waiting as StopPipeline does.
func (h *OrchestrationHandler) StopNode(w http.ResponseWriter, r *http.Request) {
	nodeUID := ids.NodeUID{
		PipelineID: ids.PipelineID(chi.URLParam(r, "pipelineID")),
		NodeID:     ids.NodeID(chi.URLParam(r, "nodeID")),
	}
	timeout := parseTimeout(r)

	if err := h.orchestrator.StopNode(nodeUID, timeout); err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"node_uid": nodeUID.String(), "state": "stop_initiated"})
}

// StartNode clears a node's stop flag, allowing it to resume on the next
// reconciliation tick.
func (h *OrchestrationHandler) StartNode(w http.ResponseWriter, r *http.Request) {
	nodeUID := ids.NodeUID{
		PipelineID: ids.PipelineID(chi.URLParam(r, "pipelineID")),
		NodeID:     ids.NodeID(chi.URLParam(r, "nodeID")),
	}

	if _, err := h.orchestrator.InitiateNodeStart(nodeUID); err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"node_uid": nodeUID.String(), "state": "start_initiated"})
}

func parseTimeout(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeStatusError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatusFor(status.CodeOf(err)), map[string]string{"error": err.Error()})
}

func httpStatusFor(code status.Code) int {
	switch code {
	case status.OK:
		return http.StatusOK
	case status.NotFound:
		return http.StatusNotFound
	case status.AlreadyExists:
		return http.StatusConflict
	case status.FailedPrecondition:
		return http.StatusPreconditionFailed
	case status.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case status.Internal, status.Unknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
