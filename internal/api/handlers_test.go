package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/metadata"
	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ops"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (chi.Router, *metadata.MemStore) {
	store := metadata.NewMemStore()
	o := ops.New(store, nil)
	h := NewOrchestrationHandler(o, store)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, store
}

func startPipelineBody(t *testing.T, id string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(startPipelineRequest{
		ID:   id,
		Mode: "ASYNC",
		Nodes: []nodeDefDTO{
			{ID: "Trainer", Feasible: true},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHealthzReturnsOK(t *testing.T) {
	r, _ := newTestRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartPipelineThenDuplicateConflicts(t *testing.T) {
	r, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/", startPipelineBody(t, "p1"))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/pipelines/", startPipelineBody(t, "p1"))
	r.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusConflict, rec2.Code)
}

func TestListPipelinesReflectsStartedPipeline(t *testing.T) {
	r, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/", startPipelineBody(t, "p1"))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	listRec := httptest.NewRecorder()
	listReq := httptest.NewRequest(http.MethodGet, "/api/pipelines/", nil)
	r.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var resp struct {
		Pipelines []struct {
			PipelineID string `json:"pipeline_id"`
			State      string `json:"state"`
		} `json:"pipelines"`
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(listRec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "p1", resp.Pipelines[0].PipelineID)
	require.Equal(t, "NEW", resp.Pipelines[0].State)
}

func TestStopNodeThenStartNodeRoundTrip(t *testing.T) {
	r, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/", startPipelineBody(t, "p1"))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	stopRec := httptest.NewRecorder()
	stopReq := httptest.NewRequest(http.MethodPost, "/api/pipelines/p1/nodes/Trainer/stop", nil)
	r.ServeHTTP(stopRec, stopReq)
	require.Equal(t, http.StatusOK, stopRec.Code)

	startRec := httptest.NewRecorder()
	startReq := httptest.NewRequest(http.MethodPost, "/api/pipelines/p1/nodes/Trainer/start", nil)
	r.ServeHTTP(startRec, startReq)
	require.Equal(t, http.StatusOK, startRec.Code)
}

func TestStopNodeUnknownNodeReturnsInternalError(t *testing.T) {
	r, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/", startPipelineBody(t, "p1"))
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	stopRec := httptest.NewRecorder()
	stopReq := httptest.NewRequest(http.MethodPost, "/api/pipelines/p1/nodes/NoSuchNode/stop", nil)
	r.ServeHTTP(stopRec, stopReq)
	require.Equal(t, http.StatusInternalServerError, stopRec.Code)
}
