package metadata

import (
	"sort"
	"sync"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/google/uuid"
)

// MemStore is a mutex-guarded, map-backed MetadataStore, in the teacher's
// AtomSpace idiom (plain maps behind a single RWMutex rather than the
// channel-worker dispatch the teacher also demonstrates, since the
// metadata store's read/modify/write sequences need to be serialized by
// the caller's global lock anyway — a second layer of internal
// goroutine-dispatch would only add latency here). It backs unit tests and
// the pipeline_state_test.go-style scenarios in SPEC_FULL.md.
type MemStore struct {
	mu         sync.RWMutex
	contexts   map[string]OrchestratorContext // keyed by pipeline id
	executions map[string]PipelineExecution   // keyed by execution id
	nodeExecs  map[string][]NodeExecution      // keyed by node uid string
}

// NewMemStore constructs an empty in-memory metadata store.
func NewMemStore() *MemStore {
	return &MemStore{
		contexts:   make(map[string]OrchestratorContext),
		executions: make(map[string]PipelineExecution),
		nodeExecs:  make(map[string][]NodeExecution),
	}
}

func (m *MemStore) ListOrchestratorContexts() ([]OrchestratorContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]OrchestratorContext, 0, len(m.contexts))
	for _, c := range m.contexts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PipelineID < out[j].PipelineID })
	return out, nil
}

func (m *MemStore) UpsertOrchestratorContext(c OrchestratorContext) (OrchestratorContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.contexts[string(c.PipelineID)]; ok {
		return existing, nil
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.contexts[string(c.PipelineID)] = c
	return c, nil
}

func (m *MemStore) GetActiveExecutionForPipeline(pipelineID ids.PipelineID) (*PipelineExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.executions {
		if e.PipelineID == pipelineID && e.LastKnownState.IsActive() {
			ec := e
			if err := ec.DecodeProperties(); err != nil {
				return nil, err
			}
			return &ec, nil
		}
	}
	return nil, nil
}

func (m *MemStore) GetExecutionByID(id string) (*PipelineExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.executions[id]
	if !ok {
		return nil, nil
	}
	ec := e
	if err := ec.DecodeProperties(); err != nil {
		return nil, err
	}
	return &ec, nil
}

func (m *MemStore) GetExecutionForContext(c OrchestratorContext) (*PipelineExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *PipelineExecution
	for _, e := range m.executions {
		if e.ContextID == c.ID && (latest == nil || e.CreateTime.After(latest.CreateTime)) {
			ec := e
			latest = &ec
		}
	}
	if latest == nil {
		return nil, nil
	}
	if err := latest.DecodeProperties(); err != nil {
		return nil, err
	}
	return latest, nil
}

func (m *MemStore) UpsertExecution(e PipelineExecution) (PipelineExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := e.EncodeProperties(); err != nil {
		return PipelineExecution{}, err
	}

	now := time.Now()
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreateTime = now
	} else if existing, ok := m.executions[e.ID]; ok {
		e.CreateTime = existing.CreateTime
	}
	e.UpdateTime = now
	m.executions[e.ID] = e
	return e, nil
}

func (m *MemStore) CompareAndSwapExecutionState(id string, from, to ExecutionState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.executions[id]
	if !ok {
		return false, nil
	}
	if e.LastKnownState != from {
		return false, nil
	}
	e.LastKnownState = to
	e.UpdateTime = time.Now()
	m.executions[id] = e
	return true, nil
}

func (m *MemStore) ListNodeExecutions(nodeUID ids.NodeUID) ([]NodeExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	execs := m.nodeExecs[nodeUID.String()]
	out := make([]NodeExecution, len(execs))
	copy(out, execs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.After(out[j].CreateTime) })
	return out, nil
}

func (m *MemStore) CreateNodeExecution(e NodeExecution) (NodeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	if e.CreateTime.IsZero() {
		e.CreateTime = now
	}
	e.UpdateTime = now
	key := e.NodeUID().String()
	m.nodeExecs[key] = append(m.nodeExecs[key], e)
	return e, nil
}

func (m *MemStore) UpdateNodeExecution(e NodeExecution) (NodeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := e.NodeUID().String()
	execs := m.nodeExecs[key]
	for i, existing := range execs {
		if existing.ID == e.ID {
			e.CreateTime = existing.CreateTime
			e.UpdateTime = time.Now()
			execs[i] = e
			return e, nil
		}
	}
	return e, nil
}
