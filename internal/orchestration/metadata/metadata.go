// Package metadata defines the durable records the orchestration core
// reads and writes (OrchestratorContext, PipelineExecution, NodeExecution)
// and the MetadataStore contract for storing them. The metadata store
// itself (the database behind it) is ground truth and an external
// collaborator; this package defines the adapter interface the core
// depends on, plus a production-shaped gorm/postgres implementation and an
// in-memory implementation used by tests.
package metadata

import (
	"encoding/json"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
)

// ExecutionState is the closed set of lifecycle states shared by
// PipelineExecution and NodeExecution records.
type ExecutionState int

const (
	StateNew ExecutionState = iota
	StateRunning
	StateComplete
	StateCanceled
	StateFailed
)

func (s ExecutionState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateRunning:
		return "RUNNING"
	case StateComplete:
		return "COMPLETE"
	case StateCanceled:
		return "CANCELED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsActive reports whether a state is NEW or RUNNING.
func (s ExecutionState) IsActive() bool {
	return s == StateNew || s == StateRunning
}

// OrchestratorContext is the metadata-store grouping record, one per
// PipelineID. Successive PipelineExecutions of the same pipeline share it;
// the most recently created one is the pipeline's current execution.
type OrchestratorContext struct {
	ID         string `gorm:"primaryKey"`
	PipelineID ids.PipelineID
}

// ExecutionProperties is the structured record carried as a single
// serialized blob property on a PipelineExecution, re-architected from the
// upstream's opaque property bag per spec.md's design note.
type ExecutionProperties struct {
	StopInitiated     bool            `json:"stop_initiated"`
	NodeStopInitiated map[string]bool `json:"node_stop_initiated,omitempty"`
	IR                []byte          `json:"ir"`
}

// PipelineExecution is the durable record of one pipeline run attempt.
type PipelineExecution struct {
	ID             string `gorm:"primaryKey"`
	ContextID      string
	PipelineID     ids.PipelineID
	LastKnownState ExecutionState
	Properties     ExecutionProperties `gorm:"-"`
	PropertiesBlob []byte              `gorm:"column:properties_blob"`
	CreateTime     time.Time
	UpdateTime     time.Time
}

// EncodeProperties serializes Properties into PropertiesBlob so the row is
// ready to persist. Both UpsertExecution implementations call it before
// writing the row.
func (e *PipelineExecution) EncodeProperties() error {
	blob, err := json.Marshal(e.Properties)
	if err != nil {
		return err
	}
	e.PropertiesBlob = blob
	return nil
}

// DecodeProperties populates Properties from PropertiesBlob. Both store
// implementations call it on every PipelineExecution they read back. An
// empty blob decodes to the zero-value ExecutionProperties.
func (e *PipelineExecution) DecodeProperties() error {
	if len(e.PropertiesBlob) == 0 {
		e.Properties = ExecutionProperties{}
		return nil
	}
	return json.Unmarshal(e.PropertiesBlob, &e.Properties)
}

// NodeExecution is the durable record for one attempted run of a node.
// "Active" means NEW or RUNNING.
type NodeExecution struct {
	ID             string `gorm:"primaryKey"`
	PipelineID     ids.PipelineID
	NodeID         ids.NodeID
	RunID          string
	LastKnownState ExecutionState
	CreateTime     time.Time
	UpdateTime     time.Time
}

func (n NodeExecution) NodeUID() ids.NodeUID {
	return ids.NodeUID{PipelineID: n.PipelineID, NodeID: n.NodeID}
}

// MetadataStore is the adapter the orchestration core depends on. Reads
// must observe the store directly, never a cache: repeated reads always
// reflect previously committed writes.
type MetadataStore interface {
	// ListOrchestratorContexts enumerates all contexts of the
	// orchestrator type.
	ListOrchestratorContexts() ([]OrchestratorContext, error)

	// UpsertOrchestratorContext inserts the context if absent; it is a
	// no-op (not an overwrite) if a context for the same PipelineID
	// already exists, since contexts are otherwise immutable.
	UpsertOrchestratorContext(c OrchestratorContext) (OrchestratorContext, error)

	// GetActiveExecutionForPipeline returns the active (NEW or RUNNING)
	// PipelineExecution for a PipelineID, if any.
	GetActiveExecutionForPipeline(pipelineID ids.PipelineID) (*PipelineExecution, error)

	// GetExecutionByID looks up a PipelineExecution by id regardless of
	// state.
	GetExecutionByID(id string) (*PipelineExecution, error)

	// GetExecutionForContext looks up the most recently created
	// PipelineExecution of a context, regardless of state.
	GetExecutionForContext(c OrchestratorContext) (*PipelineExecution, error)

	// UpsertExecution inserts or overwrites a PipelineExecution,
	// including its property bag.
	UpsertExecution(e PipelineExecution) (PipelineExecution, error)

	// CompareAndSwapExecutionState atomically transitions a single
	// execution row from `from` to `to`, returning false without error
	// if the row's current state does not match `from`.
	CompareAndSwapExecutionState(id string, from, to ExecutionState) (bool, error)

	// ListNodeExecutions returns every NodeExecution recorded for a
	// node, most recent first.
	ListNodeExecutions(nodeUID ids.NodeUID) ([]NodeExecution, error)

	// CreateNodeExecution inserts a new NodeExecution row.
	CreateNodeExecution(e NodeExecution) (NodeExecution, error)

	// UpdateNodeExecution overwrites an existing NodeExecution row.
	UpdateNodeExecution(e NodeExecution) (NodeExecution, error)
}
