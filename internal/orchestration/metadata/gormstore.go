package metadata

import (
	"errors"
	"time"

	"github.com/Avik2024/pipeline-orchestrator/internal/orchestration/ids"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens a Postgres connection via gorm using the given DSN. It is
// the orchestration-core analogue of the teacher's cfg.Database.URL
// wiring, but this repo is what actually dials gorm with it.
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// GormStore is the production MetadataStore, backed by Postgres via gorm,
// following the teacher's own declared (but, in the teacher's own tree,
// unused) gorm+postgres stack. Every multi-step sequence below is a
// read/modify/write under the caller's global orchestration lock, not a
// database transaction spanning multiple rows — the store offers no
// multi-row transaction per spec.md §1, so correctness here is enforced by
// the caller's serialization discipline, with gorm used only for
// single-row atomicity (Updates, Create) and connection/query plumbing.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already-connected *gorm.DB. Call AutoMigrate once
// at process start (see cmd/orchestratord) before using the store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the backing tables for all three record
// types.
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&OrchestratorContext{}, &PipelineExecution{}, &NodeExecution{})
}

func (s *GormStore) ListOrchestratorContexts() ([]OrchestratorContext, error) {
	var out []OrchestratorContext
	if err := s.db.Order("pipeline_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) UpsertOrchestratorContext(c OrchestratorContext) (OrchestratorContext, error) {
	var existing OrchestratorContext
	err := s.db.Where("pipeline_id = ?", c.PipelineID).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return OrchestratorContext{}, err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.db.Create(&c).Error; err != nil {
		return OrchestratorContext{}, err
	}
	return c, nil
}

func (s *GormStore) GetActiveExecutionForPipeline(pipelineID ids.PipelineID) (*PipelineExecution, error) {
	var e PipelineExecution
	err := s.db.Where("pipeline_id = ? AND last_known_state IN ?", pipelineID,
		[]ExecutionState{StateNew, StateRunning}).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := e.DecodeProperties(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *GormStore) GetExecutionByID(id string) (*PipelineExecution, error) {
	var e PipelineExecution
	err := s.db.Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := e.DecodeProperties(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *GormStore) GetExecutionForContext(c OrchestratorContext) (*PipelineExecution, error) {
	var e PipelineExecution
	err := s.db.Where("context_id = ?", c.ID).Order("create_time DESC").First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := e.DecodeProperties(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *GormStore) UpsertExecution(e PipelineExecution) (PipelineExecution, error) {
	if err := e.EncodeProperties(); err != nil {
		return PipelineExecution{}, err
	}

	now := time.Now()
	e.UpdateTime = now
	if e.ID == "" {
		e.ID = uuid.NewString()
		e.CreateTime = now
		if err := s.db.Create(&e).Error; err != nil {
			return PipelineExecution{}, err
		}
		return e, nil
	}

	if err := s.db.Save(&e).Error; err != nil {
		return PipelineExecution{}, err
	}
	return e, nil
}

func (s *GormStore) CompareAndSwapExecutionState(id string, from, to ExecutionState) (bool, error) {
	result := s.db.Model(&PipelineExecution{}).
		Where("id = ? AND last_known_state = ?", id, from).
		Updates(map[string]interface{}{
			"last_known_state": to,
			"update_time":      time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) ListNodeExecutions(nodeUID ids.NodeUID) ([]NodeExecution, error) {
	var out []NodeExecution
	err := s.db.Where("pipeline_id = ? AND node_id = ?", nodeUID.PipelineID, nodeUID.NodeID).
		Order("create_time DESC").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) CreateNodeExecution(e NodeExecution) (NodeExecution, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	e.CreateTime = now
	e.UpdateTime = now
	if err := s.db.Create(&e).Error; err != nil {
		return NodeExecution{}, err
	}
	return e, nil
}

func (s *GormStore) UpdateNodeExecution(e NodeExecution) (NodeExecution, error) {
	e.UpdateTime = time.Now()
	if err := s.db.Save(&e).Error; err != nil {
		return NodeExecution{}, err
	}
	return e, nil
}
