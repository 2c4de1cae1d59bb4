package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/nl2sql-api/internal/models"
)

// EvaluationFilter paginates evaluation run listings.
type EvaluationFilter struct {
	Page     int
	PageSize int
}

// EvaluationRepository persists evaluation runs and their graded cases.
type EvaluationRepository interface {
	Create(ctx context.Context, run *models.EvaluationRun) error
	List(ctx context.Context, filter EvaluationFilter) ([]models.EvaluationRun, int64, error)
	GetByID(ctx context.Context, id string) (models.EvaluationRun, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs the repository implementation.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, run *models.EvaluationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// List returns runs newest first without their cases.
func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.EvaluationRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.EvaluationRun{})

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var runs []models.EvaluationRun
	if err := query.Order("started_at DESC").Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

// GetByID loads a run with its cases in corpus order. A missing run yields gorm.ErrRecordNotFound.
func (r *evaluationRepository) GetByID(ctx context.Context, id string) (models.EvaluationRun, error) {
	var run models.EvaluationRun
	err := r.db.WithContext(ctx).
		Preload("Cases", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&run, "id = ?", id).Error
	return run, err
}
