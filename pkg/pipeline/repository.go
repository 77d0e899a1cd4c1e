package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("pipeline run not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{})
}

func (r *Repository) Create(ctx context.Context, m *runModel) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create pipeline run: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update pipeline run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*runModel, error) {
	var m runModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return &m, nil
}

func (r *Repository) List(ctx context.Context, limit int) ([]runModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []runModel
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	return runs, nil
}

// LatestCompleted returns the most recent run that finished successfully.
func (r *Repository) LatestCompleted(ctx context.Context) (*runModel, error) {
	var m runModel
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusCompleted).
		Order("completed_at desc").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("latest completed run: %w", err)
	}
	return &m, nil
}
