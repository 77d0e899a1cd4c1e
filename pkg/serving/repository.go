package serving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PredictionLogModel{}, &WardTaskModel{})
}

func (r *Repository) RecordPrediction(ctx context.Context, log *PredictionLogModel) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("record prediction: %w", err)
	}
	return nil
}

// LatestPerEncounter returns each encounter's most recent prediction.
func (r *Repository) LatestPerEncounter(ctx context.Context) ([]PredictionLogModel, error) {
	var logs []PredictionLogModel
	err := r.db.WithContext(ctx).
		Raw("SELECT DISTINCT ON (encounter_id) * FROM prediction_logs ORDER BY encounter_id, created_at DESC").
		Scan(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("latest predictions: %w", err)
	}
	return logs, nil
}

func (r *Repository) CreateTask(ctx context.Context, task *WardTaskModel) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create ward task: %w", err)
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*WardTaskModel, error) {
	var task WardTaskModel
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get ward task: %w", err)
	}
	return &task, nil
}

func (r *Repository) ListTasks(ctx context.Context, status string) ([]WardTaskModel, error) {
	query := r.db.WithContext(ctx).Order("created_at desc")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var tasks []WardTaskModel
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list ward tasks: %w", err)
	}
	return tasks, nil
}

func (r *Repository) UpdateTask(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&WardTaskModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update ward task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
