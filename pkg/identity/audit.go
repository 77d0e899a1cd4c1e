package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
)

// Audited actions.
const (
	ActionLogin          = "LOGIN"
	ActionViewWard       = "VIEW_WARD"
	ActionCompleteTask   = "COMPLETE_TASK"
	ActionRecomputeBatch = "RECOMPUTE_BATCH"
)

type AuditLogModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Actor     string            `gorm:"column:actor;index"`
	Action    string            `gorm:"column:action;index"`
	Details   datatypes.JSONMap `gorm:"column:details;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Recorder appends audit entries. Failures are logged and swallowed so
// an audit write never breaks the request that triggered it.
type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) Record(ctx context.Context, actor, action string, details map[string]interface{}) {
	entry := AuditLogModel{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		Details:   datatypes.JSONMap(details),
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"actor":  actor,
			"action": action,
		}).Error("Failed to write audit entry")
	}
}

func (r *Recorder) Recent(ctx context.Context, limit int) ([]AuditLogModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []AuditLogModel
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&entries).Error
	return entries, err
}
