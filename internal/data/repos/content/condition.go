package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursesync/internal/domain/content"
	"github.com/yungbote/coursesync/internal/platform/logger"
)

type ConditionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, conditions []*types.Condition) ([]*types.Condition, error)
	GetByTaskIDs(ctx context.Context, tx *gorm.DB, taskIDs []uuid.UUID) ([]*types.Condition, error)
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type conditionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConditionRepo(db *gorm.DB, baseLog *logger.Logger) ConditionRepo {
	repoLog := baseLog.With("repo", "ConditionRepo")
	return &conditionRepo{db: db, log: repoLog}
}

func (r *conditionRepo) Create(ctx context.Context, tx *gorm.DB, conditions []*types.Condition) ([]*types.Condition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(conditions) == 0 {
		return []*types.Condition{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&conditions).Error; err != nil {
		return nil, err
	}
	return conditions, nil
}

func (r *conditionRepo) GetByTaskIDs(ctx context.Context, tx *gorm.DB, taskIDs []uuid.UUID) ([]*types.Condition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Condition
	if len(taskIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("task_id IN ?", taskIDs).
		Order("task_id, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conditionRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("id <> ?", uuid.Nil).
		Delete(&types.Condition{}).Error; err != nil {
		return err
	}
	return nil
}
