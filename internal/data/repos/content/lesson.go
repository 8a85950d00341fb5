package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursesync/internal/domain/content"
	"github.com/yungbote/coursesync/internal/platform/logger"
)

type LessonRepo interface {
	Create(ctx context.Context, tx *gorm.DB, lessons []*types.Lesson) ([]*types.Lesson, error)
	GetByChapterIDs(ctx context.Context, tx *gorm.DB, chapterIDs []uuid.UUID) ([]*types.Lesson, error)
	UpdateArtifactKeys(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, guideKey string, workspaceKey *string) error
	UpdateNavigation(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, previousID, nextID *uuid.UUID) error
	DeleteAll(ctx context.Context, tx *gorm.DB) error
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	repoLog := baseLog.With("repo", "LessonRepo")
	return &lessonRepo{db: db, log: repoLog}
}

func (r *lessonRepo) Create(ctx context.Context, tx *gorm.DB, lessons []*types.Lesson) ([]*types.Lesson, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(lessons) == 0 {
		return []*types.Lesson{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *lessonRepo) GetByChapterIDs(ctx context.Context, tx *gorm.DB, chapterIDs []uuid.UUID) ([]*types.Lesson, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Lesson
	if len(chapterIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("chapter_id IN ?", chapterIDs).
		Order("chapter_id, position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateArtifactKeys writes back the guide reference and, when a workspace
// archive was uploaded, the workspace reference. A nil workspaceKey leaves
// the column untouched.
func (r *lessonRepo) UpdateArtifactKeys(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, guideKey string, workspaceKey *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	updates := map[string]interface{}{"guide_key": guideKey}
	if workspaceKey != nil {
		updates["workspace_key"] = *workspaceKey
	}

	if err := transaction.WithContext(ctx).
		Model(&types.Lesson{}).
		Where("id = ?", lessonID).
		Updates(updates).Error; err != nil {
		return err
	}
	return nil
}

func (r *lessonRepo) UpdateNavigation(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID, previousID, nextID *uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Model(&types.Lesson{}).
		Where("id = ?", lessonID).
		Updates(map[string]interface{}{
			"previous_id": previousID,
			"next_id":     nextID,
		}).Error; err != nil {
		return err
	}
	return nil
}

func (r *lessonRepo) DeleteAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("id <> ?", uuid.Nil).
		Delete(&types.Lesson{}).Error; err != nil {
		return err
	}
	return nil
}
