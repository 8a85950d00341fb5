package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursesync/internal/data/repos/content"
	"github.com/yungbote/coursesync/internal/platform/logger"
)

type CourseRepo = content.CourseRepo
type ChapterRepo = content.ChapterRepo
type LessonRepo = content.LessonRepo
type TaskRepo = content.TaskRepo
type ConditionRepo = content.ConditionRepo

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return content.NewCourseRepo(db, baseLog)
}
func NewChapterRepo(db *gorm.DB, baseLog *logger.Logger) ChapterRepo {
	return content.NewChapterRepo(db, baseLog)
}
func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return content.NewLessonRepo(db, baseLog)
}
func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return content.NewTaskRepo(db, baseLog)
}
func NewConditionRepo(db *gorm.DB, baseLog *logger.Logger) ConditionRepo {
	return content.NewConditionRepo(db, baseLog)
}
