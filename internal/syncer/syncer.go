package syncer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/coursesync/internal/content"
	"github.com/yungbote/coursesync/internal/data/repos"
	types "github.com/yungbote/coursesync/internal/domain/content"
	pkgerrors "github.com/yungbote/coursesync/internal/pkg/errors"
	"github.com/yungbote/coursesync/internal/platform/gcs"
	"github.com/yungbote/coursesync/internal/platform/logger"
)

// Repos bundles the relational surface the pipeline writes to.
type Repos struct {
	Course    repos.CourseRepo
	Chapter   repos.ChapterRepo
	Lesson    repos.LessonRepo
	Task      repos.TaskRepo
	Condition repos.ConditionRepo
}

func NewRepos(db *gorm.DB, baseLog *logger.Logger) Repos {
	return Repos{
		Course:    repos.NewCourseRepo(db, baseLog),
		Chapter:   repos.NewChapterRepo(db, baseLog),
		Lesson:    repos.NewLessonRepo(db, baseLog),
		Task:      repos.NewTaskRepo(db, baseLog),
		Condition: repos.NewConditionRepo(db, baseLog),
	}
}

// Service rebuilds the synchronized store from a course content tree. Every
// run is a destructive full resync: purge everything, then walk the tree
// top-down, threading each parent's generated identifier into its children.
type Service struct {
	db    *gorm.DB
	repos Repos
	blobs gcs.BlobStore
	log   *logger.Logger
}

func New(db *gorm.DB, r Repos, blobs gcs.BlobStore, log *logger.Logger) *Service {
	return &Service{
		db:    db,
		repos: r,
		blobs: blobs,
		log:   log.With("service", "Syncer"),
	}
}

// Run synchronizes every course found under root. All relational writes
// happen inside one transaction, so a mid-run failure rolls the store back
// instead of leaving it purged-but-unrebuilt. Blob keys embed the run's
// freshly generated lesson identifiers, so uploads from an aborted or
// superseded run are never referenced by committed rows; they linger in the
// buckets as unreferenced objects rather than being rolled back. The first
// failing step aborts the whole run.
func (s *Service) Run(ctx context.Context, root string) error {
	courseDirs, err := content.CourseDirs(root)
	if err != nil {
		return err
	}
	s.log.Info("Starting content sync", "root", root, "courses", len(courseDirs))

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.purge(ctx, tx); err != nil {
			return err
		}
		for _, dir := range courseDirs {
			if err := s.syncCourse(ctx, tx, dir); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("Content sync failed", "root", root, "error", err)
		return err
	}

	s.log.Info("Content sync finished", "root", root, "courses", len(courseDirs))
	return nil
}

// purge deletes all previously synchronized rows, children before parents.
func (s *Service) purge(ctx context.Context, tx *gorm.DB) error {
	if err := s.repos.Condition.DeleteAll(ctx, tx); err != nil {
		return fmt.Errorf("%w: purge conditions: %v", pkgerrors.ErrStoreWrite, err)
	}
	if err := s.repos.Task.DeleteAll(ctx, tx); err != nil {
		return fmt.Errorf("%w: purge tasks: %v", pkgerrors.ErrStoreWrite, err)
	}
	if err := s.repos.Lesson.DeleteAll(ctx, tx); err != nil {
		return fmt.Errorf("%w: purge lessons: %v", pkgerrors.ErrStoreWrite, err)
	}
	if err := s.repos.Chapter.DeleteAll(ctx, tx); err != nil {
		return fmt.Errorf("%w: purge chapters: %v", pkgerrors.ErrStoreWrite, err)
	}
	if err := s.repos.Course.DeleteAll(ctx, tx); err != nil {
		return fmt.Errorf("%w: purge courses: %v", pkgerrors.ErrStoreWrite, err)
	}
	return nil
}

func (s *Service) syncCourse(ctx context.Context, tx *gorm.DB, dir string) error {
	meta, err := content.ReadCourse(dir)
	if err != nil {
		return err
	}
	log := s.log.With("course", meta.ID, "dir", dir)

	course := &types.Course{
		ID:          meta.ID,
		Name:        meta.Name,
		Description: meta.Description,
		Tags:        datatypes.NewJSONSlice(meta.Tags),
		Authors:     datatypes.NewJSONSlice(meta.Authors),
		Chapters:    datatypes.NewJSONSlice(meta.Chapters),
	}
	if _, err := s.repos.Course.Upsert(ctx, tx, course); err != nil {
		return fmt.Errorf("%w: upsert course %s from %s: %v", pkgerrors.ErrStoreWrite, meta.ID, dir, err)
	}

	lessonCount := 0
	for i, chapterName := range meta.Chapters {
		chapterDir, err := content.ChapterDir(dir, chapterName)
		if err != nil {
			return err
		}

		chapter := &types.Chapter{
			CourseID: meta.ID,
			Name:     chapterName,
			Index:    i,
		}
		if _, err := s.repos.Chapter.Create(ctx, tx, []*types.Chapter{chapter}); err != nil {
			return fmt.Errorf("%w: insert chapter %q from %s: %v", pkgerrors.ErrStoreWrite, chapterName, chapterDir, err)
		}

		lessonDirs, err := content.LessonDirs(chapterDir)
		if err != nil {
			return err
		}
		for j, lessonDir := range lessonDirs {
			if err := s.syncLesson(ctx, tx, chapter.ID, j, lessonDir); err != nil {
				return err
			}
		}
		lessonCount += len(lessonDirs)
	}

	if err := s.linkCourse(ctx, tx, meta.ID); err != nil {
		return err
	}

	log.Info("Course synchronized", "chapters", len(meta.Chapters), "lessons", lessonCount)
	return nil
}

func (s *Service) syncLesson(ctx context.Context, tx *gorm.DB, chapterID uuid.UUID, index int, dir string) error {
	guidePath := filepath.Join(dir, "guide.md")
	meta, body, err := content.ReadGuide(guidePath)
	if err != nil {
		return err
	}

	lesson := &types.Lesson{
		ChapterID:   chapterID,
		Name:        meta.Name,
		Environment: meta.Environment,
		Index:       index,
	}
	if _, err := s.repos.Lesson.Create(ctx, tx, []*types.Lesson{lesson}); err != nil {
		return fmt.Errorf("%w: insert lesson from %s: %v", pkgerrors.ErrStoreWrite, dir, err)
	}

	guideKey := fmt.Sprintf("%s/guide.md", lesson.ID)
	if err := s.blobs.Upload(ctx, gcs.BucketCategoryGuide, guideKey, gcs.ContentTypeForPath(guidePath), strings.NewReader(body)); err != nil {
		return fmt.Errorf("%w: upload guide %s: %v", pkgerrors.ErrArtifactUpload, guidePath, err)
	}
	s.log.Debug("Guide uploaded", "key", guideKey, "url", s.blobs.PublicURL(gcs.BucketCategoryGuide, guideKey))

	workspaceKey, err := s.syncWorkspace(ctx, lesson.ID, dir)
	if err != nil {
		return err
	}

	if err := s.repos.Lesson.UpdateArtifactKeys(ctx, tx, lesson.ID, guideKey, workspaceKey); err != nil {
		return fmt.Errorf("%w: update lesson artifacts for %s: %v", pkgerrors.ErrStoreWrite, dir, err)
	}

	for ti, taskMeta := range meta.Tasks {
		task := &types.Task{
			LessonID:           lesson.ID,
			Instructions:       taskMeta.Instructions,
			Index:              ti,
			CompletedByDefault: taskMeta.CompletedByDefault,
		}
		if _, err := s.repos.Task.Create(ctx, tx, []*types.Task{task}); err != nil {
			return fmt.Errorf("%w: insert task %d from %s: %v", pkgerrors.ErrStoreWrite, ti, dir, err)
		}

		for _, condMeta := range taskMeta.Conditions {
			value, err := s.resolveConditionValue(ctx, lesson.ID, dir, string(condMeta.Value))
			if err != nil {
				return err
			}
			cond := &types.Condition{
				TaskID: task.ID,
				Kind:   condMeta.Type,
				In:     string(condMeta.In),
				Is:     string(condMeta.Is),
				Value:  value,
			}
			if _, err := s.repos.Condition.Create(ctx, tx, []*types.Condition{cond}); err != nil {
				return fmt.Errorf("%w: insert condition of task %d from %s: %v", pkgerrors.ErrStoreWrite, ti, dir, err)
			}
		}
	}
	return nil
}

// syncWorkspace packages and uploads the lesson's workspace directory. An
// absent directory is not an error: the lesson simply has no workspace
// artifact this run, and the returned key is nil.
func (s *Service) syncWorkspace(ctx context.Context, lessonID uuid.UUID, lessonDir string) (*string, error) {
	wsDir := filepath.Join(lessonDir, "workspace")
	info, err := os.Stat(wsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: stat %s: %v", pkgerrors.ErrFilesystem, wsDir, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	archive, err := content.PackDir(wsDir)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/workspace.tar", lessonID)
	if err := s.blobs.Upload(ctx, gcs.BucketCategoryWorkspace, key, gcs.ContentTypeForPath(key), bytes.NewReader(archive)); err != nil {
		return nil, fmt.Errorf("%w: upload workspace %s: %v", pkgerrors.ErrArtifactUpload, wsDir, err)
	}
	s.log.Debug("Workspace uploaded", "key", key, "url", s.blobs.PublicURL(gcs.BucketCategoryWorkspace, key))
	return &key, nil
}

// resolveConditionValue replaces a condition value that names an existing
// regular file under the lesson directory with the key of its uploaded blob.
// Anything else (including paths escaping the lesson directory) is persisted
// verbatim as a literal.
func (s *Service) resolveConditionValue(ctx context.Context, lessonID uuid.UUID, lessonDir, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value, nil
	}

	candidate := filepath.Join(lessonDir, filepath.FromSlash(trimmed))
	rel, err := filepath.Rel(lessonDir, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return value, nil
	}

	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return value, nil
	}

	f, err := os.Open(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", pkgerrors.ErrFilesystem, candidate, err)
	}
	defer f.Close()

	key := fmt.Sprintf("%s/%s", lessonID, sanitizeFileName(rel))
	if err := s.blobs.Upload(ctx, gcs.BucketCategoryFile, key, gcs.ContentTypeForPath(candidate), f); err != nil {
		return "", fmt.Errorf("%w: upload referenced file %s: %v", pkgerrors.ErrArtifactUpload, candidate, err)
	}
	s.log.Debug("Referenced file uploaded", "key", key, "url", s.blobs.PublicURL(gcs.BucketCategoryFile, key))
	return key, nil
}

// sanitizeFileName flattens a relative path into a single blob name segment.
func sanitizeFileName(rel string) string {
	rel = filepath.ToSlash(rel)
	var b strings.Builder
	for _, r := range rel {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
