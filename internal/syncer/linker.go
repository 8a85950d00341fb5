package syncer

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursesync/internal/domain/content"
	pkgerrors "github.com/yungbote/coursesync/internal/pkg/errors"
)

// linkCourse writes every lesson's previous/next pointers in global course
// order: chapters by index, lessons by index within each chapter, with the
// relation crossing chapter boundaries at the edges. It re-reads committed
// rows rather than reusing in-memory state, so the links always reflect the
// persisted index assignment.
func (s *Service) linkCourse(ctx context.Context, tx *gorm.DB, courseID string) error {
	chapters, err := s.repos.Chapter.GetByCourseIDs(ctx, tx, []string{courseID})
	if err != nil {
		return fmt.Errorf("%w: read chapters of course %s: %v", pkgerrors.ErrStoreRead, courseID, err)
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Index < chapters[j].Index })

	chapterIDs := make([]uuid.UUID, 0, len(chapters))
	for _, c := range chapters {
		chapterIDs = append(chapterIDs, c.ID)
	}

	lessons, err := s.repos.Lesson.GetByChapterIDs(ctx, tx, chapterIDs)
	if err != nil {
		return fmt.Errorf("%w: read lessons of course %s: %v", pkgerrors.ErrStoreRead, courseID, err)
	}

	byChapter := make(map[uuid.UUID][]*types.Lesson, len(chapters))
	for _, l := range lessons {
		byChapter[l.ChapterID] = append(byChapter[l.ChapterID], l)
	}

	ordered := make([]*types.Lesson, 0, len(lessons))
	for _, c := range chapters {
		group := byChapter[c.ID]
		sort.Slice(group, func(i, j int) bool { return group[i].Index < group[j].Index })
		ordered = append(ordered, group...)
	}

	for i, l := range ordered {
		var previousID, nextID *uuid.UUID
		if i > 0 {
			previousID = &ordered[i-1].ID
		}
		if i < len(ordered)-1 {
			nextID = &ordered[i+1].ID
		}
		if err := s.repos.Lesson.UpdateNavigation(ctx, tx, l.ID, previousID, nextID); err != nil {
			return fmt.Errorf("%w: link lesson %s of course %s: %v", pkgerrors.ErrStoreWrite, l.ID, courseID, err)
		}
	}
	return nil
}
