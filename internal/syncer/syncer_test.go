package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursesync/internal/data/repos/testutil"
	types "github.com/yungbote/coursesync/internal/domain/content"
	pkgerrors "github.com/yungbote/coursesync/internal/pkg/errors"
	"github.com/yungbote/coursesync/internal/platform/gcs"
)

type fakeBlobStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	failCategory gcs.BucketCategory
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:      map[string][]byte{},
		contentTypes: map[string]string{},
	}
}

func blobKey(category gcs.BucketCategory, key string) string {
	return string(category) + "/" + key
}

func (f *fakeBlobStore) Upload(ctx context.Context, category gcs.BucketCategory, key string, contentType string, data io.Reader) error {
	if f.failCategory != "" && category == f.failCategory {
		return fmt.Errorf("injected upload failure")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[blobKey(category, key)] = b
	f.contentTypes[blobKey(category, key)] = contentType
	return nil
}

func (f *fakeBlobStore) PublicURL(category gcs.BucketCategory, key string) string {
	return blobKey(category, key)
}

func (f *fakeBlobStore) countByCategory(category gcs.BucketCategory) int {
	n := 0
	prefix := string(category) + "/"
	for k := range f.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, blobs gcs.BlobStore) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return New(db, NewRepos(db, log), blobs, log), db
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

const courseYAML = `id: go-basics
name: Go Basics
description: An introduction to Go.
tags: [go, beginner]
authors: [ada]
chapters:
  - Getting Started
  - Advanced Topics
`

const helloGuide = `---
name: Hello World
environment: docker
tasks:
  - instructions: Print hello.
    completed_by_default: false
    conditions:
      - type: file
        in: workspace
        is: exists
        value: tests/check.py
      - type: stdout
        in: output
        is: equals
        value: true
---
# Hello

Print something.
`

const variablesGuide = `---
name: Variables
environment: docker
---
# Variables
`

const concurrencyGuide = `---
name: Concurrency
environment: docker
tasks:
  - instructions: Start a goroutine.
    completed_by_default: true
---
# Concurrency
`

// buildCourseTree lays out one course with two chapters: Getting Started
// holding two lessons (the first with a workspace and a referenced file) and
// Advanced Topics holding one.
func buildCourseTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	course := filepath.Join(root, "go-basics")

	writeFile(t, filepath.Join(course, "course.yaml"), courseYAML)

	hello := filepath.Join(course, "getting-started", "01-hello")
	writeFile(t, filepath.Join(hello, "guide.md"), helloGuide)
	writeFile(t, filepath.Join(hello, "tests", "check.py"), "print('ok')\n")
	writeFile(t, filepath.Join(hello, "workspace", "main.go"), "package main\n")
	writeFile(t, filepath.Join(hello, "workspace", "sub", "util.go"), "package sub\n")

	writeFile(t, filepath.Join(course, "getting-started", "02-variables", "guide.md"), variablesGuide)
	writeFile(t, filepath.Join(course, "advanced-topics", "01-concurrency", "guide.md"), concurrencyGuide)

	return root
}

func allRows[T any](t *testing.T, db *gorm.DB) []T {
	t.Helper()
	var rows []T
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("load rows: %v", err)
	}
	return rows
}

func TestRunBuildsHierarchy(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)
	root := buildCourseTree(t)

	if err := service.Run(context.Background(), root); err != nil {
		t.Fatalf("Run: %v", err)
	}

	courses := allRows[types.Course](t, db)
	if len(courses) != 1 || courses[0].ID != "go-basics" {
		t.Fatalf("unexpected courses: %+v", courses)
	}
	if len(courses[0].Chapters) != 2 || courses[0].Chapters[0] != "Getting Started" {
		t.Fatalf("unexpected declared chapters: %v", courses[0].Chapters)
	}

	chapters, err := service.repos.Chapter.GetByCourseIDs(context.Background(), nil, []string{"go-basics"})
	if err != nil {
		t.Fatalf("GetByCourseIDs: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	byIndex := map[int]*types.Chapter{}
	for _, c := range chapters {
		byIndex[c.Index] = c
	}
	if byIndex[0] == nil || byIndex[0].Name != "Getting Started" {
		t.Fatalf("chapter 0: %+v", byIndex[0])
	}
	if byIndex[1] == nil || byIndex[1].Name != "Advanced Topics" {
		t.Fatalf("chapter 1: %+v", byIndex[1])
	}

	lessons, err := service.repos.Lesson.GetByChapterIDs(context.Background(), nil, []uuid.UUID{byIndex[0].ID})
	if err != nil {
		t.Fatalf("GetByChapterIDs: %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("expected 2 lessons in chapter 0, got %d", len(lessons))
	}
	if lessons[0].Name != "Hello World" || lessons[0].Index != 0 {
		t.Fatalf("lesson 0: %+v", lessons[0])
	}
	if lessons[1].Name != "Variables" || lessons[1].Index != 1 {
		t.Fatalf("lesson 1: %+v", lessons[1])
	}

	hello := lessons[0]

	// Guide artifact is mandatory and keyed by the lesson identifier.
	wantGuideKey := fmt.Sprintf("%s/guide.md", hello.ID)
	if hello.GuideKey != wantGuideKey {
		t.Fatalf("guide key = %q, want %q", hello.GuideKey, wantGuideKey)
	}
	guideBody := string(blobs.objects[blobKey(gcs.BucketCategoryGuide, wantGuideKey)])
	if guideBody != "# Hello\n\nPrint something.\n" {
		t.Fatalf("uploaded guide body = %q", guideBody)
	}

	// Workspace artifact exists only for the lesson with a workspace/ dir.
	if hello.WorkspaceKey == nil {
		t.Fatal("hello lesson has no workspace key")
	}
	if _, ok := blobs.objects[blobKey(gcs.BucketCategoryWorkspace, *hello.WorkspaceKey)]; !ok {
		t.Fatalf("workspace archive %q was not uploaded", *hello.WorkspaceKey)
	}
	if lessons[1].WorkspaceKey != nil {
		t.Fatalf("variables lesson should have no workspace key, got %v", *lessons[1].WorkspaceKey)
	}
	if got := blobs.countByCategory(gcs.BucketCategoryWorkspace); got != 1 {
		t.Fatalf("expected exactly 1 workspace upload, got %d", got)
	}

	// Tasks and conditions, with file-referencing condition values swapped
	// for blob keys and literals kept verbatim.
	tasks, err := service.repos.Task.GetByLessonIDs(context.Background(), nil, []uuid.UUID{hello.ID})
	if err != nil {
		t.Fatalf("GetByLessonIDs: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Index != 0 || tasks[0].CompletedByDefault {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	conditions, err := service.repos.Condition.GetByTaskIDs(context.Background(), nil, []uuid.UUID{tasks[0].ID})
	if err != nil {
		t.Fatalf("GetByTaskIDs: %v", err)
	}
	if len(conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(conditions))
	}
	var fileCond, literalCond *types.Condition
	for _, c := range conditions {
		switch c.Kind {
		case "file":
			fileCond = c
		case "stdout":
			literalCond = c
		}
	}
	if fileCond == nil || literalCond == nil {
		t.Fatalf("conditions missing kinds: %+v", conditions)
	}
	wantFileKey := fmt.Sprintf("%s/tests-check.py", hello.ID)
	if fileCond.Value != wantFileKey {
		t.Fatalf("file condition value = %q, want %q", fileCond.Value, wantFileKey)
	}
	if got := string(blobs.objects[blobKey(gcs.BucketCategoryFile, wantFileKey)]); got != "print('ok')\n" {
		t.Fatalf("uploaded referenced file = %q", got)
	}
	if ct := blobs.contentTypes[blobKey(gcs.BucketCategoryFile, wantFileKey)]; ct != "text/x-python" {
		t.Fatalf("referenced file content type = %q", ct)
	}
	if literalCond.Value != "true" {
		t.Fatalf("literal condition value = %q, want \"true\"", literalCond.Value)
	}
	if fileCond.In != "workspace" || fileCond.Is != "exists" {
		t.Fatalf("file condition operands: in=%q is=%q", fileCond.In, fileCond.Is)
	}
}

func TestRunNavigationLinks(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)
	root := buildCourseTree(t)

	if err := service.Run(context.Background(), root); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lessons := allRows[types.Lesson](t, db)
	byName := map[string]*types.Lesson{}
	for i := range lessons {
		byName[lessons[i].Name] = &lessons[i]
	}
	hello, vars, conc := byName["Hello World"], byName["Variables"], byName["Concurrency"]
	if hello == nil || vars == nil || conc == nil {
		t.Fatalf("missing lessons: %v", byName)
	}

	if hello.PreviousID != nil {
		t.Fatalf("first lesson previous = %v, want nil", hello.PreviousID)
	}
	if hello.NextID == nil || *hello.NextID != vars.ID {
		t.Fatalf("first lesson next = %v, want %v", hello.NextID, vars.ID)
	}
	if vars.PreviousID == nil || *vars.PreviousID != hello.ID {
		t.Fatalf("middle lesson previous = %v, want %v", vars.PreviousID, hello.ID)
	}
	// The next pointer crosses the chapter boundary.
	if vars.NextID == nil || *vars.NextID != conc.ID {
		t.Fatalf("middle lesson next = %v, want %v", vars.NextID, conc.ID)
	}
	if conc.PreviousID == nil || *conc.PreviousID != vars.ID {
		t.Fatalf("last lesson previous = %v, want %v", conc.PreviousID, vars.ID)
	}
	if conc.NextID != nil {
		t.Fatalf("last lesson next = %v, want nil", conc.NextID)
	}
}

func TestRunNavigationSingleLesson(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "solo", "course.yaml"),
		"id: solo\nname: Solo\nchapters: [\"Only\"]\n")
	writeFile(t, filepath.Join(root, "solo", "only", "01-single", "guide.md"),
		"---\nname: Single\n---\nbody\n")

	if err := service.Run(context.Background(), root); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lessons := allRows[types.Lesson](t, db)
	if len(lessons) != 1 {
		t.Fatalf("expected 1 lesson, got %d", len(lessons))
	}
	if lessons[0].PreviousID != nil || lessons[0].NextID != nil {
		t.Fatalf("single lesson must have no neighbors: prev=%v next=%v",
			lessons[0].PreviousID, lessons[0].NextID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)
	root := buildCourseTree(t)

	for i := 0; i < 2; i++ {
		if err := service.Run(context.Background(), root); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	if courses := allRows[types.Course](t, db); len(courses) != 1 || courses[0].ID != "go-basics" {
		t.Fatalf("unexpected courses after re-run: %+v", courses)
	}
	if chapters := allRows[types.Chapter](t, db); len(chapters) != 2 {
		t.Fatalf("expected 2 chapters after re-run, got %d", len(chapters))
	}
	if lessons := allRows[types.Lesson](t, db); len(lessons) != 3 {
		t.Fatalf("expected 3 lessons after re-run, got %d", len(lessons))
	}
	if tasks := allRows[types.Task](t, db); len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after re-run, got %d", len(tasks))
	}
	if conditions := allRows[types.Condition](t, db); len(conditions) != 2 {
		t.Fatalf("expected 2 conditions after re-run, got %d", len(conditions))
	}
}

func TestRunPurgesPriorState(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)

	rootA := buildCourseTree(t)
	if err := service.Run(context.Background(), rootA); err != nil {
		t.Fatalf("Run A: %v", err)
	}

	rootB := t.TempDir()
	writeFile(t, filepath.Join(rootB, "other", "course.yaml"),
		"id: other\nname: Other\nchapters: [\"Only\"]\n")
	writeFile(t, filepath.Join(rootB, "other", "only", "01-single", "guide.md"),
		"---\nname: Single\n---\nbody\n")
	if err := service.Run(context.Background(), rootB); err != nil {
		t.Fatalf("Run B: %v", err)
	}

	courses := allRows[types.Course](t, db)
	if len(courses) != 1 || courses[0].ID != "other" {
		t.Fatalf("expected only course from run B, got %+v", courses)
	}
	if lessons := allRows[types.Lesson](t, db); len(lessons) != 1 {
		t.Fatalf("expected 1 lesson after run B, got %d", len(lessons))
	}
}

func TestRunMalformedCourseAbortsBeforeAnyWrite(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)

	root := t.TempDir()
	// Lexically first course is broken; the valid one after it must never
	// be processed, and the failed transaction must leave no rows behind.
	writeFile(t, filepath.Join(root, "aaa-broken", "course.yaml"), "id: broken\nname: Broken\n")
	writeFile(t, filepath.Join(root, "zzz-good", "course.yaml"),
		"id: good\nname: Good\nchapters: [\"Only\"]\n")
	writeFile(t, filepath.Join(root, "zzz-good", "only", "01-a", "guide.md"),
		"---\nname: A\n---\nbody\n")

	err := service.Run(context.Background(), root)
	if !errors.Is(err, pkgerrors.ErrMalformedMetadata) {
		t.Fatalf("expected ErrMalformedMetadata, got %v", err)
	}
	if courses := allRows[types.Course](t, db); len(courses) != 0 {
		t.Fatalf("expected no courses after aborted run, got %+v", courses)
	}
	if chapters := allRows[types.Chapter](t, db); len(chapters) != 0 {
		t.Fatalf("expected no chapters after aborted run, got %d", len(chapters))
	}
}

func TestRunMissingDescriptorHalts(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)

	// A course directory that lost its descriptor must halt the run, not be
	// skipped as if it were never there.
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken-course", "getting-started", "01-a", "guide.md"),
		"---\nname: A\n---\nbody\n")

	err := service.Run(context.Background(), root)
	if !errors.Is(err, pkgerrors.ErrMalformedMetadata) {
		t.Fatalf("expected ErrMalformedMetadata, got %v", err)
	}
	if courses := allRows[types.Course](t, db); len(courses) != 0 {
		t.Fatalf("expected no courses after halted run, got %+v", courses)
	}
}

func TestRunMissingChapterDirectory(t *testing.T) {
	blobs := newFakeBlobStore()
	service, _ := newTestService(t, blobs)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "c", "course.yaml"),
		"id: c\nname: C\nchapters: [\"Ghost Chapter\"]\n")

	err := service.Run(context.Background(), root)
	if !errors.Is(err, pkgerrors.ErrMissingChapterDirectory) {
		t.Fatalf("expected ErrMissingChapterDirectory, got %v", err)
	}
}

func TestRunUploadFailureRollsBack(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.failCategory = gcs.BucketCategoryWorkspace
	service, db := newTestService(t, blobs)
	root := buildCourseTree(t)

	err := service.Run(context.Background(), root)
	if !errors.Is(err, pkgerrors.ErrArtifactUpload) {
		t.Fatalf("expected ErrArtifactUpload, got %v", err)
	}
	if lessons := allRows[types.Lesson](t, db); len(lessons) != 0 {
		t.Fatalf("expected rollback to remove lessons, got %d", len(lessons))
	}
}

func TestRunKeepsStoreOnFailure(t *testing.T) {
	blobs := newFakeBlobStore()
	service, db := newTestService(t, blobs)

	goodRoot := buildCourseTree(t)
	if err := service.Run(context.Background(), goodRoot); err != nil {
		t.Fatalf("Run good: %v", err)
	}

	badRoot := t.TempDir()
	writeFile(t, filepath.Join(badRoot, "bad", "course.yaml"), "name: no id or chapters\n")

	if err := service.Run(context.Background(), badRoot); err == nil {
		t.Fatal("expected failure for malformed course")
	}

	// The purge ran inside the failed transaction, so the previous sync
	// must still be intact.
	if courses := allRows[types.Course](t, db); len(courses) != 1 || courses[0].ID != "go-basics" {
		t.Fatalf("prior state lost after failed run: %+v", courses)
	}
	if lessons := allRows[types.Lesson](t, db); len(lessons) != 3 {
		t.Fatalf("prior lessons lost after failed run: %d", len(lessons))
	}
}
