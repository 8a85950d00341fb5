package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/yungbote/coursesync/internal/pkg/errors"
)

// excludedDirs are tooling and version-control directories that never hold
// course content.
var excludedDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".idea":        {},
	".vscode":      {},
	".venv":        {},
	"node_modules": {},
	"__pycache__":  {},
}

// Slugify turns a display name into a filesystem-safe path segment:
// lower-cased, runs of non-alphanumerics collapsed into a single dash.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CourseDirs returns every immediate subdirectory of root except the excluded
// tooling directories, in lexical order. Each one is treated as a course, so
// a subdirectory without a descriptor fails later in ReadCourse rather than
// being silently dropped.
func CourseDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", pkgerrors.ErrFilesystem, root, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, excluded := excludedDirs[e.Name()]; excluded {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	return dirs, nil
}

// ChapterDir resolves a declared chapter name to its directory under
// courseDir. The enumerable set of chapters is the declared list, not the
// filesystem, so an absent directory is an error.
func ChapterDir(courseDir, chapterName string) (string, error) {
	dir := filepath.Join(courseDir, Slugify(chapterName))
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: chapter %q expected at %s", pkgerrors.ErrMissingChapterDirectory, chapterName, dir)
		}
		return "", fmt.Errorf("%w: stat %s: %v", pkgerrors.ErrFilesystem, dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: chapter %q expected at %s, found a file", pkgerrors.ErrMissingChapterDirectory, chapterName, dir)
	}
	return dir, nil
}

// LessonDirs returns the immediate subdirectories of a chapter directory in
// lexical order by name. Lesson index assignment depends on this ordering
// being deterministic.
func LessonDirs(chapterDir string) ([]string, error) {
	entries, err := os.ReadDir(chapterDir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", pkgerrors.ErrFilesystem, chapterDir, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, excluded := excludedDirs[e.Name()]; excluded {
			continue
		}
		dirs = append(dirs, filepath.Join(chapterDir, e.Name()))
	}
	return dirs, nil
}
