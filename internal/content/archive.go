package content

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/yungbote/coursesync/internal/pkg/errors"
)

// PackDir packages every file under dir into one uncompressed tar archive,
// preserving slash-separated relative paths. Entries whose resolved path
// falls outside dir (symlinks pointing out of the tree) are rejected.
// Walk order is lexical, so repeated packaging of an unchanged directory is
// safe to re-upload under the same key.
func PackDir(dir string) ([]byte, error) {
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %v", pkgerrors.ErrFilesystem, dir, err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %v", pkgerrors.ErrFilesystem, path, err)
		}
		if d.IsDir() {
			return nil
		}

		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %v", pkgerrors.ErrFilesystem, path, err)
		}
		if !withinDir(root, resolved) {
			return fmt.Errorf("%w: %s resolves outside %s", pkgerrors.ErrFilesystem, path, dir)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("%w: relativize %s: %v", pkgerrors.ErrFilesystem, path, err)
		}

		info, err := os.Stat(resolved)
		if err != nil {
			return fmt.Errorf("%w: stat %s: %v", pkgerrors.ErrFilesystem, path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("%w: header for %s: %v", pkgerrors.ErrFilesystem, path, err)
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("%w: write header for %s: %v", pkgerrors.ErrFilesystem, path, err)
		}

		f, err := os.Open(resolved)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", pkgerrors.ErrFilesystem, path, err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("%w: copy %s: %v", pkgerrors.ErrFilesystem, path, err)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalize archive of %s: %v", pkgerrors.ErrFilesystem, dir, err)
	}
	return buf.Bytes(), nil
}

func withinDir(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
