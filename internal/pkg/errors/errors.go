package errors

import "errors"

var (
	// ErrMalformedMetadata marks a missing, unparsable, or incomplete descriptor.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// ErrMissingChapterDirectory marks a declared chapter with no directory on disk.
	ErrMissingChapterDirectory = errors.New("missing chapter directory")
	// ErrFilesystem marks an unreadable file or directory that was expected to exist.
	ErrFilesystem = errors.New("filesystem error")
	// ErrStoreWrite marks a failed relational upsert, update, or delete.
	ErrStoreWrite = errors.New("store write failed")
	// ErrStoreRead marks a failed relational select.
	ErrStoreRead = errors.New("store read failed")
	// ErrArtifactUpload marks a failed blob upload.
	ErrArtifactUpload = errors.New("artifact upload failed")
)
