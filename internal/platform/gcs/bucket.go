package gcs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/coursesync/internal/platform/envutil"
	"github.com/yungbote/coursesync/internal/platform/logger"
)

type BucketCategory string

const (
	// BucketCategoryGuide holds lesson guide bodies.
	BucketCategoryGuide BucketCategory = "guide"
	// BucketCategoryWorkspace holds packaged workspace archives.
	BucketCategoryWorkspace BucketCategory = "workspace"
	// BucketCategoryFile holds individual files referenced by conditions.
	BucketCategoryFile BucketCategory = "file"
)

// BlobStore is the blob surface the sync pipeline needs: overwrite-on-upload
// keyed writes with a content type hint, and a stable public reference.
type BlobStore interface {
	Upload(ctx context.Context, category BucketCategory, key string, contentType string, data io.Reader) error
	PublicURL(category BucketCategory, key string) string
}

const (
	storageModeGCS      = "gcs"
	storageModeEmulator = "gcs-emulator"
)

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	buckets       map[BucketCategory]string
	publicBaseURL string
	uploadTimeout time.Duration
}

func NewBucketService(log *logger.Logger) (BlobStore, error) {
	serviceLog := log.With("service", "BucketService")

	buckets := map[BucketCategory]string{
		BucketCategoryGuide:     os.Getenv("GUIDE_GCS_BUCKET_NAME"),
		BucketCategoryWorkspace: os.Getenv("WORKSPACE_GCS_BUCKET_NAME"),
		BucketCategoryFile:      os.Getenv("FILE_GCS_BUCKET_NAME"),
	}
	for category, name := range buckets {
		if name == "" {
			return nil, fmt.Errorf("missing bucket name env var for %s bucket", category)
		}
	}

	mode := envutil.String("OBJECT_STORAGE_MODE", storageModeGCS)
	emulatorHost := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")

	ctx := context.Background()
	stClient, err := newStorageClientForMode(ctx, mode, emulatorHost)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBaseURL := ""
	if mode == storageModeEmulator {
		publicBaseURL = emulatorHost
	}

	serviceLog.Info(
		"Object storage initialized",
		"mode", mode,
		"emulator_host", emulatorHost,
		"guide_bucket", buckets[BucketCategoryGuide],
		"workspace_bucket", buckets[BucketCategoryWorkspace],
		"file_bucket", buckets[BucketCategoryFile],
	)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		buckets:       buckets,
		publicBaseURL: publicBaseURL,
		uploadTimeout: time.Duration(envutil.Int("UPLOAD_TIMEOUT_SECONDS", 120)) * time.Second,
	}, nil
}

func newStorageClientForMode(ctx context.Context, mode, emulatorHost string) (*storage.Client, error) {
	switch mode {
	case storageModeGCS:
		return storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	case storageModeEmulator:
		if emulatorHost == "" {
			return nil, fmt.Errorf("OBJECT_STORAGE_MODE=%s requires STORAGE_EMULATOR_HOST", mode)
		}
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("unknown OBJECT_STORAGE_MODE: %q", mode)
	}
}

func (bs *bucketService) bucketName(category BucketCategory) (string, error) {
	name, ok := bs.buckets[category]
	if !ok {
		return "", fmt.Errorf("unknown bucket category: %s", category)
	}
	return name, nil
}

// Upload writes the object under key, overwriting any previous version.
func (bs *bucketService) Upload(ctx context.Context, category BucketCategory, key string, contentType string, data io.Reader) error {
	name, err := bs.bucketName(category)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, bs.uploadTimeout)
	defer cancel()

	w := bs.storageClient.Bucket(name).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (bs *bucketService) PublicURL(category BucketCategory, key string) string {
	name, err := bs.bucketName(category)
	if err != nil {
		return key
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if bs.publicBaseURL != "" {
		return fmt.Sprintf(
			"%s/storage/v1/b/%s/o/%s?alt=media",
			bs.publicBaseURL,
			url.PathEscape(name),
			url.PathEscape(key),
		)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", name, key)
}

// ContentTypeForPath infers a content type from the file extension, falling
// back to a generic binary type.
func ContentTypeForPath(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".tar":
		return "application/x-tar"
	case ".py":
		return "text/x-python"
	case ".sh":
		return "text/x-shellscript"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
