package benchmark

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/specialistvlad/harvest/internal/config"
	"github.com/specialistvlad/harvest/internal/ctxlog"
)

// ObjectStore is the subset of an S3-compatible client used for uploads.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// MinioStore uploads into one bucket of an S3-compatible server.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint described by u.
func NewMinioStore(u *config.Upload) (*MinioStore, error) {
	client, err := minio.New(u.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(u.AccessKey, u.SecretKey, ""),
		Secure: u.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: u.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put stores one object.
func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// UploadTree uploads every regular file under root, keyed by prefix plus
// the slash-separated relative path. It returns the number of files sent.
func UploadTree(ctx context.Context, store ObjectStore, root, prefix string) (int, error) {
	logger := ctxlog.FromContext(ctx)
	if err := store.EnsureBucket(ctx); err != nil {
		return 0, err
	}

	count := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		if err := uploadFile(ctx, store, p, key); err != nil {
			return err
		}
		count++
		logger.Debug("Uploaded file.", "source", p, "key", key)
		return nil
	})
	return count, err
}

func uploadFile(ctx context.Context, store ObjectStore, p, key string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", p, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", p, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return store.Put(ctx, key, f, info.Size(), contentType)
}
