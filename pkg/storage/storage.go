package storage

import (
	"context"
	"errors"
	"io"

	"creator-ledger/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage", fx.Provide(ProvideObjectStore))

var ErrNotConfigured = errors.New("object storage not configured")

// ObjectStore keeps fraud evidence blobs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

type minioStore struct {
	client *minio.Client
	bucket string
}

type disabled struct{}

func (disabled) Put(context.Context, string, io.Reader, int64, string) error {
	return ErrNotConfigured
}

func ProvideObjectStore(c *config.Config) (ObjectStore, error) {
	if c.Minio.Endpoint == "" {
		zap.L().Info("MinIO endpoint not set, evidence uploads disabled")
		return disabled{}, nil
	}

	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		zap.L().Warn("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
	} else if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return &minioStore{client: client, bucket: c.Minio.BucketName}, nil
}

func (s *minioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}
