package minio

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fogsly/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewStorage))

func registerClient(c *config.Config) *minio.Client {
	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Fatal("failed to create MinIO client", zap.Error(err))
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		zap.L().Fatal("failed to check if bucket exists", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			zap.L().Fatal("failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		}
	}

	zap.L().Info("MinIO client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.String("bucket", c.Minio.BucketName))
	return client
}

// Storage stores user media (ad videos, avatars, payment screenshots) and returns
// the URL clients load them from.
type Storage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, objectPath string) error
}

type storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewStorage(client *minio.Client, c *config.Config) Storage {
	publicURL := c.Minio.PublicURL
	if publicURL == "" {
		scheme := "http"
		if c.Minio.Secure {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, c.Minio.Endpoint, c.Minio.BucketName)
	}

	return &storage{
		client:    client,
		bucket:    c.Minio.BucketName,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *storage) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := s.client.PutObject(ctx, s.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zap.L().Error("failed to upload object", zap.String("object", objectPath), zap.Error(err))
		return "", err
	}

	return s.publicURL + "/" + info.Key, nil
}

func (s *storage) Remove(ctx context.Context, objectPath string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{})
}
