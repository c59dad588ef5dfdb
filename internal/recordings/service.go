// Package recordings stores call recordings in S3-compatible object storage
// and serves time-limited download links.
package recordings

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

type Service struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	log    *logger.Logger
}

func New(cfg config.StorageConfig, log *logger.Logger) (*Service, error) {
	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	ttl := cfg.GetRecordingURLTTL()
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Service{
		client: client,
		bucket: cfg.GetMinioBucketCallRecordings(),
		ttl:    ttl,
		log:    log,
	}, nil
}

// EnsureBucket creates the recordings bucket if it does not exist. Called
// once at startup.
func (s *Service) EnsureBucket(ctx context.Context) error {
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
	s.log.Info("created recordings bucket", "bucket", s.bucket)
	return nil
}

// Upload stores a recording under the given key.
func (s *Service) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload recording %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download link for the stored object.
func (s *Service) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign recording %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes a stored recording.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete recording %s: %w", key, err)
	}
	return nil
}
