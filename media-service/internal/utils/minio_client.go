package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tattoo-app/media-service/internal/config"
)

// MinioStorage puts objects into one public bucket and returns their URL.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStorage connects and makes sure the bucket exists and is publicly
// readable, images are linked directly from chat and the catalog.
func NewMinioStorage(ctx context.Context, cfg config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if err := ensurePublicBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}
	return &MinioStorage{client: client, bucket: cfg.Bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func ensurePublicBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	policy, err := readOnlyPolicy(bucket)
	if err != nil {
		return err
	}
	if err := client.SetBucketPolicy(ctx, bucket, policy); err != nil {
		return fmt.Errorf("set policy on %s: %w", bucket, err)
	}
	return nil
}

// readOnlyPolicy разрешает анонимный GET на объекты бакета
func readOnlyPolicy(bucket string) (string, error) {
	doc := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{{
			"Effect":    "Allow",
			"Principal": map[string][]string{"AWS": {"*"}},
			"Action":    []string{"s3:GetObject"},
			"Resource":  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	}
	b, err := json.Marshal(doc)
	return string(b), err
}

func (s *MinioStorage) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key)
}

func (s *MinioStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(key), nil
}
