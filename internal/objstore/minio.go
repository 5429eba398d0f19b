// Package objstore uploads produced rasters to S3-compatible object storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const rasterContentType = "image/tiff"

// Config describes the target bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Minio uploads files with minio-go.
type Minio struct {
	client *minio.Client
	bucket string
	region string

	once      sync.Once
	bucketErr error
}

// New creates an uploader, no request is made until the first upload.
func New(cfg Config) (*Minio, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("objstore: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("objstore: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: minio client: %w", err)
	}
	return &Minio{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Bucket returns the target bucket name.
func (m *Minio) Bucket() string {
	return m.bucket
}

// Upload stores the file at localPath under key, creating the bucket on first
// use if it does not exist.
func (m *Minio) Upload(ctx context.Context, localPath, key string) error {
	m.once.Do(func() {
		m.bucketErr = m.ensureBucket(ctx)
	})
	if m.bucketErr != nil {
		return m.bucketErr
	}
	_, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: rasterContentType,
	})
	if err != nil {
		return fmt.Errorf("objstore: put %s/%s: %w", m.bucket, key, err)
	}
	return nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("objstore: bucket exists %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("objstore: make bucket %s: %w", m.bucket, err)
	}
	return nil
}
