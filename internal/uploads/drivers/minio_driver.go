package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig is the connection to a MinIO (or any S3 compatible) server.
type MinioConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// MinioDriver stores uploads through minio-go. The bucket is created on first use.
type MinioDriver struct {
	client    *minio.Client
	bucket    string
	region    string
	publicURL string

	initOnce sync.Once
	initErr  error
}

func NewMinioDriver(cfg MinioConfig) (*MinioDriver, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	// minio-go wants host[:port], not a URL
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("minio access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init minio client: %w", err)
	}

	return &MinioDriver{
		client:    client,
		bucket:    bucket,
		region:    region,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

func (d *MinioDriver) ensureBucket(ctx context.Context) error {
	d.initOnce.Do(func() {
		exists, err := d.client.BucketExists(ctx, d.bucket)
		if err != nil {
			d.initErr = err
			return
		}
		if exists {
			return
		}
		d.initErr = d.client.MakeBucket(ctx, d.bucket, minio.MakeBucketOptions{Region: d.region})
	})
	return d.initErr
}

func (d *MinioDriver) Save(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := d.ensureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}
	if size < 0 {
		size = -1
	}
	_, err := d.client.PutObject(ctx, d.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

// Get stats the object first so a missing key surfaces here rather than on the first Read.
func (d *MinioDriver) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := checkKey(key); err != nil {
		return nil, "", err
	}
	if err := d.ensureBucket(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to ensure bucket: %w", err)
	}

	obj, err := d.client.GetObject(ctx, d.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", mapMinioError(err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, "", mapMinioError(err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return obj, contentType, nil
}

func (d *MinioDriver) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := d.client.RemoveObject(ctx, d.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if errors.Is(mapMinioError(err), ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete from minio: %w", err)
	}
	return nil
}

func (d *MinioDriver) GenerateURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if d.publicURL != "" {
		return fmt.Sprintf("%s/%s", d.publicURL, key), nil
	}
	if expires == 0 {
		expires = time.Hour
	}
	u, err := d.client.PresignedGetObject(ctx, d.bucket, key, expires, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return u.String(), nil
}

func mapMinioError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return fmt.Errorf("minio request failed: %w", err)
}
