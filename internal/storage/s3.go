package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string // Optional: key prefix for every upload
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage writes artifacts through LocalStorage and mirrors each one to
// an S3 bucket.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
	bucket string
	region string
	prefix string
}

// NewS3Storage creates a new S3Storage writing locally under dir.
func NewS3Storage(ctx context.Context, dir string, cfg S3Config) (*S3Storage, error) {
	local, err := NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &S3Storage{
		LocalStorage: local,
		client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				// S3-compatible stores (MinIO, localstack) want path-style keys.
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		}),
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func loadOptions(cfg S3Config) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return opts
}

// Key returns the object key for name, including the configured prefix.
func (s *S3Storage) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// contentType picks the object content type from the artifact extension.
func contentType(name string) string {
	if strings.HasSuffix(name, ".npy") {
		return "application/x-npy"
	}
	return "application/octet-stream"
}

// UploadToS3 mirrors an artifact under the prefixed key and returns its
// public URL.
func (s *S3Storage) UploadToS3(ctx context.Context, name string, data io.Reader) (string, error) {
	key := s.Key(name)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType(name)),
	}); err != nil {
		return "", fmt.Errorf("mirror %s to s3://%s/%s: %w", name, s.bucket, key, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
