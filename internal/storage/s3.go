package storage

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	commonerrors "github.com/pixfeed/pixfeed/backend/internal/common/errors"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	"github.com/pixfeed/pixfeed/backend/internal/observability/metrics"
)

var unsafeKeyChars = regexp.MustCompile(`[\s()]+`)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

type S3Storage struct {
	client *s3.Client
	bucket string
	region string
	log    *logger.Logger
}

func NewS3Storage(ctx context.Context, cfg S3Config, log *logger.Logger) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		log:    log,
	}, nil
}

// Put stores data under a timestamped key derived from suggestedName.
// Whitespace and parentheses are folded into underscores so the key stays
// URL-safe.
func (s *S3Storage) Put(ctx context.Context, data []byte, suggestedName string) (StoredObject, error) {
	start := time.Now()

	key := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), unsafeKeyChars.ReplaceAllString(suggestedName, "_"))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})

	metrics.StorageOpDurationSeconds.WithLabelValues("put").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageOpErrors.WithLabelValues("put").Inc()
		return StoredObject{}, commonerrors.ErrStorageError.WithCause(err)
	}

	return StoredObject{
		URL: s.objectURL(key),
		Key: key,
	}, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	start := time.Now()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	metrics.StorageOpDurationSeconds.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageOpErrors.WithLabelValues("delete").Inc()
		return commonerrors.ErrStorageError.WithCause(err)
	}

	return nil
}

func (s *S3Storage) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
