package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	appconfig "ms-resale/internal/config"
	"ms-resale/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ Store = (*S3Store)(nil)

// S3Store writes objects to any S3-compatible backend (AWS S3, MinIO, ...).
type S3Store struct {
	client        *s3.Client
	endpoint      string
	publicBaseURL string
	usePathStyle  bool
	log           *logger.Logger
}

type S3Option func(*S3Store)

func WithLogger(log *logger.Logger) S3Option {
	return func(s *S3Store) {
		s.log = log
	}
}

// WithPublicBaseURL serves objects from a CDN or proxy instead of the endpoint.
func WithPublicBaseURL(base string) S3Option {
	return func(s *S3Store) {
		s.publicBaseURL = strings.TrimRight(base, "/")
	}
}

func NewS3Store(ctx context.Context, cfg appconfig.StorageConfig, opts ...S3Option) (*S3Store, error) {
	if cfg.AccessKeyID == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3Store{
		client:        client,
		endpoint:      endpoint,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		usePathStyle:  cfg.UsePathStyle,
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.endpoint == "" {
		store.endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	return store, nil
}

// EnsureBuckets creates missing buckets. Call it during startup.
func (s *S3Store) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		if err == nil {
			continue
		}

		var notFound *types.NotFound
		var noSuchBucket *types.NoSuchBucket
		if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}

		s.log.Info("STORAGE", fmt.Sprintf("Creating bucket %s", bucket))
		_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
		if err != nil {
			var alreadyOwned *types.BucketAlreadyOwnedByYou
			if errors.As(err, &alreadyOwned) {
				continue
			}
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (s *S3Store) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		s.log.Error("STORAGE", fmt.Sprintf("Upload %s/%s failed: %v", bucket, path, err))
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (s *S3Store) PublicURL(bucket, path string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, path)
	}
	if s.usePathStyle {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, bucket, path)
	}
	scheme, host, found := strings.Cut(s.endpoint, "://")
	if !found {
		return fmt.Sprintf("https://%s.%s/%s", bucket, s.endpoint, path)
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, bucket, host, path)
}
