// Package storage implements blob retrieval for stored inbound messages.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Fetcher retrieves raw message bytes by storage key. Retrieval failures
// are propagated, not retried.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// GetObjectAPI is the interface for the S3 GetObject operation.
// Used for testing with mock implementations.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3FetcherConfig holds the configuration for creating an S3Fetcher.
type S3FetcherConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// S3Fetcher retrieves stored messages from an S3 bucket.
type S3Fetcher struct {
	bucket string
	client GetObjectAPI
}

// New creates a new S3Fetcher with the given configuration.
func New(ctx context.Context, cfg S3FetcherConfig) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Fetcher{
		bucket: cfg.Bucket,
		client: s3.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates an S3Fetcher with a custom client, used for testing.
func NewWithClient(bucket string, client GetObjectAPI) *S3Fetcher {
	return &S3Fetcher{
		bucket: bucket,
		client: client,
	}
}

// Fetch retrieves the object at key and returns its full contents.
func (f *S3Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", f.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", f.bucket, key, err)
	}
	return data, nil
}
