// Package publish uploads finished archives to object storage.
package publish

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"kobomedia/pkg/config"
	"kobomedia/pkg/logger"
)

// S3Publisher uploads archives to an S3 bucket
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
	logger logger.Logger
}

// NewS3Publisher builds an S3 client from cfg. Credentials come from cfg
// when both keys are set, otherwise from the default AWS chain.
func NewS3Publisher(ctx context.Context, cfg config.S3Config, maxAttempts int, log logger.Logger) (*S3Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	awsCfg, err := buildAWSConfig(ctx, cfg, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// S3-compatible stores often reject the newer default checksums
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: log,
	}, nil
}

func buildAWSConfig(ctx context.Context, cfg config.S3Config, maxAttempts int) (aws.Config, error) {
	var optFns []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	if maxAttempts > 0 {
		optFns = append(optFns, awsconfig.WithRetryMaxAttempts(maxAttempts))
	}

	return awsconfig.LoadDefaultConfig(ctx, optFns...)
}

// ObjectKey returns the key an asset archive is stored under
func ObjectKey(prefix, assetUID string) string {
	return prefix + assetUID + ".zip"
}

// Publish uploads the archive at path and returns its s3:// URL
func (p *S3Publisher) Publish(ctx context.Context, path, assetUID string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	key := ObjectKey(p.prefix, assetUID)
	start := time.Now()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/zip"),
		Metadata: map[string]string{
			"asset-uid": assetUID,
		},
	})
	if err != nil {
		p.logger.ErrorWithFields("failed to put object", map[string]interface{}{
			"bucket": p.bucket,
			"key":    key,
			"error":  err.Error(),
		})
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	url := fmt.Sprintf("s3://%s/%s", p.bucket, key)
	p.logger.InfoWithFields("archive published", map[string]interface{}{
		"url":         url,
		"size_bytes":  info.Size(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return url, nil
}
