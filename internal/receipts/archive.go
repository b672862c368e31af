package receipts

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"coffee-backend/internal/config"
	"coffee-backend/internal/models"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads rendered receipts to an S3-compatible bucket.
type Archiver struct {
	client objectPutter
	bucket string
	log    *zap.Logger
}

// NewArchiver builds an S3 client from the receipts config section.
func NewArchiver(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Archiver, error) {
	rc := cfg.Receipts
	if rc.Bucket == "" {
		return nil, errors.New("receipts bucket is required")
	}
	if rc.AccessKey == "" || rc.SecretKey == "" {
		return nil, errors.New("receipts access key and secret key are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			rc.AccessKey,
			rc.SecretKey,
			"",
		)),
		awsconfig.WithRegion(rc.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure S3 client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if rc.Endpoint != "" {
			o.BaseEndpoint = aws.String(rc.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchiver(client, rc.Bucket, log), nil
}

func newArchiver(client objectPutter, bucket string, log *zap.Logger) *Archiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archiver{client: client, bucket: bucket, log: log}
}

// Archive renders result and uploads it under ObjectKey. Uploading the same
// allocation twice overwrites the object with identical content.
func (a *Archiver) Archive(ctx context.Context, result *models.AllocationResult) error {
	body, err := Render(result)
	if err != nil {
		return err
	}
	key := ObjectKey(result.AllocationID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload receipt %s: %w", key, err)
	}
	a.log.Debug("receipt archived", zap.String("bucket", a.bucket), zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}
