package health

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BucketHeader is the subset of *s3.Client the bucket checker uses.
type BucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// BucketChecker implements health checking for the audit archive bucket.
type BucketChecker struct {
	client BucketHeader
	bucket string
}

// NewBucketChecker creates a new object storage health checker.
func NewBucketChecker(client BucketHeader, bucket string) *BucketChecker {
	return &BucketChecker{client: client, bucket: bucket}
}

// HealthCheck confirms the bucket exists and the credentials can reach it.
func (b *BucketChecker) HealthCheck(ctx context.Context) error {
	if b.bucket == "" {
		return fmt.Errorf("archive bucket not configured")
	}
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)}); err != nil {
		return fmt.Errorf("failed to reach archive bucket: %w", err)
	}
	return nil
}
