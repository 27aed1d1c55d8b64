package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of *s3.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveConfig holds the object storage settings for audit archives.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string // empty for AWS S3
	Region          string // "auto" for R2
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client for cfg. A custom Endpoint switches to
// path-style addressing for S3-compatible stores.
func NewS3Client(cfg ArchiveConfig) (*s3.Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("archive credentials are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := s3.Options{
		Region: region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts), nil
}

// ArchiveResult describes an uploaded export.
type ArchiveResult struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Records int    `json:"records"`
	Bytes   int    `json:"bytes"`
}

// Archiver uploads JSON exports of the audit log to object storage.
type Archiver struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

// NewArchiver creates an Archiver writing to bucket.
func NewArchiver(client ObjectPutter, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket, now: time.Now}
}

// Archive exports the records matching f as JSON and uploads them under
// audit-log/YYYY/MM/DD/<timestamp>.json.
func (a *Archiver) Archive(ctx context.Context, repo Repository, f Filter) (*ArchiveResult, error) {
	return a.archive(ctx, repo, f, a.now().UTC())
}

// ArchiveDay uploads every record created on day's UTC calendar date under
// that date's prefix. Running it again for the same day writes a new object.
func (a *Archiver) ArchiveDay(ctx context.Context, repo Repository, day time.Time) (*ArchiveResult, error) {
	y, m, d := day.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	f := Filter{From: start, To: start.AddDate(0, 0, 1).Add(-time.Nanosecond)}
	return a.archive(ctx, repo, f, start)
}

func (a *Archiver) archive(ctx context.Context, repo Repository, f Filter, day time.Time) (*ArchiveResult, error) {
	records, err := repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	body, err := exportToJSON(records)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	key := fmt.Sprintf("audit-log/%s/%s.json", day.Format("2006/01/02"), now.Format("20060102T150405.000000000Z"))

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(ExportFormatJSON.ContentType()),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audit archive: %w", err)
	}

	return &ArchiveResult{Bucket: a.bucket, Key: key, Records: len(records), Bytes: len(body)}, nil
}
