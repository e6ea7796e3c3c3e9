package objectclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/markdave123-py/lessontutor/internal/config"
	"github.com/markdave123-py/lessontutor/internal/core"
)

// maxObjectBytes caps how much of a single lesson file is downloaded.
const maxObjectBytes = 64 << 20

type S3Client struct {
	client *s3.Client
	region string
	bucket string
}

var _ core.ObjectClient = (*S3Client)(nil)

func NewS3Client(ctx context.Context, cfg *cfg.Config) (*S3Client, error) {
	if cfg.AwsAccessKey == "" || cfg.AwsSecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.AwsRegion == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.AwsRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Client{
		client: client,
		region: cfg.AwsRegion,
		bucket: cfg.BucketName,
	}, nil
}

// Bucket is the default bucket lesson resources live in.
func (c *S3Client) Bucket() string { return c.bucket }

// GetFile downloads an object together with the metadata the text cache records.
func (c *S3Client) GetFile(ctx context.Context, bucket, key string) ([]byte, core.ObjectInfo, error) {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	head, err := c.client.HeadObject(ctxGet, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, core.ObjectInfo{}, fmt.Errorf("s3 head failed: %w", err)
	}
	info := core.ObjectInfo{
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: aws.ToString(head.ContentType),
		Generation:  strings.Trim(aws.ToString(head.ETag), `"`),
	}
	if info.Size > maxObjectBytes {
		return nil, info, fmt.Errorf("s3 object %s/%s too large (%d bytes)", bucket, key, info.Size)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, info.Size))
	downloader := manager.NewDownloader(c.client)
	if _, err := downloader.Download(ctxGet, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, info, fmt.Errorf("s3 download failed: %w", err)
	}

	return buf.Bytes(), info, nil
}
