package content

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ILLUVRSE/abm-engine/internal/models"
)

// S3CatalogLoader fetches the published catalog document from object
// storage. Region and credentials come from the environment (AWS_REGION,
// AWS_PROFILE, AWS_ACCESS_KEY_ID/SECRET etc.).
type S3CatalogLoader struct {
	bucket     string
	key        string
	downloader *manager.Downloader
}

// NewS3CatalogLoader creates a loader for s3://<bucket>/<key>.
func NewS3CatalogLoader(ctx context.Context, bucket, key string) (*S3CatalogLoader, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("catalog bucket and key required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3CatalogLoader{
		bucket:     bucket,
		key:        key,
		downloader: manager.NewDownloader(client),
	}, nil
}

// Load downloads and parses the catalog document.
func (l *S3CatalogLoader) Load(ctx context.Context) ([]models.ContentItem, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := l.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		return nil, fmt.Errorf("download catalog s3://%s/%s: %w", l.bucket, l.key, err)
	}
	return ParseCatalog(buf.Bytes())
}
