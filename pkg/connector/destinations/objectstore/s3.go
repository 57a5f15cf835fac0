package objectstore

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/logger"
)

const (
	uploadPartSize    = 5 * 1024 * 1024 // 5MB
	uploadConcurrency = 4
)

// putter is the part of manager.Uploader used here.
type putter interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader stores files in an S3 bucket with the multipart upload manager.
type S3Uploader struct {
	loc      Location
	uploader putter
	logger   *zap.Logger
}

func newS3Uploader(ctx context.Context, loc Location, region string) (*S3Uploader, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
		u.Concurrency = uploadConcurrency
	})
	return newS3UploaderWith(loc, uploader), nil
}

func newS3UploaderWith(loc Location, p putter) *S3Uploader {
	return &S3Uploader{
		loc:      loc,
		uploader: p,
		logger: logger.Get().With(zap.String("component", "s3_uploader"),
			zap.String("bucket", loc.Bucket)),
	}
}

// Upload stores localPath under key and returns the s3:// URI.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to open file for upload").
			WithDetail("path", localPath)
	}
	defer f.Close()

	objectKey := u.loc.Key(key)
	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.loc.Bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransport, "failed to upload to S3").
			WithDetail("bucket", u.loc.Bucket).
			WithDetail("key", objectKey)
	}

	uri := u.loc.URI(objectKey)
	u.logger.Info("file uploaded", zap.String("path", localPath), zap.String("uri", uri))
	return uri, nil
}

// Close is a no-op; the SDK client holds no resources that need closing.
func (u *S3Uploader) Close() error { return nil }
