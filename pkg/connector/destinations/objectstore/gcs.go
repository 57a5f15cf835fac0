package objectstore

import (
	"context"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/pitchline/pkg/errors"
	"github.com/ajitpratap0/pitchline/pkg/logger"
)

// GCSUploader stores files in a Google Cloud Storage bucket.
type GCSUploader struct {
	loc    Location
	client *storage.Client
	bucket *storage.BucketHandle
	logger *zap.Logger
}

func newGCSUploader(ctx context.Context, loc Location, credentialsFile string) (*GCSUploader, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}

	return &GCSUploader{
		loc:    loc,
		client: client,
		bucket: client.Bucket(loc.Bucket),
		logger: logger.Get().With(zap.String("component", "gcs_uploader"),
			zap.String("bucket", loc.Bucket)),
	}, nil
}

// Upload stores localPath under key and returns the gs:// URI.
func (u *GCSUploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeIO, "failed to open file for upload").
			WithDetail("path", localPath)
	}
	defer f.Close()

	objectKey := u.loc.Key(key)
	w := u.bucket.Object(objectKey).NewWriter(ctx)
	w.ContentType = contentType(localPath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, errors.ErrorTypeTransport, "failed to upload to GCS").
			WithDetail("bucket", u.loc.Bucket).
			WithDetail("key", objectKey)
	}
	// the object is only committed on Close
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTransport, "failed to finalize GCS object").
			WithDetail("bucket", u.loc.Bucket).
			WithDetail("key", objectKey)
	}

	uri := u.loc.URI(objectKey)
	u.logger.Info("file uploaded", zap.String("path", localPath), zap.String("uri", uri))
	return uri, nil
}

// Close releases the storage client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
