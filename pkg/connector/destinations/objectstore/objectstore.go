// Package objectstore copies written files to S3 or Google Cloud Storage.
//
// The destination is a URI such as s3://bucket/prefix or gs://bucket/prefix.
// Each uploaded file lands at <prefix>/<key>.
package objectstore

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/pitchline/pkg/config"
	"github.com/ajitpratap0/pitchline/pkg/connector/core"
	"github.com/ajitpratap0/pitchline/pkg/errors"
)

// Supported URI schemes.
const (
	SchemeS3  = "s3"
	SchemeGCS = "gs"
)

// Location is a parsed object store URI.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseURI splits uri into scheme, bucket and key prefix.
func ParseURI(uri string) (Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid upload uri").WithDetail("uri", uri)
	}
	if u.Scheme != SchemeS3 && u.Scheme != SchemeGCS {
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported upload scheme %q", u.Scheme).
			WithDetail("uri", uri)
	}
	if u.Host == "" {
		return Location{}, errors.New(errors.ErrorTypeConfig, "upload uri has no bucket").WithDetail("uri", uri)
	}
	return Location{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// Key returns the object key for name under the location's prefix.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

// URI renders the full URI of key.
func (l Location) URI(key string) string {
	return l.Scheme + "://" + l.Bucket + "/" + key
}

// New returns an uploader for cfg.URI.
func New(ctx context.Context, cfg config.UploadConfig) (core.Uploader, error) {
	loc, err := ParseURI(cfg.URI)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == SchemeS3 {
		u, err := newS3Uploader(ctx, loc, cfg.Region)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	u, err := newGCSUploader(ctx, loc, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// contentType picks a MIME type from the file extension.
func contentType(localPath string) string {
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".arrow":
		return "application/vnd.apache.arrow.file"
	case ".sql":
		return "application/sql"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
