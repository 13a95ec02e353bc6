// Package delivery moves finished export artifacts to their destination,
// either the local filesystem or an S3 bucket.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/geopulse/go-tilegen/tilegen"
)

// Sink stores a finished artifact and returns its destination, a filesystem
// path or object URL.
type Sink interface {
	Store(ctx context.Context, artifact *tilegen.Artifact) (string, error)
}

// FileSink writes artifacts into a directory, named by the artifact's own
// filename.
type FileSink struct {
	Dir string
}

func (s FileSink) Store(_ context.Context, artifact *tilegen.Artifact) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Blob, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// S3Sink uploads artifacts to a bucket under an optional key prefix.
type S3Sink struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

func NewS3Sink(bucket string, prefix string) (*S3Sink, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}

	return &S3Sink{
		uploader: s3manager.NewUploader(sess),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

func (s *S3Sink) Store(ctx context.Context, artifact *tilegen.Artifact) (string, error) {
	key := artifact.Filename
	if s.prefix != "" {
		key = s.prefix + "/" + artifact.Filename
	}

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(artifact.Blob),
	})
	if err != nil {
		return "", fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
