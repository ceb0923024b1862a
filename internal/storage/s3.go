package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink stores media in an S3-compatible bucket (AWS S3, MinIO, etc.).
type S3Sink struct {
	client        *s3.Client
	bucket        string
	prefix        string
	publicBaseURL string
}

var _ Sink = (*S3Sink)(nil)

type S3Options struct {
	Client *s3.Client
	Bucket string
	Prefix string // optional key prefix, e.g. "media/"
	// PublicBaseURL is the URL the bucket is served from (CDN or
	// website endpoint). Defaults to the virtual-hosted S3 URL.
	PublicBaseURL string
	Region        string
}

func NewS3Sink(opts S3Options) *S3Sink {
	base := strings.TrimSuffix(opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	return &S3Sink{
		client:        opts.Client,
		bucket:        opts.Bucket,
		prefix:        opts.Prefix,
		publicBaseURL: base,
	}
}

func (s *S3Sink) objectKey(key string) string {
	if s.prefix != "" {
		return s.prefix + key
	}
	return key
}

func (s *S3Sink) Put(ctx context.Context, obj Object) (string, error) {
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.objectKey(obj.Key)),
		Body:          bytes.NewReader(obj.Data),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(contentType),
		Metadata:      obj.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %q: %w", obj.Key, err)
	}

	return s.publicBaseURL + "/" + s.objectKey(obj.Key), nil
}
