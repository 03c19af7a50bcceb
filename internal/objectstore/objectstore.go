// Package objectstore uploads blobs to an S3-compatible bucket (AWS S3, Cloudflare R2, MinIO).
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/SergeiKhy/linkbox/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrNotConfigured is returned by every upload when the store configuration is incomplete.
var ErrNotConfigured = errors.New("object store is not configured")

// Object describes an uploaded blob.
type Object struct {
	Key string
	URL string
}

// PutObjectAPI is the subset of the S3 client used by the uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader puts objects into a single bucket and builds their public URL.
type S3Uploader struct {
	client    PutObjectAPI
	bucket    string
	publicURL string
	ext       string
}

// New builds an uploader from configuration. An incomplete configuration is not an error here:
// the returned uploader fails each Upload with ErrNotConfigured.
func New(cfg config.ObjectStoreConfig) *S3Uploader {
	if !cfg.Complete() {
		return &S3Uploader{ext: ".csv"}
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(cfg.ResolvedEndpoint()),
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		UsePathStyle: true,
	})

	return NewWithClient(client, cfg.Bucket, cfg.PublicURL)
}

// NewWithClient wires an uploader around an existing client.
func NewWithClient(client PutObjectAPI, bucket, publicURL string) *S3Uploader {
	return &S3Uploader{
		client:    client,
		bucket:    bucket,
		publicURL: publicURL,
		ext:       ".csv",
	}
}

// Configured reports whether uploads can succeed at all.
func (u *S3Uploader) Configured() bool {
	return u.client != nil && u.bucket != "" && u.publicURL != ""
}

// Upload stores data under a fresh random key and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, contentType string) (*Object, error) {
	if !u.Configured() {
		return nil, ErrNotConfigured
	}

	key := uuid.NewString() + u.ext

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put object %s: %w", key, err)
	}

	publicURL, err := PublicURL(u.publicURL, key)
	if err != nil {
		return nil, err
	}

	return &Object{Key: key, URL: publicURL}, nil
}

// PublicURL joins the public base URL of the bucket with an object key.
func PublicURL(base, key string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid public url %q: %w", base, err)
	}

	return baseURL.JoinPath(key).String(), nil
}
