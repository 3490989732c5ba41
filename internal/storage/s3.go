package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"go.uber.org/multierr"
)

// s3DeleteBatch is the DeleteObjects request limit.
const s3DeleteBatch = 1000

// S3Store implements Store on S3 or an S3-compatible service.
type S3Store struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	baseURL  string
}

// NewS3Store builds an S3Store from static credentials, falling back to the
// default AWS credential chain when none are configured.
func NewS3Store(cfg Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}

	awsConfig := &aws.Config{}
	if cfg.Region != "" {
		awsConfig.Region = aws.String(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 session: %w", err)
	}

	return NewS3StoreWithClients(s3.New(sess), s3manager.NewUploader(sess), cfg.Bucket, cfg.BaseURL), nil
}

// NewS3StoreWithClients wires pre-built clients, primarily for tests.
func NewS3StoreWithClients(client s3iface.S3API, uploader s3manageriface.UploaderAPI, bucket, baseURL string) *S3Store {
	return &S3Store{client: client, uploader: uploader, bucket: bucket, baseURL: baseURL}
}

// Put uploads the stream with a multipart-capable uploader.
func (s *S3Store) Put(ctx context.Context, r io.Reader, key, contentType string) (Object, error) {
	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := s.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return Object{}, fmt.Errorf("storage: upload %s: %w", key, err)
	}

	url := out.Location
	if s.baseURL != "" || url == "" {
		url = joinURL(s.baseURL, key)
	}
	return Object{Key: key, URL: url}, nil
}

// DeleteMany removes keys in DeleteObjects-sized batches. Every batch is
// attempted; failures are combined into the returned error.
func (s *S3Store) DeleteMany(ctx context.Context, keys []string) error {
	var errs error
	for start := 0; start < len(keys); start += s3DeleteBatch {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		end := min(start+s3DeleteBatch, len(keys))

		objects := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := s.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("storage: delete objects %d-%d: %w", start, end-1, err))
			continue
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			errs = multierr.Append(errs, fmt.Errorf("storage: delete objects: %d failed, first %s: %s",
				len(out.Errors), aws.StringValue(first.Key), aws.StringValue(first.Message)))
		}
	}
	return errs
}
