// Package objstore publishes converted scenes to an S3-compatible object store.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stevecastle/sarview/appconfig"
)

// ErrNoBucket is returned when publishing is requested without a bucket.
var ErrNoBucket = errors.New("no S3 bucket configured")

// Publisher uploads local files under object keys.
type Publisher interface {
	Upload(ctx context.Context, key, path string) error
}

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher writes objects into one bucket below a key prefix.
type S3Publisher struct {
	Bucket string
	Prefix string
	client putObjectAPI
}

// NewS3Publisher builds a client from the S3 settings. Static credentials are
// used when both keys are set; otherwise the default AWS credential chain
// applies.
func NewS3Publisher(ctx context.Context, c appconfig.S3) (*S3Publisher, error) {
	if c.Bucket == "" {
		return nil, ErrNoBucket
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})
	return &S3Publisher{Bucket: c.Bucket, Prefix: c.Prefix, client: client}, nil
}

// Key returns the object key a local file is stored under.
func (p *S3Publisher) Key(file string) string {
	return path.Join(strings.Trim(p.Prefix, "/"), filepath.Base(file))
}

// Upload stores the file at path under key.
func (p *S3Publisher) Upload(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	ct := mime.TypeByExtension(filepath.Ext(file))
	if ct == "" {
		ct = "application/octet-stream"
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ct),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %s", p.Bucket, key, Describe(err))
	}
	log.Printf("Uploaded %s to s3://%s/%s", filepath.Base(file), p.Bucket, key)
	return nil
}

// PublishAll uploads every file under its default key and returns the keys
// written. It stops at the first failure.
func (p *S3Publisher) PublishAll(ctx context.Context, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		k := p.Key(f)
		if err := p.Upload(ctx, k, f); err != nil {
			return keys, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Describe renders an SDK error with the service error code when one is available.
func Describe(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return fmt.Sprintf("%s: %s", ae.ErrorCode(), ae.ErrorMessage())
	}
	return err.Error()
}
