package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3Uploader built from scratch.
type S3Config struct {
	Bucket        string
	Region        string
	AccessKey     string // optional; the default credential chain is used when empty
	SecretKey     string
	Endpoint      string // optional; S3-compatible endpoint, path-style addressing
	PublicBaseURL string // optional; defaults to the bucket's virtual-hosted URL
}

// S3Uploader uploads files readable from disk to an S3 bucket.
type S3Uploader struct {
	client  S3API
	bucket  string
	baseURL string

	readFile func(string) ([]byte, error)
}

// NewS3Uploader creates an uploader that returns URLs under publicBaseURL.
func NewS3Uploader(client S3API, bucket, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:   client,
		bucket:   bucket,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		readFile: os.ReadFile,
	}
}

// NewS3UploaderFromConfig loads AWS configuration and creates an uploader.
func NewS3UploaderFromConfig(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, awsCfg.Region)
	}
	return NewS3Uploader(client, cfg.Bucket, base), nil
}

// Upload reads the file behind localRef and stores it at destPath.
func (u *S3Uploader) Upload(ctx context.Context, localRef Ref, destPath string) (string, error) {
	p := localRef.LocalPath()
	if p == "" {
		return "", fmt.Errorf("media: %q is not readable from disk", string(localRef))
	}
	data, err := u.readFile(p)
	if err != nil {
		return "", fmt.Errorf("media: read %s: %w", p, err)
	}

	key := strings.TrimLeft(destPath, "/")
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("media: put %s: %w", key, err)
	}
	return u.baseURL + "/" + key, nil
}
