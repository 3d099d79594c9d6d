// Package s3bucket stores artifacts in an S3-compatible bucket and hands
// back presigned GET URLs.
package s3bucket

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"comfyworker/internal/ports"
)

type Config struct {
	// EndpointURL is either a service endpoint (http://minio:9000) or a
	// virtual-hosted bucket URL (https://my-bucket.s3.us-east-1.amazonaws.com).
	EndpointURL     string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PresignExpiry   time.Duration
}

type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	endpoint, bucket, err := resolveBucket(cfg.EndpointURL, cfg.Bucket)
	if err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  cfg.PresignExpiry,
	}, nil
}

func (c *Client) Provider() string { return "s3" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(in.ObjectKey),
		Body:   in.Reader,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("s3 put %s: %w", in.ObjectKey, err)
	}

	signed, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(in.ObjectKey),
	}, s3.WithPresignExpires(c.expiry))
	if err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("s3 presign %s: %w", in.ObjectKey, err)
	}

	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size, URL: signed.URL}, nil
}

// resolveBucket returns the service endpoint and bucket name. Without an
// explicit bucket the first host label of a virtual-hosted URL is used.
func resolveBucket(endpointURL, bucket string) (string, string, error) {
	if bucket != "" {
		return endpointURL, bucket, nil
	}
	if endpointURL == "" {
		return "", "", fmt.Errorf("bucket name or endpoint url is required")
	}

	u, err := url.Parse(endpointURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid bucket endpoint url %q", endpointURL)
	}

	name, rest, found := strings.Cut(u.Host, ".")
	if !found || name == "" || !strings.Contains(rest, ".") {
		return "", "", fmt.Errorf("cannot derive bucket name from %q, set BUCKET_NAME", endpointURL)
	}

	u.Host = rest
	u.Path = ""
	return u.String(), name, nil
}
