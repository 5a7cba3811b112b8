// Package s3 implements the picstream upload broker on S3-compatible object
// stores using presigned POST requests. The broker keeps no state; the
// policy conditions embedded in the grant are enforced by the object store
// when the client commits the upload.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kavichu/picstream/pkg/picstream"
)

// Config options for the S3 broker
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
}

// Broker is an S3-compatible implementation of the picstream.UploadBroker
// interface.
type Broker struct {
	presignClient *s3.PresignClient
	bucket        string
	config        Config
}

// New creates a new S3-compatible upload broker.
func New(config Config) (*Broker, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	return &Broker{
		presignClient: s3.NewPresignClient(client),
		bucket:        config.Bucket,
		config:        config,
	}, nil
}

// IssueGrant produces a presigned POST authorizing one upload to the exact
// key in the request, with the content-type prefix and byte-size range
// conditions enforced server-side at commit time.
func (b *Broker) IssueGrant(ctx context.Context, req picstream.GrantRequest) (*picstream.UploadGrant, error) {
	if req.Key == "" {
		return nil, fmt.Errorf("%w: object key is required", picstream.ErrGrantFailed)
	}
	if req.MaxSize > 0 && req.MinSize > req.MaxSize {
		return nil, fmt.Errorf("%w: size range %d-%d is inverted", picstream.ErrGrantFailed, req.MinSize, req.MaxSize)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(req.Key),
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}

	var conditions []interface{}
	if req.ContentTypePrefix != "" {
		conditions = append(conditions, []interface{}{"starts-with", "$Content-Type", req.ContentTypePrefix})
	}
	if req.MaxSize > 0 {
		conditions = append(conditions, []interface{}{"content-length-range", req.MinSize, req.MaxSize})
	}

	result, err := b.presignClient.PresignPostObject(ctx, input, func(opts *s3.PresignPostOptions) {
		if req.TTL > 0 {
			opts.Expires = req.TTL
		}
		opts.Conditions = conditions
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned POST: %w", err)
	}

	fields := make(map[string]string, len(result.Values))
	for k, v := range result.Values {
		fields[k] = v
	}

	return &picstream.UploadGrant{
		URL:       result.URL,
		Fields:    fields,
		ExpiresAt: time.Now().Add(req.TTL).UTC(),
	}, nil
}

// PublicURL returns the canonical public address of an object in the
// broker's bucket.
func (b *Broker) PublicURL(objectKey string) string {
	if b.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(b.config.Endpoint, "/"), b.bucket, objectKey)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", b.bucket, objectKey)
}
