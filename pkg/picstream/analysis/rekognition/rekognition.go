// Package rekognition implements the picstream analyzer on AWS Rekognition,
// reading uploaded objects straight from the assets bucket.
package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/kavichu/picstream/pkg/picstream"
)

// Config options for the Rekognition analyzer
type Config struct {
	Region        string  // AWS region
	Bucket        string  // bucket holding the uploaded objects
	MinConfidence float32 // moderation confidence floor (default: 50)
}

// Analyzer is an AWS Rekognition implementation of the picstream.Analyzer
// interface.
type Analyzer struct {
	client        *rekognition.Client
	bucket        string
	minConfidence float32
}

// New creates a new Rekognition analyzer.
func New(config Config) (*Analyzer, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.MinConfidence == 0 {
		config.MinConfidence = 50
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(config.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Analyzer{
		client:        rekognition.NewFromConfig(awsCfg),
		bucket:        config.Bucket,
		minConfidence: config.MinConfidence,
	}, nil
}

// DetectModeration screens the object for disallowed content. Any
// moderation label above the confidence floor flags the image.
func (a *Analyzer) DetectModeration(ctx context.Context, objectKey string) (*picstream.ModerationResult, error) {
	out, err := a.client.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         a.imageRef(objectKey),
		MinConfidence: aws.Float32(a.minConfidence),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: detect moderation labels for %s: %v", picstream.ErrAnalysisUnavailable, objectKey, err)
	}

	result := &picstream.ModerationResult{Flagged: len(out.ModerationLabels) > 0}
	for _, label := range out.ModerationLabels {
		result.Labels = append(result.Labels, aws.ToString(label.Name))
	}

	return result, nil
}

// DetectLabels extracts descriptive labels from the object. Rekognition does
// not report pixel dimensions, so the result carries labels only.
func (a *Analyzer) DetectLabels(ctx context.Context, objectKey string) (*picstream.LabelResult, error) {
	out, err := a.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image: a.imageRef(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: detect labels for %s: %v", picstream.ErrAnalysisUnavailable, objectKey, err)
	}

	result := &picstream.LabelResult{}
	for _, label := range out.Labels {
		result.Labels = append(result.Labels, aws.ToString(label.Name))
	}

	return result, nil
}

func (a *Analyzer) imageRef(objectKey string) *types.Image {
	return &types.Image{
		S3Object: &types.S3Object{
			Bucket: aws.String(a.bucket),
			Name:   aws.String(objectKey),
		},
	}
}
