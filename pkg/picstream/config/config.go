// Package config assembles picstream components from declarative
// configuration. Table names, bucket identifiers, and policy knobs are all
// explicit here and passed into each component at construction; nothing in
// the library reads process-wide state.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kavichu/picstream/pkg/picstream"
	memoryanalysis "github.com/kavichu/picstream/pkg/picstream/analysis/memory"
	"github.com/kavichu/picstream/pkg/picstream/analysis/rekognition"
	s3broker "github.com/kavichu/picstream/pkg/picstream/broker/s3"
	signedbroker "github.com/kavichu/picstream/pkg/picstream/broker/signed"
	memorystore "github.com/kavichu/picstream/pkg/picstream/store/memory"
	postgresstore "github.com/kavichu/picstream/pkg/picstream/store/postgres"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		PostsTable:   "posts",
		ImagesTable:  "images",
		UsersTable:   "users",
		BrokerType:   "signed",
		SignedSecret: "development-secret",
		AnalyzerType: "memory",
	}
}

// ServerConfig represents server configuration for the picstream service.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	PostsTable   string
	ImagesTable  string
	UsersTable   string

	// Upload broker configuration
	BrokerType    string // "s3", "signed"
	SignedSecret  string
	PublicBaseURL string
	S3            S3Config

	// Analyzer configuration
	AnalyzerType string // "rekognition", "memory"

	// Notification configuration
	QueueURL string // SQS queue of S3 event notifications; empty disables the consumer

	// Authentication
	JWTSecret string
}

// S3Config carries the object-store settings shared by the S3 broker and
// the Rekognition analyzer.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database url is required when using postgres")
	}

	switch c.BrokerType {
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using the s3 broker")
		}
	case "signed":
		if c.SignedSecret == "" {
			return errors.New("signing secret is required when using the signed broker")
		}
	default:
		return errors.New("broker type must be 's3' or 'signed'")
	}

	switch c.AnalyzerType {
	case "rekognition":
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using the rekognition analyzer")
		}
	case "memory":
	default:
		return errors.New("analyzer type must be 'rekognition' or 'memory'")
	}

	return nil
}

// Components holds the assembled service graph.
type Components struct {
	Service  picstream.Service
	Pipeline *picstream.Pipeline
	Images   picstream.RecordStore
	Broker   picstream.UploadBroker
	Analyzer picstream.Analyzer
}

// Build creates the service and pipeline from the configuration.
func (c *ServerConfig) Build(ctx context.Context) (*Components, error) {
	posts, images, users, err := c.buildStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build stores: %w", err)
	}

	broker, publicURL, err := c.buildBroker()
	if err != nil {
		return nil, fmt.Errorf("failed to build upload broker: %w", err)
	}

	analyzer, err := c.buildAnalyzer()
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer: %w", err)
	}

	svc, err := picstream.New(
		picstream.WithPostStore(posts),
		picstream.WithImageStore(images),
		picstream.WithUserStore(users),
		picstream.WithUploadBroker(broker),
	)
	if err != nil {
		return nil, err
	}

	pipelineOpts := []picstream.PipelineOption{}
	if publicURL != nil {
		pipelineOpts = append(pipelineOpts, picstream.WithPublicURLFunc(publicURL))
	}
	pipeline, err := picstream.NewPipeline(images, analyzer, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	return &Components{
		Service:  svc,
		Pipeline: pipeline,
		Images:   images,
		Broker:   broker,
		Analyzer: analyzer,
	}, nil
}

func (c *ServerConfig) buildStores(ctx context.Context) (posts, images picstream.RecordStore, users picstream.UserStore, err error) {
	switch c.DatabaseType {
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}

		postStore, err := postgresstore.NewStoreWithPool(pool, c.PostsTable)
		if err != nil {
			return nil, nil, nil, err
		}
		imageStore, err := postgresstore.NewStoreWithPool(pool, c.ImagesTable)
		if err != nil {
			return nil, nil, nil, err
		}
		userStore, err := postgresstore.NewUserStoreWithPool(pool, c.UsersTable)
		if err != nil {
			return nil, nil, nil, err
		}

		for _, m := range []interface {
			Migrate(context.Context) error
		}{postStore, imageStore, userStore} {
			if err := m.Migrate(ctx); err != nil {
				return nil, nil, nil, err
			}
		}

		return postStore, imageStore, userStore, nil
	default:
		return memorystore.NewStore(), memorystore.NewStore(), memorystore.NewUserStore(), nil
	}
}

func (c *ServerConfig) buildBroker() (picstream.UploadBroker, func(string) string, error) {
	switch c.BrokerType {
	case "s3":
		broker, err := s3broker.New(s3broker.Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Endpoint:        c.S3.Endpoint,
			UsePathStyle:    c.S3.UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return broker, broker.PublicURL, nil
	default:
		opts := []signedbroker.BrokerOption{}
		if c.PublicBaseURL != "" {
			opts = append(opts, signedbroker.WithBaseURL(c.PublicBaseURL))
		}
		broker, err := signedbroker.New([]byte(c.SignedSecret), opts...)
		if err != nil {
			return nil, nil, err
		}
		return broker, nil, nil
	}
}

func (c *ServerConfig) buildAnalyzer() (picstream.Analyzer, error) {
	switch c.AnalyzerType {
	case "rekognition":
		return rekognition.New(rekognition.Config{
			Region: c.S3.Region,
			Bucket: c.S3.Bucket,
		})
	default:
		return memoryanalysis.New(), nil
	}
}
