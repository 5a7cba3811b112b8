package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the environment variable surface, read with cleanenv.
type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"`
	PostsTable   string `env:"POSTS_TABLE" env-default:"posts"`
	ImagesTable  string `env:"IMAGES_TABLE" env-default:"images"`
	UsersTable   string `env:"USERS_TABLE" env-default:"users"`

	BrokerType    string `env:"UPLOAD_BROKER" env-default:"signed"`
	SignedSecret  string `env:"UPLOAD_SIGNING_SECRET" env-default:"development-secret"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	S3Region          string `env:"S3_REGION" env-default:"us-east-1"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`

	AnalyzerType string `env:"ANALYZER" env-default:"memory"`
	QueueURL     string `env:"NOTIFICATIONS_QUEUE_URL"`
	JWTSecret    string `env:"JWT_SECRET" env-default:"development-secret"`
}

// WithEnv overrides configuration from environment variables.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return err
		}

		c.Port = env.Port
		c.Environment = env.Environment
		c.DatabaseURL = env.DatabaseURL
		c.DatabaseType = env.DatabaseType
		c.PostsTable = env.PostsTable
		c.ImagesTable = env.ImagesTable
		c.UsersTable = env.UsersTable
		c.BrokerType = env.BrokerType
		c.SignedSecret = env.SignedSecret
		c.PublicBaseURL = env.PublicBaseURL
		c.S3 = S3Config{
			Region:          env.S3Region,
			Bucket:          env.S3Bucket,
			AccessKeyID:     env.S3AccessKeyID,
			SecretAccessKey: env.S3SecretAccessKey,
			Endpoint:        env.S3Endpoint,
			UsePathStyle:    env.S3UsePathStyle,
		}
		c.AnalyzerType = env.AnalyzerType
		c.QueueURL = env.QueueURL
		c.JWTSecret = env.JWTSecret

		// Postgres URLs imply the postgres store without an explicit type.
		if c.DatabaseURL != "" && c.DatabaseType == "memory" {
			c.DatabaseType = "postgres"
		}

		return nil
	}
}
