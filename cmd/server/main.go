package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/joho/godotenv"

	"github.com/kavichu/picstream/pkg/picstream/api"
	"github.com/kavichu/picstream/pkg/picstream/config"
	sqsconsumer "github.com/kavichu/picstream/pkg/picstream/notify/sqs"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := serverConfig.Build(ctx)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	tokenAuth := jwtauth.New("HS256", []byte(serverConfig.JWTSecret), nil)
	handler := api.NewHandler(components.Service, components.Pipeline, tokenAuth)

	// Set up router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// Mount routes
	r.Mount("/api", handler.Routes())

	// Add a simple health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start the upload notification consumer when a queue is configured.
	if serverConfig.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(serverConfig.S3.Region))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		consumer, err := sqsconsumer.NewConsumer(awssqs.NewFromConfig(awsCfg), serverConfig.QueueURL, components.Pipeline)
		if err != nil {
			log.Fatalf("Failed to create notification consumer: %v", err)
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Fatalf("Notification consumer error: %v", err)
			}
		}()
		log.Printf("Notification consumer polling %s", serverConfig.QueueURL)
	}

	// Create server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s (env: %s)", serverConfig.Port, serverConfig.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	cancel()

	// Create a deadline to wait for
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
