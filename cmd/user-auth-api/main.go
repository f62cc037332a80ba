package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sirupsen/logrus"

	"github.com/traffic-tacos/user-auth-api/internal/auth"
	"github.com/traffic-tacos/user-auth-api/internal/config"
	"github.com/traffic-tacos/user-auth-api/internal/directory"
	"github.com/traffic-tacos/user-auth-api/internal/logging"
	"github.com/traffic-tacos/user-auth-api/internal/metrics"
	"github.com/traffic-tacos/user-auth-api/internal/middleware"
	"github.com/traffic-tacos/user-auth-api/internal/password"
	"github.com/traffic-tacos/user-auth-api/internal/routes"
	"github.com/traffic-tacos/user-auth-api/internal/token"
	"github.com/traffic-tacos/user-auth-api/internal/tracing"
	"github.com/traffic-tacos/user-auth-api/internal/users"
)

func main() {
	// Load configuration; a JWT secret or JWT_SECRET_NAME is required
	cfg, err := config.LoadFromEnvironment()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg)

	if err := metrics.Init(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize metrics")
	}

	tracingShutdown, err := tracing.Init(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to setup tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shutdown tracing")
		}
	}()

	dir, err := connectDirectory(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize user directory")
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.WithError(err).Error("Failed to close user directory")
		}
	}()

	codec, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create token codec")
	}
	hasher := password.NewBcryptHasher(cfg.Password.BcryptCost)

	middlewareManager, err := middleware.NewManager(cfg, auth.NewGate(codec, dir, logger), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize middleware manager")
	}
	defer middlewareManager.Close()

	app := routes.NewApp(cfg, logger)
	routes.Setup(app, cfg, logger, middlewareManager, routes.Services{
		Auth:      auth.NewService(dir, hasher, codec, cfg.JWT.Lifetime(), logger),
		Users:     users.NewService(dir, logger),
		Directory: dir,
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Gracefully shutting down...")
		if err := app.Shutdown(); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":      cfg.Server.Port,
		"directory": cfg.Directory.Backend,
		"algorithm": codec.Algorithm(),
	}).Info("Starting user auth API server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Error("Server stopped")
	}
}

// connectDirectory opens the configured backend and checks it once. An
// unreachable directory is logged, not fatal; /health reports it as degraded.
func connectDirectory(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (directory.Directory, error) {
	var backend directory.Directory

	switch cfg.Directory.Backend {
	case "memory":
		logger.Warn("Using in-memory user directory; records are lost on restart")
		backend = directory.NewMemory()
	default:
		client, err := newDynamoClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		backend = directory.NewDynamoDB(client, cfg.DynamoDB.UsersTableName, cfg.DynamoDB.UsernamesTableName)
	}

	dir := directory.Instrument(backend, cfg.Directory.Backend, cfg.Directory.Timeout)

	if err := dir.Ping(ctx); err != nil {
		logger.WithError(err).Warn("User directory is not reachable, continuing")
	} else {
		logger.WithField("backend", cfg.Directory.Backend).Info("User directory connection established")
	}
	return dir, nil
}

func newDynamoClient(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.DynamoDB.Region),
	}
	if cfg.AWS.Profile != "" {
		// Use specific profile for local development
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	// IRSA credentials are picked up from the environment when no profile is set
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})

	logger.WithFields(logrus.Fields{
		"region":          cfg.DynamoDB.Region,
		"users_table":     cfg.DynamoDB.UsersTableName,
		"usernames_table": cfg.DynamoDB.UsernamesTableName,
		"endpoint":        cfg.DynamoDB.Endpoint,
	}).Info("DynamoDB client initialized")

	return client, nil
}
