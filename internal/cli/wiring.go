package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/servicediscovery"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/cartograph/cartograph/internal/config"
	"github.com/cartograph/cartograph/internal/graph"
	"github.com/cartograph/cartograph/internal/lock"
	"github.com/cartograph/cartograph/internal/queue"
	"github.com/cartograph/cartograph/internal/registry"
)

// buildLogger configures the process-wide slog logger from config, with
// the --verbose flag forcing debug level.
func buildLogger(cfg config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// buildLockStore selects the lock substrate from config: DynamoDB when a
// table is configured, SQLite when a path is, in-process memory otherwise.
// The caller must invoke the returned cleanup.
func buildLockStore(ctx context.Context, cfg config.Config) (lock.Store, func() error, error) {
	switch {
	case cfg.Lock.Table != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		store := lock.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Lock.Table)
		return store, func() error { return nil }, nil

	case cfg.Lock.SQLitePath != "":
		store, err := lock.OpenSQLite(cfg.Lock.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return lock.NewMemoryStore(), func() error { return nil }, nil
	}
}

// buildGraphStore opens the configured Neo4j store and verifies it is
// reachable. The caller must Close the returned store.
func buildGraphStore(ctx context.Context, cfg config.Config) (*graph.Neo4j, error) {
	if cfg.Graph.URI == "" {
		return nil, fmt.Errorf("graph.uri is not configured")
	}
	store, err := graph.NewNeo4j(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
	if err != nil {
		return nil, err
	}
	if err := store.VerifyConnectivity(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("graph unreachable: %w", err)
	}
	return store, nil
}

// buildQueue opens the SQS dispatch channel from config.
func buildQueue(ctx context.Context, cfg config.Config) (*queue.SQS, error) {
	if cfg.Queue.URL == "" {
		return nil, fmt.Errorf("queue.url is not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return queue.NewSQS(sqs.NewFromConfig(awsCfg), cfg.Queue.URL, cfg.Queue.WaitSeconds), nil
}

// buildRegistry opens the Cloud Map reader from config.
func buildRegistry(ctx context.Context, cfg config.Config) (*registry.CloudMap, error) {
	if cfg.Registry.NamespaceID == "" {
		return nil, fmt.Errorf("registry.namespace_id is not configured")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return registry.NewCloudMap(servicediscovery.NewFromConfig(awsCfg), cfg.Registry.NamespaceID), nil
}
