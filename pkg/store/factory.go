package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/repository/document"
	"github.com/nimburion/movies/pkg/store/dynamodb"
	"github.com/nimburion/movies/pkg/store/mongodb"
)

// NewStorageAdapter connects to the configured database.
func NewStorageAdapter(cfg config.DatabaseConfig, log logger.Logger) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypeMongoDB:
		return mongodb.NewAdapter(mongodb.Config{
			URL:              cfg.URL,
			Database:         cfg.DatabaseName,
			ConnectTimeout:   cfg.ConnectTimeout,
			OperationTimeout: cfg.QueryTimeout,
			MaxPoolSize:      uint64(max(cfg.MaxOpenConns, 0)),
		}, log)
	case config.DatabaseTypeDynamoDB:
		return dynamodb.NewAdapter(dynamodb.Config{
			Region:           cfg.Region,
			Endpoint:         cfg.Endpoint,
			AccessKeyID:      cfg.AccessKeyID,
			SecretAccessKey:  cfg.SecretAccessKey,
			SessionToken:     cfg.SessionToken,
			Table:            cfg.Collection,
			OperationTimeout: cfg.QueryTimeout,
		}, log)
	case config.DatabaseTypeMemory:
		return memoryAdapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported database.type %q (supported: mongodb, dynamodb, memory)", cfg.Type)
	}
}

// OpenRepository connects to the configured database and returns a traced
// document repository over cfg.Collection together with the adapter that
// owns the connection. Callers close the adapter on shutdown. On MongoDB an
// ascending index is ensured for each of indexed.
func OpenRepository[T any, PT document.EntityPtr[T]](cfg config.DatabaseConfig, log logger.Logger, indexed ...string) (document.Repository[T, string], Adapter, error) {
	adapter, err := NewStorageAdapter(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	var repo document.Repository[T, string]
	switch a := adapter.(type) {
	case *mongodb.Adapter:
		exec, execErr := document.NewMongoDBExecutor(a)
		if execErr == nil {
			repo, err = document.NewMongoRepository[T, PT](exec, cfg.Collection)
		} else {
			err = execErr
		}
		if err == nil {
			err = a.EnsureIndexes(context.Background(), cfg.Collection, indexed)
		}
	case *dynamodb.Adapter:
		exec, execErr := document.NewDynamoDBExecutor(a)
		if execErr == nil {
			repo, err = document.NewDynamoRepository[T, PT](exec, cfg.Collection)
		} else {
			err = execErr
		}
	default:
		repo = document.NewMemoryRepository[T, PT]()
	}
	if err != nil {
		_ = adapter.Close()
		return nil, nil, err
	}

	system := strings.ToLower(strings.TrimSpace(cfg.Type))
	log.Info("record store ready", "type", system, "collection", cfg.Collection)
	return document.NewTracedRepository[T](repo, system, cfg.Collection), adapter, nil
}
