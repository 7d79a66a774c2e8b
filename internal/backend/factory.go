package backend

import (
	"context"
	"fmt"
	"log/slog"

	"hisaab/internal/storage"
	"hisaab/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var res *BackendResult
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		res = &BackendResult{Store: repo, Cleanup: repo.Close}
	case MemoryBackend:
		f.logger.Warn("Using in-memory backend, data is lost on restart")
		store := memory.New()
		res = &BackendResult{Store: store, Cleanup: store.Close}
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if err := res.Store.Ping(ctx); err != nil {
		_ = res.Cleanup()
		return nil, fmt.Errorf("backend %s not reachable: %w", config.Type, err)
	}
	return res, nil
}
