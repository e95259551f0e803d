package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/storage/postgres"
	"github.com/chrissnell/storemonitor/internal/storage/sqlite"
	"github.com/chrissnell/storemonitor/pkg/config"
	"go.uber.org/zap"
)

// HealthCheckInterval is how often the active backend is pinged
const HealthCheckInterval = 30 * time.Second

// StorageManager holds our active storage backend and its health
type StorageManager struct {
	Store   storage.Store
	Backend string
	Health  *storage.HealthManager
}

// OpenStore connects to the backend named in the storage configuration
func OpenStore(ctx context.Context, c config.StorageData) (storage.Store, error) {
	switch c.Backend {
	case config.BackendSQLite:
		if c.SQLite == nil {
			return nil, fmt.Errorf("sqlite backend selected but not configured")
		}
		return sqlite.New(ctx, c.SQLite.Path)
	case config.BackendPostgres:
		if c.Postgres == nil {
			return nil, fmt.Errorf("postgres backend selected but not configured")
		}
		return postgres.New(ctx, c.Postgres.ConnectionString)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", c.Backend)
	}
}

// NewStorageManager opens the configured backend and starts monitoring its health
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	store, err := OpenStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("could not open %s storage backend: %v", c.Backend, err)
	}

	s := &StorageManager{
		Store:   store,
		Backend: c.Backend,
		Health:  storage.NewHealthManager(),
	}

	storage.StartHealthMonitor(ctx, wg, c.Backend, store, s.Health, HealthCheckInterval, logger)

	logger.Infof("%s storage backend ready", c.Backend)
	return s, nil
}

// Close releases the backend. Call it only after every user of Store has stopped.
func (s *StorageManager) Close() error {
	return s.Store.Close()
}
