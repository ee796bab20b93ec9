package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nhle/ims-notify/internal/model"
)

// Open returns the key-value backend selected by cfg. The delivery log is
// nil for backends that do not keep one.
func Open(cfg model.StorageConfig) (KV, DeliveryLog, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating data directory %s: %w", dir, err)
			}
		}
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case "redis":
		r, err := NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return r, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
