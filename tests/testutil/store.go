package testutil

import (
	"context"
	"testing"

	"github.com/nhle/ims-notify/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// MustSet writes a raw value into the store, failing the test on error.
func MustSet(t *testing.T, kv store.KV, key, value string) {
	t.Helper()
	if err := kv.Set(context.Background(), key, value); err != nil {
		t.Fatalf("setting %q: %v", key, err)
	}
}
