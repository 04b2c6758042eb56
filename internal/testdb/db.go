//go:build integration

package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskflow-api/internal/config"
	"github.com/phrazzld/taskflow-api/internal/platform/postgres"
)

// TestTimeout bounds setup queries.
const TestTimeout = 30 * time.Second

var (
	shared     *sql.DB
	sharedErr  error
	sharedOnce sync.Once
)

// GetTestDB returns a process-wide connection with all migrations applied.
// The connection is opened and migrated once per test binary.
func GetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := DatabaseURL()
	if url == "" {
		if isCIEnvironment() {
			t.Fatalf("no test database configured; set %s", EnvTestDatabaseURL)
		}
		t.Skipf("skipping integration test: %s not set", EnvTestDatabaseURL)
	}

	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
		defer cancel()

		shared, sharedErr = postgres.Open(ctx, config.DatabaseConfig{
			URL:             url,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		})
		if sharedErr != nil {
			return
		}
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		sharedErr = postgres.Migrate(ctx, shared, quiet, "up")
	})

	if sharedErr != nil {
		t.Fatalf("test database unavailable at %s: %v", postgres.MaskDatabaseURL(url), sharedErr)
	}
	return shared
}
