package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDSNEnv names the variable holding a disposable test database DSN.
const TestDSNEnv = "SMART_CHARGE_TEST_DATABASE_DSN"

// SetupTestDB connects to the database named by TestDSNEnv, applies the
// schema and empties both tables. The test is skipped when the variable is unset.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping PostgreSQL integration test", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dsn, 2, 1)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}
	if _, err := db.pool.Exec(ctx, "TRUNCATE recommendations, user_actions"); err != nil {
		db.Close()
		t.Fatalf("failed to truncate test tables: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}
