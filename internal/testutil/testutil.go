// Package testutil holds integration-test helpers. Tests that need Postgres or
// Redis skip when the service is unreachable unless TEST_REQUIRE_DB,
// TEST_REQUIRE_REDIS or TEST_REQUIRE_INFRA is set.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-export/config"
	"github.com/target/mmk-export/internal/migrate"
)

const probeTimeout = 2 * time.Second

// TestDBConfig is the Postgres instance used by integration tests, read from TEST_DB_*.
func TestDBConfig() config.DBConfig {
	return config.DBConfig{
		Host:     env("TEST_DB_HOST", "localhost"),
		Port:     envInt("TEST_DB_PORT", 55432),
		User:     env("TEST_DB_USER", "mmk_export"),
		Password: env("TEST_DB_PASSWORD", "mmk_export"),
		Name:     env("TEST_DB_NAME", "mmk_export"),
		SSLMode:  env("DB_SSL_MODE", "disable"),
	}
}

// SetupTestDB returns a migrated database with an empty export_runs table.
// The table is emptied again and the pool closed when the test ends.
func SetupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", TestDBConfig().DSN())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := ping(ctx, db.PingContext); err != nil {
		_ = db.Close()
		unavailable(t, "TEST_REQUIRE_DB", "postgres", err)
	}
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	truncate := func() {
		if _, err := db.ExecContext(context.Background(), "DELETE FROM export_runs"); err != nil {
			t.Fatalf("empty export_runs: %v", err)
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		if err := db.Close(); err != nil {
			t.Logf("close test db: %v", err)
		}
	})
	return db
}

// SetupTestRedis returns a client on a flushed Redis DB.
// REDIS_ADDR overrides localhost:56379 and TEST_REDIS_DB picks the index (default 1).
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr := env("REDIS_ADDR", "localhost:56379")
	client := redis.NewClient(&redis.Options{Addr: addr, DB: envInt("TEST_REDIS_DB", 1)})

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := ping(ctx, func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		unavailable(t, "TEST_REQUIRE_REDIS", "redis at "+addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// FixedTimeFunc returns a clock stuck at t.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestTime is the reference instant used across tests.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return fn(ctx)
}

// unavailable skips the test, or fails it when requireVar or TEST_REQUIRE_INFRA is set.
func unavailable(t testing.TB, requireVar, what string, err error) {
	t.Helper()
	msg := fmt.Sprintf("%s not available for testing: %v", what, err)
	if envBool(requireVar) || envBool("TEST_REQUIRE_INFRA") {
		t.Fatal(msg)
	}
	t.Skip(msg)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= 0 {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
