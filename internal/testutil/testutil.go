// Package testutil provides Postgres and Redis fixtures for integration tests.
// Tests skip when the infrastructure is unreachable unless TEST_REQUIRE_INFRA
// (or TEST_REQUIRE_DB / TEST_REQUIRE_REDIS) is set.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/redis/go-redis/v9"

	"github.com/scolay/storefront/internal/migrate"
)

const (
	pingTimeout     = 2 * time.Second
	setupTimeout    = 15 * time.Second
	redisLockTTL    = 30 * time.Minute
	redisMaxTestDBs = 15
)

// TestDBConfig locates the integration test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultTestDBConfig reads TEST_DB_* variables. The port defaults to 55432, the
// docker-compose test profile; CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "55432"),
		User:     getEnvOrDefault("TEST_DB_USER", "scolay"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "scolay"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "scolay"),
		SSLMode:  getEnvOrDefault("TEST_DB_SSL_MODE", "disable"),
	}
}

// DSN renders the config as a postgres URL. A non-empty schema is put first on the search_path.
func (c TestDBConfig) DSN(schema string) string {
	q := url.Values{"sslmode": []string{c.SSLMode}}
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

var (
	dbReachOnce sync.Once
	dbReachErr  error
)

// SkipIfNoTestDB skips (or fails, when required) if the test database cannot be reached.
// Reachability is checked once per test binary.
func SkipIfNoTestDB(t testing.TB) {
	t.Helper()
	dbReachOnce.Do(func() {
		db, err := sql.Open("pgx", DefaultTestDBConfig().DSN(""))
		if err != nil {
			dbReachErr = err
			return
		}
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		dbReachErr = db.PingContext(ctx)
	})
	if dbReachErr != nil {
		skipOrFail(t, requireDB(), "test database not available: %v", dbReachErr)
	}
}

// WithAutoDB runs fn against a migrated database. By default every call gets a
// fresh schema that is dropped afterwards; TEST_DB_SHARED=true reuses the public
// schema and empties the profiles table before and after fn.
func WithAutoDB(t testing.TB, fn func(*sql.DB)) {
	t.Helper()
	SkipIfNoTestDB(t)
	if envBool("TEST_DB_SHARED") {
		fn(openSharedDB(t))
		return
	}
	fn(openSchemaDB(t))
}

func openSharedDB(t testing.TB) *sql.DB {
	t.Helper()
	db := openMigrated(t, DefaultTestDBConfig().DSN(""))
	truncateProfiles(t, db)
	t.Cleanup(func() {
		truncateProfiles(t, db)
		closeAndLog(t, "test db", db)
	})
	return db
}

func openSchemaDB(t testing.TB) *sql.DB {
	t.Helper()
	cfg := DefaultTestDBConfig()
	admin, err := sql.Open("pgx", cfg.DSN(""))
	if err != nil {
		t.Fatalf("open admin db: %v", err)
	}
	schema := "t_" + randomHex(4)

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeAndLog(t, "admin db", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), setupTimeout)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		closeAndLog(t, "admin db", admin)
	})

	db := openMigrated(t, cfg.DSN(schema))
	// Registered after the schema drop, so it runs first.
	t.Cleanup(func() { closeAndLog(t, "schema db", db) })
	return db
}

func openMigrated(t testing.TB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		closeAndLog(t, "test db", db)
		t.Fatalf("ping test db: %v", err)
	}
	if err := migrate.Run(ctx, db); err != nil {
		closeAndLog(t, "test db", db)
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func truncateProfiles(t testing.TB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, "DELETE FROM profiles"); err != nil {
		t.Fatalf("clean profiles: %v", err)
	}
}

// SetupTestRedis returns a client on an empty Redis database reserved for this
// test. The address comes from TEST_REDIS_ADDR, then REDIS_ADDR, then
// localhost:56379 and localhost:6379. The caller closes the client.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()
	addr, err := findRedis()
	if err != nil {
		skipOrFail(t, requireRedis(), "redis not available: %v", err)
	}

	db := reserveRedisDB(t, addr)
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		closeAndLog(t, "redis client", client)
		skipOrFail(t, requireRedis(), "flush redis db %d at %s: %v", db, addr, err)
	}
	return client
}

func findRedis() (string, error) {
	candidates := []string{os.Getenv("TEST_REDIS_ADDR"), os.Getenv("REDIS_ADDR"), "localhost:56379", "localhost:6379"}
	var lastErr error
	for _, addr := range candidates {
		if addr == "" {
			continue
		}
		c := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		lastErr = c.Ping(ctx).Err()
		cancel()
		_ = c.Close()
		if lastErr == nil {
			return addr, nil
		}
	}
	return "", lastErr
}

// reserveRedisDB claims a database index so parallel test packages never flush
// each other's keys. Reservations live in DB 0, which tests never use.
// TEST_REDIS_DB pins the index instead.
func reserveRedisDB(t testing.TB, addr string) int {
	t.Helper()
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	owner := fmt.Sprintf("%d:%s", os.Getpid(), randomHex(4))
	for i := 1; i <= redisMaxTestDBs; i++ {
		key := "scolay:testutil:db_lock:" + strconv.Itoa(i)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		ok, err := meta.SetNX(ctx, key, owner, redisLockTTL).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			if err := meta.Del(ctx, key).Err(); err != nil {
				t.Logf("release %s: %v", key, err)
			}
			closeAndLog(t, "redis meta client", meta)
		})
		return i
	}
	closeAndLog(t, "redis meta client", meta)
	t.Logf("no free redis test db at %s; sharing db 1", addr)
	return 1
}

func skipOrFail(t testing.TB, required bool, format string, args ...any) {
	t.Helper()
	if required {
		t.Fatalf(format, args...)
	}
	t.Skipf(format, args...)
}

func closeAndLog(t testing.TB, name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		t.Logf("close %s: %v", name, err)
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func requireDB() bool    { return envBool("TEST_REQUIRE_DB") || envBool("TEST_REQUIRE_INFRA") }
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }
