package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/target/notify-dispatch/internal/migrate"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Cleanup(func())
	Skip(args ...any)
	Skipf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
}

// DBConfig locates the integration test database. The default port matches
// the compose test profile; CI sets TEST_DB_PORT=5432.
type DBConfig struct {
	Host       string `env:"TEST_DB_HOST"       envDefault:"localhost"`
	Port       string `env:"TEST_DB_PORT"       envDefault:"55432"`
	User       string `env:"TEST_DB_USER"       envDefault:"notify"`
	Password   string `env:"TEST_DB_PASSWORD"   envDefault:"notify"`
	Name       string `env:"TEST_DB_NAME"       envDefault:"notify"`
	SSLMode    string `env:"DB_SSL_MODE"        envDefault:"disable"`
	Ephemeral  bool   `env:"TEST_DB_EPHEMERAL"`
	Require    bool   `env:"TEST_REQUIRE_DB"`
	RequireAll bool   `env:"TEST_REQUIRE_INFRA"`
}

// LoadDBConfig reads DBConfig from the environment.
func LoadDBConfig() (DBConfig, error) {
	var cfg DBConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// DSN renders a pgx URL, optionally pinned to one schema.
func (c DBConfig) DSN(schema string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	q := url.Values{"sslmode": []string{c.SSLMode}}
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c DBConfig) required() bool { return c.Require || c.RequireAll }

// notificationTables lists tables children first.
var notificationTables = []string{
	"notification_status_history",
	"notification_dlq",
	"notification_queue",
	"in_app_notifications",
	"notification_templates",
	"notification_jobs",
}

func mustDBConfig(t TB) DBConfig {
	t.Helper()
	cfg, err := LoadDBConfig()
	if err != nil {
		t.Fatalf("parse test db env: %v", err)
	}
	return cfg
}

// SkipIfNoTestDB skips, or fails under TEST_REQUIRE_DB, when Postgres is unreachable.
func SkipIfNoTestDB(t TB) {
	t.Helper()
	cfg := mustDBConfig(t)

	db, err := sql.Open("pgx", cfg.DSN(""))
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = db.PingContext(ctx)
		cancel()
		_ = db.Close()
	}
	if err == nil {
		return
	}
	if cfg.required() {
		t.Fatal("test database not available:", err)
	}
	t.Skip("test database not available:", err)
}

// WithAutoDB runs fn against a migrated database. With TEST_DB_EPHEMERAL set
// each test gets its own schema; otherwise the shared schema is truncated
// before and after fn.
func WithAutoDB(t TB, fn func(*sql.DB)) {
	t.Helper()
	SkipIfNoTestDB(t)
	cfg := mustDBConfig(t)

	if cfg.Ephemeral {
		fn(openEphemeral(t, cfg))
		return
	}

	db := open(t, cfg.DSN(""))
	t.Cleanup(func() { _ = db.Close() })
	migrateOrFail(t, db)
	truncate(t, db)
	defer truncate(t, db)
	fn(db)
}

func open(t TB, dsn string) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatal("open test database:", err)
	}
	db.SetMaxOpenConns(10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Fatal("ping test database:", err)
	}
	return db
}

func migrateOrFail(t TB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatal("run migrations:", err)
	}
}

func truncate(t TB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, table := range notificationTables {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
}

func openEphemeral(t TB, cfg DBConfig) *sql.DB {
	t.Helper()
	admin := open(t, cfg.DSN(""))
	schema := schemaName()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db := open(t, cfg.DSN(schema))
	t.Cleanup(func() {
		_ = db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := admin.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		_ = admin.Close()
	})
	t.Logf("using ephemeral schema %s", schema)
	migrateOrFail(t, db)
	return db
}

func schemaName() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return "t_" + hex.EncodeToString(b)
}

// CountRows returns count(*) for a table name literal.
func CountRows(t TB, db *sql.DB, table string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
