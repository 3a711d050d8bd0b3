// Package testdb provides test database utilities for e2e testing.
//
// Each TestDB runs against a real SurrealDB instance in its own namespace
// with the schema applied, so tests exercise the real unique indexes,
// field assertions and cascade events.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//
//	    results := tdb.MustQuery("SELECT * FROM wine", nil)
//	}
package testdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forgo/sipmate/api/internal/database"
)

// surrealImage is the image started when TEST_DB_CONTAINER=1
const surrealImage = "surrealdb/surrealdb:v2.1.4"

// resetOrder lists tables children first so cascade events find nothing left
var resetOrder = []string{
	"post_like",
	"comment",
	"post",
	"saved_wine",
	"wine",
	"refresh_token",
	"profile",
	"account",
}

// TestDB provides an isolated database environment for testing.
// Each TestDB instance gets a unique namespace to ensure test isolation.
type TestDB struct {
	DB        database.Database
	Namespace string
	Database  string
	t         *testing.T
}

var (
	migrationOnce sync.Once
	migrations    []database.Migration
	migrationErr  error

	containerOnce sync.Once
	containerHost string
	containerPort string
	containerErr  error

	counterMu sync.Mutex
	counter   int64
)

// getTestConfig returns database config from environment or defaults
func getTestConfig(t *testing.T) database.Config {
	t.Helper()

	cfg := database.Config{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "8000"),
		User:     envOr("TEST_DB_USER", "root"),
		Password: envOr("TEST_DB_PASSWORD", "root"),
	}

	if os.Getenv("TEST_DB_CONTAINER") == "1" {
		host, port, err := startContainer()
		if err != nil {
			t.Fatalf("testdb: failed to start surrealdb container: %v", err)
		}
		cfg.Host = host
		cfg.Port = port
		cfg.User = "root"
		cfg.Password = "root"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// startContainer starts one in-memory SurrealDB for the whole test binary.
// The container is reaped by testcontainers when the process exits.
func startContainer() (string, string, error) {
	containerOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        surrealImage,
				ExposedPorts: []string{"8000/tcp"},
				Cmd:          []string{"start", "--user", "root", "--pass", "root", "memory"},
				WaitingFor:   wait.ForListeningPort("8000/tcp").WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			containerErr = err
			return
		}

		host, err := ctr.Host(ctx)
		if err != nil {
			containerErr = err
			return
		}
		port, err := ctr.MappedPort(ctx, "8000/tcp")
		if err != nil {
			containerErr = err
			return
		}
		containerHost = host
		containerPort = port.Port()
	})

	return containerHost, containerPort, containerErr
}

// uniqueNamespace generates a unique namespace for test isolation
func uniqueNamespace() string {
	counterMu.Lock()
	defer counterMu.Unlock()
	counter++
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), counter)
}

// loadMigrations finds the migrations directory relative to the test's
// working directory and loads it once per test binary
func loadMigrations() ([]database.Migration, error) {
	migrationOnce.Do(func() {
		paths := []string{
			"migrations",
			"../migrations",
			"../../migrations",
			"../../../migrations",
			"../../../../migrations",
		}

		var migrationDir string
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				migrationDir = p
				break
			}
		}

		if migrationDir == "" {
			if root := os.Getenv("SIPMATE_ROOT"); root != "" {
				migrationDir = filepath.Join(root, "api", "migrations")
			}
		}

		if migrationDir == "" {
			migrationErr = fmt.Errorf("could not find migrations directory")
			return
		}

		migrations, migrationErr = database.LoadMigrations(migrationDir)
	})

	return migrations, migrationErr
}

// New creates a new isolated test database with migrations applied.
// Tests are skipped in -short mode.
func New(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("testdb: skipping database test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := getTestConfig(t)
	namespace := uniqueNamespace()
	dbName := "test"

	cfg.Namespace = namespace
	cfg.Database = dbName

	db := database.NewSurrealDB(cfg)
	if err := db.Connect(ctx); err != nil {
		t.Fatalf("testdb: failed to connect: %v", err)
	}

	tdb := &TestDB{
		DB:        db,
		Namespace: namespace,
		Database:  dbName,
		t:         t,
	}

	migs, err := loadMigrations()
	if err != nil {
		_ = db.Close()
		t.Fatalf("testdb: failed to load migrations: %v", err)
	}

	if err := database.Migrate(ctx, db, migs); err != nil {
		_ = db.Close()
		t.Fatalf("testdb: %v", err)
	}

	return tdb
}

// Close cleans up the test database by removing the namespace.
func (tdb *TestDB) Close() {
	if tdb.DB == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = tdb.DB.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE %s", tdb.Namespace), nil)
	_ = tdb.DB.Close()
}

// Reset clears all data from tables while preserving schema.
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, table := range resetOrder {
		if err := tdb.DB.Execute(ctx, fmt.Sprintf("DELETE FROM %s", table), nil); err != nil {
			t.Logf("testdb: warning - failed to clear table %s: %v", table, err)
		}
	}
}

// Ctx returns a context with a reasonable timeout for test operations.
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec executes a query and fails the test on error.
func (tdb *TestDB) MustExec(query string, vars map[string]interface{}) {
	tdb.t.Helper()
	if err := tdb.DB.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}

// MustQuery executes a query and returns results, failing the test on error.
func (tdb *TestDB) MustQuery(query string, vars map[string]interface{}) []interface{} {
	tdb.t.Helper()
	results, err := tdb.DB.Query(tdb.Ctx(), query, vars)
	if err != nil {
		tdb.t.Fatalf("testdb: query failed: %v\nQuery: %s", err, query)
	}
	return results
}

// Shared is a TestDB reused across subtests
type Shared struct {
	*TestDB
}

// NewShared creates a shared test database for use across multiple subtests.
func NewShared(t *testing.T) *Shared {
	return &Shared{TestDB: New(t)}
}

// SetupSubtest resets the database and returns the TestDB for use in a subtest.
func (s *Shared) SetupSubtest(t *testing.T) *TestDB {
	t.Helper()
	s.TestDB.t = t
	s.TestDB.Reset(t)
	return s.TestDB
}
