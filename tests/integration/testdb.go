//go:build integration

// Package integration runs the ledger against a real PostgreSQL started with
// testcontainers. Run with: go test -tags integration ./tests/integration/...
package integration

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/infrastructure/migration"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pg is the container shared by every test in the package. It is started
// and migrated by the first NewSharedTestDB call.
var pg struct {
	once      sync.Once
	container *tcpostgres.PostgresContainer
	dsn       string
	err       error
}

// TestDB is a connection to the shared, migrated ledger database.
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
}

func startPostgres() {
	ctx := context.Background()
	pg.container, pg.err = tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pharmaos_test"),
		tcpostgres.WithUsername("pharmaos"),
		tcpostgres.WithPassword("pharmaos"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute)),
	)
	if pg.err != nil {
		return
	}
	if pg.dsn, pg.err = pg.container.ConnectionString(ctx, "sslmode=disable"); pg.err != nil {
		return
	}
	db, err := openGorm(pg.dsn)
	if err != nil {
		pg.err = err
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		pg.err = err
		return
	}
	defer sqlDB.Close()
	m, err := migration.New(sqlDB, nil)
	if err != nil {
		pg.err = err
		return
	}
	pg.err = m.Up()
}

// NewSharedTestDB returns an empty ledger: every application table is
// truncated before the test starts.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	pg.once.Do(startPostgres)
	require.NoError(t, pg.err, "postgres container")

	db, err := openGorm(pg.dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })

	tdb := &TestDB{DB: db, t: t}
	tdb.CleanTables()
	return tdb
}

// CleanTables empties every table except the migration bookkeeping.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()
	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error)
	if len(tables) == 0 {
		return
	}
	require.NoError(tdb.t, tdb.DB.Exec("TRUNCATE TABLE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE").Error)
}

func openGorm(dsn string) (*gorm.DB, error) {
	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	return gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	if pg.container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = pg.container.Terminate(ctx)
		cancel()
	}
	os.Exit(code)
}
