// Package migration applies the ledger's versioned PostgreSQL schema with
// golang-migrate and scaffolds new migration files.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/benedict431app/PharmacyOS/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// migrateLog adapts zap to migrate.Logger so each applied file is logged.
type migrateLog struct{ log *zap.SugaredLogger }

func (l migrateLog) Printf(format string, v ...any) {
	l.log.Infof(strings.TrimRight(format, "\n"), v...)
}

func (l migrateLog) Verbose() bool { return false }

type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// New reads the migrations embedded in the binary.
func New(db *sql.DB, log *zap.Logger) (*Migrator, error) {
	return NewWithSource(db, migrations.FS, log)
}

// NewFromDir reads migrations from dir, for iterating without a rebuild.
func NewFromDir(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	return NewWithSource(db, os.DirFS(dir), log)
}

// NewWithSource reads *.sql files from the root of source.
func NewWithSource(db *sql.DB, source fs.FS, log *zap.Logger) (*Migrator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	src, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	m.Log = migrateLog{log: log.Named("migrate").Sugar()}
	return &Migrator{m: m, log: log}, nil
}

func (m *Migrator) Up() error { return m.apply("up", m.m.Up) }

// Down rolls back every migration.
func (m *Migrator) Down() error { return m.apply("down", m.m.Down) }

// Steps applies n migrations, or rolls back -n when n is negative.
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %d", n), func() error { return m.m.Steps(n) })
}

func (m *Migrator) GoTo(version uint) error {
	return m.apply(fmt.Sprintf("goto %d", version), func() error { return m.m.Migrate(version) })
}

// apply treats "no change" as success and logs the resulting version.
func (m *Migrator) apply(op string, fn func() error) error {
	switch err := fn(); {
	case errors.Is(err, migrate.ErrNoChange):
		m.log.Info("Schema already current", zap.String("op", op))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Schema migrated", zap.String("op", op), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version reports 0 for an empty database.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force marks version applied without running it. Used to clear a dirty flag
// after a failed migration was repaired by hand.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop deletes every table, ledger history included.
func (m *Migrator) Drop() error {
	m.log.Warn("Dropping all ledger tables")
	if err := m.m.Drop(); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
