package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes that mean the transaction lost a race and can be
// retried from scratch.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// translateError maps driver errors to domain errors. Errors it does not
// recognise are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrStorageConflict) {
		return err
	}
	if IsConflict(err) {
		return fmt.Errorf("%w: %v", shared.ErrStorageConflict, err)
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", shared.ErrAlreadyExists, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: referenced row does not exist", shared.ErrValidation)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return err
}

// IsConflict reports whether err is a transient concurrency failure: a
// serialization failure or deadlock on PostgreSQL, a busy or locked database
// on SQLite, or an already translated ErrStorageConflict.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrStorageConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	return strings.Contains(err.Error(), "database is locked")
}
