package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"locked message", errors.New("database is locked"), true},
		{"storage conflict", fmt.Errorf("%w: stale", shared.ErrStorageConflict), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConflict(tt.err))
		})
	}
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(&pgconn.PgError{Code: "40001"}), shared.ErrStorageConflict)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), shared.ErrAlreadyExists)
	assert.ErrorIs(t, translateError(gorm.ErrForeignKeyViolated), shared.ErrValidation)
	assert.ErrorIs(t, translateError(gorm.ErrCheckConstraintViolated), shared.ErrValidation)

	conflict := fmt.Errorf("%w: batch changed", shared.ErrStorageConflict)
	assert.Same(t, conflict, translateError(conflict), "already translated errors pass through")

	stock := shared.NewInsufficientStockError([16]byte{1}, 5, 2)
	assert.Same(t, stock, translateError(stock))

	plain := errors.New("boom")
	assert.Same(t, plain, translateError(plain))
}
