package persistence

import (
	"context"

	appinv "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope with gorm transactions
type GormTransactionScope struct {
	db    *gorm.DB
	clock Clock
}

// NewGormTransactionScope creates a new GormTransactionScope. The clock
// decides which batches count as expired inside the transaction.
func NewGormTransactionScope(db *gorm.DB, clock Clock) *GormTransactionScope {
	if clock == nil {
		clock = SystemClock
	}
	return &GormTransactionScope{db: db, clock: clock}
}

// Execute runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back otherwise, including when ctx is cancelled first.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&gormTransactionalRepositories{tx: tx, clock: s.clock})
	})
	if err != nil {
		return translateError(err)
	}
	return nil
}

type gormTransactionalRepositories struct {
	tx    *gorm.DB
	clock Clock
}

func (r *gormTransactionalRepositories) BatchRepo() inventory.BatchStore {
	return NewGormBatchRepository(r.tx, r.clock)
}

func (r *gormTransactionalRepositories) SaleRepo() sales.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

var _ appinv.TransactionScope = (*GormTransactionScope)(nil)
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
