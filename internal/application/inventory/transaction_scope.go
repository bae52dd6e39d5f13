package inventory

import (
	"context"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
)

// TransactionScope runs a function inside one database transaction.
// Every repository handed to fn shares that transaction, so reads see
// earlier writes and an error rolls back all of them.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories bound to the current
// transaction.
type TransactionalRepositories interface {
	// BatchRepo returns the batch store scoped to the current transaction
	BatchRepo() inventory.BatchStore
	// SaleRepo returns the sale repository scoped to the current transaction
	SaleRepo() sales.SaleRepository
}

// NoOpTransactionScope runs fn against fixed repositories without a real
// transaction. Unit tests use it with in-memory fakes.
type NoOpTransactionScope struct {
	batchRepo inventory.BatchStore
	saleRepo  sales.SaleRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(batchRepo inventory.BatchStore, saleRepo sales.SaleRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{batchRepo: batchRepo, saleRepo: saleRepo}
}

// Execute runs fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BatchRepo returns the batch store.
func (s *NoOpTransactionScope) BatchRepo() inventory.BatchStore {
	return s.batchRepo
}

// SaleRepo returns the sale repository.
func (s *NoOpTransactionScope) SaleRepo() sales.SaleRepository {
	return s.saleRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
