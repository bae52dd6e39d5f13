package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InventoryService receives, restocks and recalls batches. Sales draw stock
// through the sale service; this service only ever adds stock or withdraws
// whole lots.
type InventoryService struct {
	batchRepo      inventory.BatchStore
	drugReader     catalog.DrugReader
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	batchRepo inventory.BatchStore,
	drugReader catalog.DrugReader,
	txScope TransactionScope,
	logger *zap.Logger,
) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		batchRepo:  batchRepo,
		drugReader: drugReader,
		txScope:    txScope,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *InventoryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishDomainEvents publishes all domain events from a batch
func (s *InventoryService) publishDomainEvents(ctx context.Context, batch *inventory.Batch) {
	events := batch.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish batch events",
			zap.String("batch_id", batch.ID.String()),
			zap.Error(err),
		)
	}
}

// GetBatch returns a batch by ID
func (s *InventoryService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToBatchResponse(batch, s.now())
	return &response, nil
}

// ListAvailable returns a drug's sellable batches in FEFO order. With
// filter.All every batch of the drug is returned.
func (s *InventoryService) ListAvailable(ctx context.Context, drugID uuid.UUID, filter BatchListFilter) ([]BatchResponse, error) {
	if _, err := s.drugReader.FindByID(ctx, drugID); err != nil {
		return nil, err
	}

	var (
		batches []inventory.Batch
		err     error
	)
	if filter.All {
		batches, err = s.batchRepo.ListByDrug(ctx, drugID)
	} else {
		batches, err = s.batchRepo.ListAvailableBatches(ctx, drugID)
	}
	if err != nil {
		return nil, err
	}
	if !filter.All {
		batches = withStock(batches)
	}
	return ToBatchResponses(batches, s.now()), nil
}

// withStock drops lots that have been sold down to zero
func withStock(batches []inventory.Batch) []inventory.Batch {
	kept := batches[:0]
	for _, b := range batches {
		if b.QuantityOnHand > 0 {
			kept = append(kept, b)
		}
	}
	return kept
}

// ReceiveBatch records a newly delivered lot
func (s *InventoryService) ReceiveBatch(ctx context.Context, req ReceiveBatchRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", telemetry.OperationReceiveBatch)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDrugID, req.DrugID.String(),
		telemetry.SpanAttrLotNumber, req.LotNumber,
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	expiry, err := parseDate("expiry_date", req.ExpiryDate)
	if err != nil {
		return nil, err
	}
	var purchase time.Time
	if req.PurchaseDate != "" {
		if purchase, err = parseDate("purchase_date", req.PurchaseDate); err != nil {
			return nil, err
		}
	}
	cost := decimal.Zero
	if req.CostPrice != nil {
		cost = *req.CostPrice
	}

	if _, err := s.drugReader.FindByID(ctx, req.DrugID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	batch, err := inventory.NewBatch(req.DrugID, req.LotNumber, req.Quantity, expiry, purchase, cost)
	if err != nil {
		return nil, err
	}
	if !batch.IsAllocatable(s.now()) {
		return nil, fmt.Errorf("%w: lot %s is already past its expiry date", shared.ErrValidation, batch.LotNumber)
	}

	exists, err := s.batchRepo.ExistsByLot(ctx, batch.DrugID, batch.LotNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: lot %s already exists for this drug", shared.ErrValidation, batch.LotNumber)
	}

	if err := s.batchRepo.Create(ctx, batch); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("drug_id", batch.DrugID.String()),
		zap.String("lot_number", batch.LotNumber),
		zap.Int("quantity", batch.QuantityOnHand),
	)
	s.publishDomainEvents(ctx, batch)
	telemetry.SetOK(span)

	return s.GetBatch(ctx, batch.ID)
}

// Restock adds units to an existing lot. Recalled lots cannot be restocked.
func (s *InventoryService) Restock(ctx context.Context, batchID uuid.UUID, req RestockRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", telemetry.OperationRestockBatch)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBatchID, batchID.String(),
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: restock quantity must be positive", shared.ErrValidation)
	}

	batch, err := s.mutateLocked(ctx, batchID, func(repo inventory.BatchStore, b *inventory.Batch) error {
		if err := b.Increment(req.Quantity); err != nil {
			return err
		}
		return repo.Increment(ctx, b.ID, req.Quantity)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Batch restocked",
		zap.String("batch_id", batch.ID.String()),
		zap.String("lot_number", batch.LotNumber),
		zap.Int("amount", req.Quantity),
	)
	s.publishDomainEvents(ctx, batch)
	telemetry.SetOK(span)

	return s.GetBatch(ctx, batch.ID)
}

// Recall withdraws a lot from sale permanently
func (s *InventoryService) Recall(ctx context.Context, batchID uuid.UUID, req RecallRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", telemetry.OperationRecallBatch)
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrBatchID, batchID.String())

	batch, err := s.mutateLocked(ctx, batchID, func(repo inventory.BatchStore, b *inventory.Batch) error {
		if err := b.Recall(req.Reason); err != nil {
			return err
		}
		return repo.UpdateStatus(ctx, b)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Warn("Batch recalled",
		zap.String("batch_id", batch.ID.String()),
		zap.String("drug_id", batch.DrugID.String()),
		zap.String("lot_number", batch.LotNumber),
		zap.Int("quantity_on_hand", batch.QuantityOnHand),
		zap.String("reason", req.Reason),
	)
	s.publishDomainEvents(ctx, batch)
	telemetry.SetOK(span)

	return s.GetBatch(ctx, batch.ID)
}

// mutateLocked loads a batch inside a transaction, after taking the same
// row locks a sale takes on the drug, and applies fn to it.
func (s *InventoryService) mutateLocked(
	ctx context.Context,
	batchID uuid.UUID,
	fn func(repo inventory.BatchStore, b *inventory.Batch) error,
) (*inventory.Batch, error) {
	var batch *inventory.Batch
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		repo := repos.BatchRepo()
		current, err := repo.FindByID(ctx, batchID)
		if err != nil {
			return err
		}
		if _, err := repo.LockAvailableBatches(ctx, current.DrugID); err != nil {
			return err
		}
		if current, err = repo.FindByID(ctx, batchID); err != nil {
			return err
		}
		if err := fn(repo, current); err != nil {
			return err
		}
		batch = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date in YYYY-MM-DD format", shared.ErrValidation, field)
	}
	return t, nil
}
