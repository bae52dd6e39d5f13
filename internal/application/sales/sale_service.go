package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	appinventory "github.com/benedict431app/PharmacyOS/internal/application/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/sales"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	minRetries     = 1
	maxRetries     = 3
	retryBaseDelay = 10 * time.Millisecond
)

// AllocationStrategyProvider resolves allocation strategies by name
type AllocationStrategyProvider interface {
	GetAllocationStrategy(name string) (inventory.AllocationStrategy, error)
}

// Metrics receives sale posting counters
type Metrics interface {
	RecordSalePosted(ctx context.Context, paymentMethod string, units int, total decimal.Decimal)
	RecordAllocationConflict(ctx context.Context)
	RecordRetry(ctx context.Context, attempt int)
}

type noopMetrics struct{}

func (noopMetrics) RecordSalePosted(context.Context, string, int, decimal.Decimal) {}
func (noopMetrics) RecordAllocationConflict(context.Context)                       {}
func (noopMetrics) RecordRetry(context.Context, int)                               {}

// Config holds sale posting policy
type Config struct {
	TaxRate            decimal.Decimal
	MaxRetries         int
	AllocationStrategy string
	Idempotency        shared.IdempotencyConfig
}

// DefaultConfig returns a zero tax, two retry, FEFO configuration
func DefaultConfig() Config {
	return Config{
		TaxRate:     decimal.Zero,
		MaxRetries:  2,
		Idempotency: shared.DefaultIdempotencyConfig(),
	}
}

// SaleService posts sales. A sale either commits with all of its stock
// decrements or leaves the ledger untouched.
type SaleService struct {
	saleRepo         sales.SaleRepository
	drugReader       catalog.DrugReader
	batchReader      inventory.BatchReader
	txScope          appinventory.TransactionScope
	strategies       AllocationStrategyProvider
	config           Config
	eventPublisher   shared.EventPublisher
	idempotencyStore shared.IdempotencyStore
	metrics          Metrics
	logger           *zap.Logger
}

// NewSaleService creates a new SaleService
func NewSaleService(
	saleRepo sales.SaleRepository,
	drugReader catalog.DrugReader,
	batchReader inventory.BatchReader,
	txScope appinventory.TransactionScope,
	strategies AllocationStrategyProvider,
	config Config,
	logger *zap.Logger,
) *SaleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.MaxRetries = min(max(config.MaxRetries, minRetries), maxRetries)
	return &SaleService{
		saleRepo:    saleRepo,
		drugReader:  drugReader,
		batchReader: batchReader,
		txScope:     txScope,
		strategies:  strategies,
		config:      config,
		metrics:     noopMetrics{},
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *SaleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore sets the store used to short-circuit duplicate requests
func (s *SaleService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotencyStore = store
}

// SetMetrics sets the metrics recorder
func (s *SaleService) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	s.metrics = m
}

// MaxRetries returns the effective retry limit
func (s *SaleService) MaxRetries() int {
	return s.config.MaxRetries
}

// pricedLine is a validated request line with its catalog data resolved
type pricedLine struct {
	drugID    uuid.UUID
	drugName  string
	quantity  int
	unitPrice decimal.Decimal
}

// conflictError marks a stale snapshot detected while applying a plan
type conflictError struct {
	drugID uuid.UUID
	err    error
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("stock of drug %s changed during sale: %v", e.drugID, e.err)
}

func (e *conflictError) Unwrap() error {
	return shared.ErrStorageConflict
}

// PostSale validates the request, allocates every line against the current
// batch snapshot and commits the sale together with its stock decrements.
func (s *SaleService) PostSale(ctx context.Context, req PostSaleRequest) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", telemetry.OperationPostSale)
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentMethod, req.PaymentMethod,
		telemetry.SpanAttrLineCount, len(req.Lines),
	)
	if req.IdempotencyKey != "" {
		telemetry.SetAttribute(span, telemetry.SpanAttrIdempotencyKey, req.IdempotencyKey)
	}

	var (
		response *SaleResponse
		opErr    error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.SalesOperationLabels(telemetry.OperationPostSale), func(c context.Context) {
		response, opErr = s.postSale(c, req)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSaleID, response.ID.String(),
		telemetry.SpanAttrSaleNumber, response.SaleNumber,
	)
	telemetry.SetOK(span)
	return response, nil
}

func (s *SaleService) postSale(ctx context.Context, req PostSaleRequest) (*SaleResponse, error) {
	lines, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key != "" {
		if existing, err := s.replay(ctx, key); err != nil || existing != nil {
			return existing, err
		}
		claimed, err := s.claim(ctx, key)
		if err != nil {
			return nil, err
		}
		if claimed {
			// released only when nothing was committed under the key
			committed := false
			defer func() {
				if !committed {
					s.release(key)
				}
			}()
			sale, err := s.postWithRetry(ctx, req, lines)
			if err != nil {
				if errors.Is(err, shared.ErrAlreadyExists) {
					return s.replayAfterRace(ctx, key, err)
				}
				return nil, err
			}
			committed = true
			return s.afterCommit(ctx, sale), nil
		}
		return s.replayAfterRace(ctx, key, fmt.Errorf("%w: a sale with idempotency key %q is already being processed", shared.ErrAlreadyExists, key))
	}

	sale, err := s.postWithRetry(ctx, req, lines)
	if err != nil {
		return nil, err
	}
	return s.afterCommit(ctx, sale), nil
}

// validate checks the request structurally and resolves catalog prices
// before any stock is touched.
func (s *SaleService) validate(ctx context.Context, req PostSaleRequest) ([]pricedLine, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one line", shared.ErrValidation)
	}
	if !sales.PaymentMethod(req.PaymentMethod).IsValid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, req.PaymentMethod)
	}
	if req.Discount != nil && req.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount cannot be negative", shared.ErrValidation)
	}
	if req.AmountPaid != nil && req.AmountPaid.IsNegative() {
		return nil, fmt.Errorf("%w: amount paid cannot be negative", shared.ErrValidation)
	}

	ids := make([]uuid.UUID, 0, len(req.Lines))
	for i, l := range req.Lines {
		if l.DrugID == uuid.Nil {
			return nil, fmt.Errorf("%w: line %d: drug id is required", shared.ErrInvalidLine, i+1)
		}
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %d: quantity must be at least 1", shared.ErrInvalidLine, i+1)
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %d: unit price cannot be negative", shared.ErrValidation, i+1)
		}
		if l.UnitPrice != nil && !l.UnitPrice.Equal(l.UnitPrice.Round(2)) {
			return nil, fmt.Errorf("%w: line %d: unit price %s has more than 2 decimal places", shared.ErrValidation, i+1, l.UnitPrice.String())
		}
		ids = append(ids, l.DrugID)
	}

	drugs, err := s.drugReader.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load drugs: %w", err)
	}

	lines := make([]pricedLine, 0, len(req.Lines))
	quote := make([]sales.PricedQuantity, 0, len(req.Lines))
	for i, l := range req.Lines {
		drug, ok := drugs[l.DrugID]
		if !ok || !drug.Active {
			return nil, fmt.Errorf("%w: line %d: %w: %s", shared.ErrInvalidLine, i+1, shared.ErrUnknownDrug, l.DrugID)
		}
		price := drug.Price
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		lines = append(lines, pricedLine{
			drugID:    l.DrugID,
			drugName:  drug.Name,
			quantity:  l.Quantity,
			unitPrice: price.Round(2),
		})
		quote = append(quote, sales.PricedQuantity{Quantity: l.Quantity, UnitPrice: price})
	}

	// Priced before any stock is read
	discount := decimal.Zero
	if req.Discount != nil {
		discount = *req.Discount
	}
	if _, err := sales.Quote(quote, discount, s.config.TaxRate, sales.PaymentMethod(req.PaymentMethod), req.AmountPaid); err != nil {
		return nil, err
	}
	return lines, nil
}

// postWithRetry runs the plan/apply transaction, retrying storage conflicts
// up to the configured limit. Exhausted conflicts surface as insufficient stock.
func (s *SaleService) postWithRetry(ctx context.Context, req PostSaleRequest, lines []pricedLine) (*sales.Sale, error) {
	attempts := 1 + s.config.MaxRetries
	var lastConflict error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 1 {
			s.metrics.RecordRetry(ctx, attempt)
			if err := sleepCtx(ctx, time.Duration(attempt-1)*retryBaseDelay); err != nil {
				return nil, err
			}
		}

		sale, err := s.postOnce(ctx, req, lines)
		if err == nil {
			return sale, nil
		}
		if !errors.Is(err, shared.ErrStorageConflict) {
			return nil, err
		}

		lastConflict = err
		s.metrics.RecordAllocationConflict(ctx)
		s.logger.Warn("Sale allocation conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}

	s.logger.Warn("Sale allocation conflicts exhausted retries", zap.Error(lastConflict))
	return nil, s.exhausted(ctx, lines, lastConflict)
}

// exhausted converts a final storage conflict into an InsufficientStockError
// for the drug that conflicted, reporting what is available now.
func (s *SaleService) exhausted(ctx context.Context, lines []pricedLine, conflict error) error {
	drugID := lines[0].drugID
	var ce *conflictError
	if errors.As(conflict, &ce) {
		drugID = ce.drugID
	}
	requested := 0
	for _, l := range lines {
		if l.drugID == drugID {
			requested += l.quantity
		}
	}
	available := 0
	if batches, err := s.batchReader.ListAvailableBatches(ctx, drugID); err == nil {
		available = inventory.SellableQuantity(batches, time.Now())
	}
	return shared.NewInsufficientStockError(drugID, requested, available)
}

// postOnce is one plan/apply cycle inside a single transaction
func (s *SaleService) postOnce(ctx context.Context, req PostSaleRequest, lines []pricedLine) (*sales.Sale, error) {
	allocStrategy, err := s.strategies.GetAllocationStrategy(s.config.AllocationStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve allocation strategy: %w", err)
	}

	var sale *sales.Sale
	err = s.txScope.Execute(ctx, func(repos appinventory.TransactionalRepositories) error {
		batchRepo := repos.BatchRepo()

		// Lock in a stable drug order so concurrent sales cannot deadlock
		requested := make(map[uuid.UUID]int, len(lines))
		for _, l := range lines {
			requested[l.drugID] += l.quantity
		}
		drugIDs := make([]uuid.UUID, 0, len(requested))
		for id := range requested {
			drugIDs = append(drugIDs, id)
		}
		sort.Slice(drugIDs, func(i, j int) bool { return drugIDs[i].String() < drugIDs[j].String() })

		now := time.Now()
		snapshot := make(map[uuid.UUID][]inventory.Batch, len(drugIDs))
		for _, id := range drugIDs {
			batches, err := batchRepo.LockAvailableBatches(ctx, id)
			if err != nil {
				return err
			}
			available := inventory.SellableQuantity(batches, now)
			if available < requested[id] {
				return shared.NewInsufficientStockError(id, requested[id], available)
			}
			snapshot[id] = allocatable(batches, now)
		}

		plan, err := planLines(allocStrategy, lines, snapshot)
		if err != nil {
			return err
		}

		discount := decimal.Zero
		if req.Discount != nil {
			discount = *req.Discount
		}
		built, err := sales.NewSale(sales.Draft{
			CustomerID:     req.CustomerID,
			PrescriptionID: req.PrescriptionID,
			PaymentMethod:  sales.PaymentMethod(req.PaymentMethod),
			Discount:       discount,
			AmountPaid:     req.AmountPaid,
			Notes:          req.Notes,
			IdempotencyKey: req.IdempotencyKey,
			Lines:          plan,
		}, s.config.TaxRate)
		if err != nil {
			return err
		}

		for _, d := range batchDecrements(plan) {
			if err := batchRepo.Decrement(ctx, d.batchID, d.amount); err != nil {
				if errors.Is(err, shared.ErrStorageConflict) || errors.Is(err, shared.ErrInsufficientStock) {
					return &conflictError{drugID: d.drugID, err: err}
				}
				return err
			}
		}

		if err := repos.SaleRepo().Create(ctx, built); err != nil {
			return err
		}
		sale = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// allocatable filters a snapshot down to batches that may be drawn from
func allocatable(batches []inventory.Batch, now time.Time) []inventory.Batch {
	out := make([]inventory.Batch, 0, len(batches))
	for i := range batches {
		if batches[i].IsAllocatable(now) {
			out = append(out, batches[i])
		}
	}
	return out
}

// planLines allocates every line against a running snapshot, so two lines
// of the same drug never draw the same units.
func planLines(strategy inventory.AllocationStrategy, lines []pricedLine, snapshot map[uuid.UUID][]inventory.Batch) ([]sales.LineDraft, error) {
	plan := make([]sales.LineDraft, 0, len(lines))
	for _, l := range lines {
		batches := snapshot[l.drugID]
		allocations, err := inventory.AllocateWith(strategy, l.drugID, l.quantity, batches)
		if err != nil {
			return nil, err
		}
		taken := make(map[uuid.UUID]int, len(allocations))
		for _, a := range allocations {
			taken[a.BatchID] += a.Quantity
		}
		for i := range batches {
			batches[i].QuantityOnHand -= taken[batches[i].ID]
		}

		plan = append(plan, sales.LineDraft{
			DrugID:      l.drugID,
			DrugName:    l.drugName,
			Quantity:    l.quantity,
			UnitPrice:   l.unitPrice,
			Allocations: allocations,
		})
	}
	return plan, nil
}

type batchDecrement struct {
	batchID uuid.UUID
	drugID  uuid.UUID
	amount  int
}

// batchDecrements sums the plan per batch, in first-use order
func batchDecrements(plan []sales.LineDraft) []batchDecrement {
	index := make(map[uuid.UUID]int)
	var out []batchDecrement
	for _, line := range plan {
		for _, a := range line.Allocations {
			if i, ok := index[a.BatchID]; ok {
				out[i].amount += a.Quantity
				continue
			}
			index[a.BatchID] = len(out)
			out = append(out, batchDecrement{batchID: a.BatchID, drugID: line.DrugID, amount: a.Quantity})
		}
	}
	return out
}

// afterCommit publishes the sale's events and records metrics
func (s *SaleService) afterCommit(ctx context.Context, sale *sales.Sale) *SaleResponse {
	s.metrics.RecordSalePosted(ctx, string(sale.PaymentMethod), sale.TotalUnits(), sale.Total)
	s.logger.Info("Sale posted",
		zap.String("sale_id", sale.ID.String()),
		zap.String("sale_number", sale.SaleNumber),
		zap.Int("units", sale.TotalUnits()),
		zap.String("total", sale.Total.StringFixed(2)),
	)
	s.publishDomainEvents(ctx, sale)

	response := ToSaleResponse(sale)
	return &response
}

// replay returns the sale already posted under key, or nil
func (s *SaleService) replay(ctx context.Context, key string) (*SaleResponse, error) {
	existing, err := s.saleRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	response := ToSaleResponse(existing)
	response.Replayed = true
	return &response, nil
}

// replayAfterRace handles a key that another request holds or has just
// committed. If that sale exists it is returned, otherwise cause.
func (s *SaleService) replayAfterRace(ctx context.Context, key string, cause error) (*SaleResponse, error) {
	existing, err := s.replay(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return nil, cause
}

func (s *SaleService) claim(ctx context.Context, key string) (bool, error) {
	if s.idempotencyStore == nil || !s.config.Idempotency.Enabled {
		return true, nil
	}
	claimed, err := s.idempotencyStore.MarkProcessed(ctx, idempotencyStoreKey(key), s.config.Idempotency.TTL)
	if err != nil {
		// The unique index on sales.idempotency_key still prevents a double post
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return true, nil
	}
	return claimed, nil
}

func (s *SaleService) release(key string) {
	if s.idempotencyStore == nil || !s.config.Idempotency.Enabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.idempotencyStore.Release(ctx, idempotencyStoreKey(key)); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func idempotencyStoreKey(key string) string {
	return "sale:" + key
}

// GetSale returns a sale by ID
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(sale)
	return &response, nil
}

// ListSales returns sales newest first
func (s *SaleService) ListSales(ctx context.Context, filter SaleListFilter) ([]SaleResponse, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultFilter().PageSize
	}
	list, total, err := s.saleRepo.List(ctx, shared.Filter{
		Page:     1,
		PageSize: limit,
		Skip:     filter.Offset,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	})
	if err != nil {
		return nil, 0, err
	}
	return ToSaleResponses(list), total, nil
}

// publishDomainEvents publishes the sale's pending events. Publishing
// failures are logged, the sale has already committed.
func (s *SaleService) publishDomainEvents(ctx context.Context, sale *sales.Sale) {
	events := sale.PullDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish sale events",
			zap.String("sale_id", sale.ID.String()),
			zap.Error(err),
		)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
