package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/benedict431app/PharmacyOS/internal/domain/inventory"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer settled the sale
type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodCredit        PaymentMethod = "credit"
	PaymentMethodMobilePayment PaymentMethod = "mobile_payment"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodCredit, PaymentMethodMobilePayment:
		return true
	}
	return false
}

// AllPaymentMethods returns all valid payment methods
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodCredit, PaymentMethodMobilePayment}
}

var hundred = decimal.NewFromInt(100)

// BatchAllocation records how many units of a line came from which batch
type BatchAllocation struct {
	ID        uuid.UUID
	BatchID   uuid.UUID
	LotNumber string
	Quantity  int
}

// LineItem is one drug entry of a sale. UnitPrice is captured at sale time.
type LineItem struct {
	ID          uuid.UUID
	DrugID      uuid.UUID
	DrugName    string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Allocations []BatchAllocation
}

// Sale is an immutable record of a completed point-of-sale transaction
type Sale struct {
	shared.BaseAggregateRoot
	SaleNumber     string
	CustomerID     *uuid.UUID
	PrescriptionID *uuid.UUID
	PaymentMethod  PaymentMethod
	Lines          []LineItem
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	TaxRate        decimal.Decimal // percentage
	Tax            decimal.Decimal
	Total          decimal.Decimal
	AmountPaid     decimal.Decimal
	Change         decimal.Decimal
	BalanceDue     decimal.Decimal
	Notes          string
	IdempotencyKey string
}

// Draft is everything needed to build a sale once stock has been allocated
type Draft struct {
	CustomerID     *uuid.UUID
	PrescriptionID *uuid.UUID
	PaymentMethod  PaymentMethod
	Discount       decimal.Decimal
	AmountPaid     *decimal.Decimal
	Notes          string
	IdempotencyKey string
	Lines          []LineDraft
}

// LineDraft is a priced, allocated sale line
type LineDraft struct {
	DrugID      uuid.UUID
	DrugName    string
	Quantity    int
	UnitPrice   decimal.Decimal
	Allocations []inventory.Allocation
}

// NewSale builds a sale from an allocated draft. taxRate is a percentage of
// the discounted subtotal.
func NewSale(d Draft, taxRate decimal.Decimal) (*Sale, error) {
	if len(d.Lines) == 0 {
		return nil, fmt.Errorf("%w: a sale needs at least one line", shared.ErrValidation)
	}
	if !d.PaymentMethod.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, d.PaymentMethod)
	}
	if taxRate.IsNegative() {
		return nil, fmt.Errorf("%w: tax rate cannot be negative", shared.ErrValidation)
	}
	if d.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount cannot be negative", shared.ErrValidation)
	}

	sale := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        d.CustomerID,
		PrescriptionID:    d.PrescriptionID,
		PaymentMethod:     d.PaymentMethod,
		Discount:          d.Discount.Round(2),
		TaxRate:           taxRate,
		Notes:             strings.TrimSpace(d.Notes),
		IdempotencyKey:    d.IdempotencyKey,
		Lines:             make([]LineItem, 0, len(d.Lines)),
	}
	sale.SaleNumber = NewSaleNumber(sale.ID, sale.CreatedAt)

	subtotal := decimal.Zero
	for i, ld := range d.Lines {
		line, err := newLineItem(ld)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		subtotal = subtotal.Add(line.LineTotal)
		sale.Lines = append(sale.Lines, line)
	}

	totals, err := applyDiscountAndTax(subtotal, sale.Discount, taxRate)
	if err != nil {
		return nil, err
	}
	sale.Subtotal = totals.Subtotal
	sale.Tax = totals.Tax
	sale.Total = totals.Total

	if err := sale.settle(d.AmountPaid); err != nil {
		return nil, err
	}

	sale.AddDomainEvent(NewSalePostedEvent(sale))
	return sale, nil
}

func newLineItem(ld LineDraft) (LineItem, error) {
	if ld.DrugID == uuid.Nil {
		return LineItem{}, fmt.Errorf("%w: drug id is required", shared.ErrInvalidLine)
	}
	if ld.Quantity < 1 {
		return LineItem{}, fmt.Errorf("%w: quantity must be at least 1", shared.ErrInvalidLine)
	}
	if ld.UnitPrice.IsNegative() {
		return LineItem{}, fmt.Errorf("%w: unit price cannot be negative", shared.ErrInvalidLine)
	}
	if got := inventory.AllocatedQuantity(ld.Allocations); got != ld.Quantity {
		return LineItem{}, fmt.Errorf("%w: allocated %d of %d units", shared.ErrInvalidState, got, ld.Quantity)
	}

	line := LineItem{
		ID:          uuid.New(),
		DrugID:      ld.DrugID,
		DrugName:    ld.DrugName,
		Quantity:    ld.Quantity,
		UnitPrice:   ld.UnitPrice.Round(2),
		LineTotal:   LineTotal(ld.UnitPrice, ld.Quantity),
		Allocations: make([]BatchAllocation, 0, len(ld.Allocations)),
	}
	for _, a := range ld.Allocations {
		line.Allocations = append(line.Allocations, BatchAllocation{
			ID:        uuid.New(),
			BatchID:   a.BatchID,
			LotNumber: a.LotNumber,
			Quantity:  a.Quantity,
		})
	}
	return line, nil
}

// Totals are the monetary amounts of a sale, rounded to cents
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// PricedQuantity is a line that has a price but no batches yet
type PricedQuantity struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal is the cent-rounded unit price times quantity. The unit price is
// rounded first so the stored price always reproduces the stored total.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Round(2).Mul(decimal.NewFromInt(int64(quantity)))
}

// Quote computes what a sale would cost and checks the payment against it.
// NewSale applies the same rules, so a request that quotes cleanly can only
// fail later for stock reasons.
func Quote(lines []PricedQuantity, discount, taxRate decimal.Decimal, method PaymentMethod, amountPaid *decimal.Decimal) (Totals, error) {
	if taxRate.IsNegative() {
		return Totals{}, fmt.Errorf("%w: tax rate cannot be negative", shared.ErrValidation)
	}
	if discount.IsNegative() {
		return Totals{}, fmt.Errorf("%w: discount cannot be negative", shared.ErrValidation)
	}
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	totals, err := applyDiscountAndTax(subtotal, discount.Round(2), taxRate)
	if err != nil {
		return Totals{}, err
	}
	if _, err := checkPayment(method, totals.Total, amountPaid); err != nil {
		return Totals{}, err
	}
	return totals, nil
}

func applyDiscountAndTax(subtotal, discount, taxRate decimal.Decimal) (Totals, error) {
	if discount.GreaterThan(subtotal) {
		return Totals{}, fmt.Errorf("%w: discount %s exceeds subtotal %s", shared.ErrValidation, discount.StringFixed(2), subtotal.StringFixed(2))
	}
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(taxRate).Div(hundred).Round(2)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}, nil
}

// checkPayment returns the amount tendered. Only credit sales may pay less
// than the total.
func checkPayment(method PaymentMethod, total decimal.Decimal, amountPaid *decimal.Decimal) (decimal.Decimal, error) {
	paid := total
	if amountPaid != nil {
		paid = amountPaid.Round(2)
	}
	if paid.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: amount paid cannot be negative", shared.ErrValidation)
	}
	if paid.LessThan(total) && method != PaymentMethodCredit {
		return decimal.Zero, fmt.Errorf("%w: amount paid %s is less than total %s", shared.ErrValidation, paid.StringFixed(2), total.StringFixed(2))
	}
	return paid, nil
}

// settle applies the payment. Only credit sales may leave a balance due.
func (s *Sale) settle(amountPaid *decimal.Decimal) error {
	paid, err := checkPayment(s.PaymentMethod, s.Total, amountPaid)
	if err != nil {
		return err
	}
	s.AmountPaid = paid
	s.Change = decimal.Max(paid.Sub(s.Total), decimal.Zero)
	s.BalanceDue = decimal.Max(s.Total.Sub(paid), decimal.Zero)
	return nil
}

// TotalUnits returns the number of units sold across all lines
func (s *Sale) TotalUnits() int {
	total := 0
	for _, l := range s.Lines {
		total += l.Quantity
	}
	return total
}

// DrugIDs returns the distinct drugs on the sale in line order
func (s *Sale) DrugIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(s.Lines))
	ids := make([]uuid.UUID, 0, len(s.Lines))
	for _, l := range s.Lines {
		if !seen[l.DrugID] {
			seen[l.DrugID] = true
			ids = append(ids, l.DrugID)
		}
	}
	return ids
}

// NewSaleNumber formats a human readable sale number such as SALE-20260316-1A2B3C4D
func NewSaleNumber(id uuid.UUID, at time.Time) string {
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("SALE-%s-%s", at.UTC().Format("20060102"), hex[:8])
}
