// Package seed loads reference data into a fresh PharmacyOS database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/benedict431app/PharmacyOS/internal/domain/catalog"
	"github.com/benedict431app/PharmacyOS/internal/domain/shared"
	"github.com/benedict431app/PharmacyOS/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Drug catalog CSV columns
const (
	ColumnName         = "name"
	ColumnGenericName  = "generic_name"
	ColumnManufacturer = "manufacturer"
	ColumnPrice        = "price"
	ColumnReorderLevel = "reorder_level"
	// ColumnActive is optional; a blank cell means active.
	ColumnActive = "active"
)

const (
	maxRowErrors = 50
	insertBatch  = 100
)

// RowError describes why one CSV line was rejected
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ValidationError rejects the whole file. errors.Is(err, shared.ErrValidation) holds.
type ValidationError struct {
	Rows      []RowError
	Truncated bool
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		msgs[i] = r.Error()
	}
	suffix := ""
	if e.Truncated {
		suffix = "; more errors omitted"
	}
	return fmt.Sprintf("drug catalog has %d invalid rows: %s%s", len(e.Rows), strings.Join(msgs, "; "), suffix)
}

func (e *ValidationError) Unwrap() error { return shared.ErrValidation }

func (e *ValidationError) add(r RowError) {
	if len(e.Rows) < maxRowErrors {
		e.Rows = append(e.Rows, r)
		return
	}
	e.Truncated = true
}

// Result summarises a catalog load
type Result struct {
	Rows     int
	Inserted int
	Skipped  []string // names already present in the database
}

// LoadDrugs reads a drug catalog CSV and inserts every drug whose name is
// not yet stored, all inside one transaction. Any invalid row rejects the
// whole file and nothing is written.
func LoadDrugs(ctx context.Context, db *gorm.DB, r io.Reader) (*Result, error) {
	drugs, err := parseDrugs(r)
	if err != nil {
		return nil, err
	}

	result := &Result{Rows: len(drugs)}
	if len(drugs) == 0 {
		return result, nil
	}

	names := make([]string, len(drugs))
	for i, d := range drugs {
		names[i] = d.Name
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&models.DrugModel{}).Where("name IN ?", names).Pluck("name", &existing).Error; err != nil {
			return fmt.Errorf("failed to look up existing drugs: %w", err)
		}
		stored := make(map[string]bool, len(existing))
		for _, name := range existing {
			stored[name] = true
		}

		toInsert := make([]*models.DrugModel, 0, len(drugs))
		for _, d := range drugs {
			if stored[d.Name] {
				result.Skipped = append(result.Skipped, d.Name)
				continue
			}
			toInsert = append(toInsert, models.DrugModelFromDomain(d))
		}
		if len(toInsert) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(toInsert, insertBatch).Error; err != nil {
			return fmt.Errorf("failed to insert drugs: %w", err)
		}
		result.Inserted = len(toInsert)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseDrugs(r io.Reader) ([]*catalog.Drug, error) {
	reader, err := newCSVReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	if err := reader.require(ColumnName, ColumnPrice); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}

	invalid := &ValidationError{}
	seen := make(map[string]int)
	var drugs []*catalog.Drug
	for {
		row, err := reader.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
		}

		d, rowErr := drugFromRow(row)
		if rowErr != nil {
			invalid.add(*rowErr)
			continue
		}
		if first, dup := seen[d.Name]; dup {
			invalid.add(RowError{Line: row.line, Column: ColumnName, Message: fmt.Sprintf("duplicate of line %d", first)})
			continue
		}
		seen[d.Name] = row.line
		drugs = append(drugs, d)
	}

	if len(invalid.Rows) > 0 {
		return nil, invalid
	}
	return drugs, nil
}

func drugFromRow(r row) (*catalog.Drug, *RowError) {
	price, err := decimal.NewFromString(r.get(ColumnPrice))
	if err != nil {
		return nil, &RowError{Line: r.line, Column: ColumnPrice, Message: fmt.Sprintf("%q is not a number", r.get(ColumnPrice))}
	}

	reorder := catalog.DefaultReorderLevel
	if raw := r.get(ColumnReorderLevel); raw != "" {
		reorder, err = strconv.Atoi(raw)
		if err != nil {
			return nil, &RowError{Line: r.line, Column: ColumnReorderLevel, Message: fmt.Sprintf("%q is not a whole number", raw)}
		}
	}

	d, err := catalog.NewDrug(r.get(ColumnName), price, reorder)
	if err != nil {
		return nil, &RowError{Line: r.line, Message: err.Error()}
	}
	if len(d.Name) > 200 {
		return nil, &RowError{Line: r.line, Column: ColumnName, Message: "name cannot exceed 200 characters"}
	}
	if raw := r.get(ColumnActive); raw != "" {
		active, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, &RowError{Line: r.line, Column: ColumnActive, Message: fmt.Sprintf("%q is not true or false", raw)}
		}
		d.Active = active
	}
	d.GenericName = r.get(ColumnGenericName)
	d.Manufacturer = r.get(ColumnManufacturer)
	return d, nil
}
