package catalog

import (
	"context"

	"github.com/google/uuid"
)

// DrugReader provides read access to the drug catalog
type DrugReader interface {
	// FindByID returns a drug or shared.ErrUnknownDrug
	FindByID(ctx context.Context, id uuid.UUID) (*Drug, error)

	// FindByIDs returns the drugs that exist among ids, keyed by id.
	// Missing ids are simply absent from the map.
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Drug, error)

	// ListActive returns every active drug ordered by name
	ListActive(ctx context.Context) ([]Drug, error)

	// CountActive returns the number of active drugs
	CountActive(ctx context.Context) (int64, error)
}

// DrugWriter is used by catalog seeding only
type DrugWriter interface {
	// Save creates or updates a drug
	Save(ctx context.Context, drug *Drug) error

	// ExistsByName reports whether a drug with the given name exists
	ExistsByName(ctx context.Context, name string) (bool, error)
}
