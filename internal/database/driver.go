package database

import (
	"context"

	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

// SchemaDriver is the set of administrative and data calls the bootstrap
// needs from an engine. Collections map to tables on SQL engines.
type SchemaDriver interface {
	Connect(ctx context.Context) error
	Close() error
	// Reset drops everything the schema owns.
	Reset(ctx context.Context) error

	// ListCollections returns every collection or table present in the
	// target database, including ones the schema does not own.
	ListCollections(ctx context.Context) ([]string, error)
	EnsureCollection(ctx context.Context, name string) error
	EnsureIndex(ctx context.Context, idx schema.Index) error

	InsertCustomer(ctx context.Context, c *model.Customer) error
	InsertProducts(ctx context.Context, products []model.Product) error
	InsertPayments(ctx context.Context, payments []model.Payment) error

	CustomerByEmail(ctx context.Context, email string) (*model.Customer, error)
	Count(ctx context.Context, collection string) (int64, error)
	// Indexes lists the secondary indexes present on collection.
	Indexes(ctx context.Context, collection string) ([]schema.Index, error)
	// ExplainIndex returns the name of the index the engine would scan to
	// answer q, or "" when the plan does not use one.
	ExplainIndex(ctx context.Context, q schema.Query) (string, error)
	// Find runs q and returns the number of rows produced.
	Find(ctx context.Context, q schema.Query) (int, error)
}
