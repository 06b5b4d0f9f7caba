// Package bootstrap brings a database up to the techmarket schema: it
// authenticates, ensures collections and indexes, and seeds the
// representative customer. Every step is idempotent.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"techmarket-bootstrap/internal/config"
	"techmarket-bootstrap/internal/database"
	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
	"techmarket-bootstrap/internal/seed"
)

const (
	DefaultDatabase    = "techmarket_db"
	DefaultCallTimeout = 10 * time.Second
)

type Options struct {
	// Database only names the target in log output; selecting it is the
	// driver's job.
	Database    string
	CallTimeout time.Duration
	// Reset drops the schema before rebuilding it.
	Reset bool
	Seed  bool
	Fake  config.Fake
	Now   func() time.Time
}

// StepError names the bootstrap step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Bootstrapper struct {
	db     database.SchemaDriver
	logger *log.Logger
	opts   Options
}

func New(db database.SchemaDriver, logger *log.Logger, opts Options) *Bootstrapper {
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Bootstrapper{db: db, logger: logger, opts: opts}
}

// call runs one administrative call under its own timeout.
func (b *Bootstrapper) call(ctx context.Context, step string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.CallTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return &StepError{Step: step, Err: err}
	}
	return nil
}

// Connect authenticates against the configured auth source. It must succeed
// before any structural change is attempted.
func (b *Bootstrapper) Connect(ctx context.Context) error {
	return b.call(ctx, "connect", b.db.Connect)
}

func (b *Bootstrapper) EnsureCollection(ctx context.Context, name string) error {
	return b.call(ctx, "create collection "+name, func(ctx context.Context) error {
		return b.db.EnsureCollection(ctx, name)
	})
}

func (b *Bootstrapper) EnsureIndex(ctx context.Context, idx schema.Index) error {
	return b.call(ctx, "create index "+idx.String(), func(ctx context.Context) error {
		return b.db.EnsureIndex(ctx, idx)
	})
}

// InsertSeedCustomer inserts c. A customer whose email already exists is
// rejected with database.ErrDuplicateKey.
func (b *Bootstrapper) InsertSeedCustomer(ctx context.Context, c *model.Customer) error {
	return b.call(ctx, "insert customer "+c.Email, func(ctx context.Context) error {
		return b.db.InsertCustomer(ctx, c)
	})
}

// Run executes the whole bootstrap and stops at the first fatal error. The
// success message is logged only once every step has completed.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.Connect(ctx); err != nil {
		return err
	}
	b.logger.Printf("Authenticated, using database %s", b.opts.Database)

	if b.opts.Reset {
		if err := b.call(ctx, "reset", b.db.Reset); err != nil {
			return err
		}
		b.logger.Printf("Dropped existing schema")
	}

	for _, name := range schema.Collections() {
		if err := b.EnsureCollection(ctx, name); err != nil {
			return err
		}
		b.logger.Printf("Collection %s ready", name)
	}

	for _, idx := range schema.Indexes() {
		if err := b.EnsureIndex(ctx, idx); err != nil {
			return err
		}
		b.logger.Printf("Index %s ready", idx)
	}

	if b.opts.Seed {
		err := b.InsertSeedCustomer(ctx, seed.Customer(b.opts.Now()))
		switch {
		case errors.Is(err, database.ErrDuplicateKey):
			b.logger.Printf("Seed customer %s already present", seed.CustomerEmail)
		case err != nil:
			return err
		default:
			b.logger.Printf("Seed customer %s inserted", seed.CustomerEmail)
		}
	}

	if err := b.insertFakeData(ctx); err != nil {
		return err
	}

	b.logger.Printf("Database '%s' and collections created successfully", b.opts.Database)
	return nil
}

func (b *Bootstrapper) insertFakeData(ctx context.Context) error {
	fake := b.opts.Fake
	if fake.Products <= 0 && fake.Customers <= 0 && fake.Payments <= 0 {
		return nil
	}
	gen := seed.NewGenerator(fake.Seed, b.opts.Now())

	products := gen.Products(fake.Products)
	if len(products) > 0 {
		err := b.call(ctx, "insert fake products", func(ctx context.Context) error {
			return b.db.InsertProducts(ctx, products)
		})
		if err != nil {
			return err
		}
	}

	customers := gen.Customers(fake.Customers, products)
	for i := range customers {
		if err := b.InsertSeedCustomer(ctx, &customers[i]); err != nil {
			return err
		}
	}

	payments := gen.Payments(fake.Payments, customers)
	if len(payments) > 0 {
		err := b.call(ctx, "insert fake payments", func(ctx context.Context) error {
			return b.db.InsertPayments(ctx, payments)
		})
		if err != nil {
			return err
		}
	}

	b.logger.Printf("Inserted %d fake products, %d customers, %d payments", len(products), len(customers), len(payments))
	return nil
}
