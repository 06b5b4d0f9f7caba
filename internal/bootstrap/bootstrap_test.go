package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techmarket-bootstrap/internal/config"
	"techmarket-bootstrap/internal/database"
	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
	"techmarket-bootstrap/internal/seed"
)

const successMessage = "Database 'techmarket_db' and collections created successfully"

func newTestBootstrapper(db database.SchemaDriver, opts Options) (*Bootstrapper, *bytes.Buffer) {
	var buf bytes.Buffer
	opts.Seed = true
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC) }
	}
	return New(db, log.New(&buf, "", 0), opts), &buf
}

func TestRunOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	b, logs := newTestBootstrapper(db, Options{})

	require.NoError(t, b.Run(ctx))
	assert.Contains(t, logs.String(), successMessage)

	names, err := db.ListCollections(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, schema.Collections(), names)

	for _, coll := range schema.Collections() {
		got, err := db.Indexes(ctx, coll)
		require.NoError(t, err)
		want := schema.IndexesFor(coll)
		require.Len(t, got, len(want), coll)
		for i := range want {
			assert.True(t, want[i].Equal(got[i]), "%s: got %s", coll, got[i])
		}
	}

	n, err := db.Count(ctx, schema.CollCustomers)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	c, err := db.CustomerByEmail(ctx, seed.CustomerEmail)
	require.NoError(t, err)
	assert.Empty(t, seedShapeProblems(c))
	require.Len(t, c.Orders, 1)
	require.Len(t, c.Orders[0].Items, 1)
	assert.Equal(t, "Notebook Pro", c.Orders[0].Items[0].ProductName)
	assert.Equal(t, 1, c.Orders[0].Items[0].Quantity)
	assert.Equal(t, "4500.00", c.Orders[0].Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "4500.00", c.Orders[0].Total.StringFixed(2))
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()

	first, _ := newTestBootstrapper(db, Options{})
	require.NoError(t, first.Run(ctx))

	second, logs := newTestBootstrapper(db, Options{})
	require.NoError(t, second.Run(ctx))
	assert.Contains(t, logs.String(), "Seed customer maria.o@example.com already present")
	assert.Contains(t, logs.String(), successMessage)

	names, err := db.ListCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, names, 3)

	for _, coll := range schema.Collections() {
		got, err := db.Indexes(ctx, coll)
		require.NoError(t, err)
		assert.Len(t, got, len(schema.IndexesFor(coll)), coll)
	}

	n, err := db.Count(ctx, schema.CollCustomers)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestInsertSeedCustomerRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	b, _ := newTestBootstrapper(db, Options{})
	require.NoError(t, b.Run(ctx))

	err := b.InsertSeedCustomer(ctx, seed.Customer(time.Now()))
	require.ErrorIs(t, err, database.ErrDuplicateKey)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "insert customer maria.o@example.com", stepErr.Step)

	n, err := db.Count(ctx, schema.CollCustomers)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRunAbortsOnAuthenticationFailure(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	db.ConnectErr = fmt.Errorf("%w: bad password for root", database.ErrAuthentication)
	b, logs := newTestBootstrapper(db, Options{})

	err := b.Run(ctx)
	require.ErrorIs(t, err, database.ErrAuthentication)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "connect", stepErr.Step)

	names, err := db.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NotContains(t, logs.String(), successMessage)
}

func TestRunAbortsOnSchemaConflict(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()

	twin := seed.Customer(time.Now())
	twin.Name = "Maria O."
	require.NoError(t, db.InsertCustomer(ctx, seed.Customer(time.Now())))
	require.NoError(t, db.InsertCustomer(ctx, twin))

	b, logs := newTestBootstrapper(db, Options{})
	err := b.Run(ctx)
	require.ErrorIs(t, err, database.ErrSchemaConflict)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "create index clientes(email_1) unique", stepErr.Step)
	assert.NotContains(t, logs.String(), successMessage)
	assert.NotContains(t, logs.String(), "Seed customer")

	n, err := db.Count(ctx, schema.CollCustomers)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRunAppliesCallTimeout(t *testing.T) {
	db := database.NewMemoryDriver()
	db.Latency = time.Second
	b, _ := newTestBootstrapper(db, Options{CallTimeout: 20 * time.Millisecond})

	start := time.Now()
	err := b.Run(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRunWithReset(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	require.NoError(t, db.InsertProducts(ctx, []model.Product{{Name: "old", Category: "Notebooks"}}))

	b, _ := newTestBootstrapper(db, Options{Reset: true})
	require.NoError(t, b.Run(ctx))

	n, err := db.Count(ctx, schema.CollProducts)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunWithFakeData(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	b, logs := newTestBootstrapper(db, Options{
		Fake: config.Fake{Customers: 5, Products: 10, Payments: 4, Seed: 42},
	})

	require.NoError(t, b.Run(ctx))
	assert.Contains(t, logs.String(), "Inserted 10 fake products, 5 customers, 4 payments")

	counts := map[string]int64{
		schema.CollProducts:  10,
		schema.CollCustomers: 6,
		schema.CollPayments:  4,
	}
	for coll, want := range counts {
		n, err := db.Count(ctx, coll)
		require.NoError(t, err)
		assert.Equal(t, want, n, coll)
	}
}

func TestVerifyAfterRun(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	b, logs := newTestBootstrapper(db, Options{})
	require.NoError(t, b.Run(ctx))

	report := b.Verify(ctx)
	assert.True(t, report.OK(), "failed: %v", report.Failed())
	assert.Empty(t, report.Warnings)
	assert.Contains(t, logs.String(), "PASS plan products_by_category: uses categoria_1_preco_1")
	assert.Contains(t, logs.String(), "PASS plan payments_by_type: uses tipo_1_data_pagamento_-1")
}

func TestVerifyReportsMissingIndex(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	b, _ := newTestBootstrapper(db, Options{})
	require.NoError(t, b.Run(ctx))

	db.DropIndex(schema.CollPayments, "tipo_1_data_pagamento_-1")

	report := b.Verify(ctx)
	require.False(t, report.OK())

	var failed []string
	for _, c := range report.Failed() {
		failed = append(failed, c.Name)
	}
	assert.ElementsMatch(t, []string{
		"index pagamentos(tipo_1_data_pagamento_-1)",
		"plan payments_by_type",
	}, failed)
}

func TestVerifyOnEmptyDatabase(t *testing.T) {
	db := database.NewMemoryDriver()
	b, _ := newTestBootstrapper(db, Options{})

	report := b.Verify(context.Background())
	assert.False(t, report.OK())

	byName := make(map[string]Check)
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.False(t, byName["collection produtos"].Passed)
	assert.False(t, byName["customer count"].Passed)
	assert.Equal(t, "maria.o@example.com not found", byName["seed customer"].Detail)
}

func TestVerifyWithoutSeed(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	var logs bytes.Buffer
	b := New(db, log.New(&logs, "", 0), Options{Seed: false})
	require.NoError(t, b.Run(ctx))

	n, err := db.Count(ctx, schema.CollCustomers)
	require.NoError(t, err)
	require.Zero(t, n)

	report := b.Verify(ctx)
	assert.True(t, report.OK(), "failed: %v", report.Failed())

	byName := make(map[string]Check)
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.True(t, byName["customer count"].Passed)
	assert.Equal(t, "0", byName["customer count"].Detail)
	assert.NotContains(t, byName, "seed customer")
	assert.Contains(t, logs.String(), "PASS customer count: 0")
}

func TestVerifyWarnsOnOrderTotalMismatch(t *testing.T) {
	ctx := context.Background()
	db := database.NewMemoryDriver()
	b, _ := newTestBootstrapper(db, Options{})
	require.NoError(t, b.Connect(ctx))

	c := seed.Customer(time.Now())
	c.Orders[0].Total = model.MustMoney("4000.00")
	require.NoError(t, b.InsertSeedCustomer(ctx, c))

	report := b.Verify(ctx)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "total 4000.00 differs from items total 4500.00")

	var seedCheck Check
	for _, check := range report.Checks {
		if check.Name == "seed customer" {
			seedCheck = check
		}
	}
	assert.False(t, seedCheck.Passed)
	assert.Contains(t, seedCheck.Detail, "order total is 4000.00")
}

func TestSeedShapeProblems(t *testing.T) {
	c := seed.Customer(time.Now())
	assert.Empty(t, seedShapeProblems(c))

	c.Orders[0].Items[0].Quantity = 2
	c.Orders[0].Payment.Status = model.PaymentStatusDeclined
	assert.Equal(t, []string{
		"payment is cartao/recusado, expected cartao/aprovado",
		"item quantity is 2, expected 1",
	}, seedShapeProblems(c))

	c.Orders = nil
	assert.Equal(t, []string{"order count is 0, expected 1"}, seedShapeProblems(c))
}
