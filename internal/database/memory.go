package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

var _ SchemaDriver = (*MemoryDriver)(nil)

// MemoryDriver keeps the schema in process memory. It enforces unique indexes
// the way a server would and backs dry runs and tests.
type MemoryDriver struct {
	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// Latency delays every call. A call whose context ends first fails with
	// the context error.
	Latency time.Duration

	mu          sync.Mutex
	collections map[string]bool
	indexes     map[string][]schema.Index
	customers   []model.Customer
	products    []model.Product
	payments    []model.Payment
}

func NewMemoryDriver() *MemoryDriver {
	m := &MemoryDriver{}
	m.clear()
	return m
}

func (m *MemoryDriver) clear() {
	m.collections = make(map[string]bool)
	m.indexes = make(map[string][]schema.Index)
	m.customers = nil
	m.products = nil
	m.payments = nil
}

func (m *MemoryDriver) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MemoryDriver) Connect(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	return m.ConnectErr
}

func (m *MemoryDriver) Close() error {
	return nil
}

func (m *MemoryDriver) Reset(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	return nil
}

func (m *MemoryDriver) ListCollections(ctx context.Context) ([]string, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryDriver) EnsureCollection(ctx context.Context, name string) error {
	if !schema.IsCollection(name) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = true
	return nil
}

func (m *MemoryDriver) EnsureIndex(ctx context.Context, idx schema.Index) error {
	if !schema.IsCollection(idx.Collection) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, idx.Collection)
	}
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.indexes[idx.Collection] {
		if existing.Name() != idx.Name() {
			continue
		}
		if existing.Equal(idx) {
			return nil
		}
		return fmt.Errorf("%w: index %s exists with a different definition", ErrSchemaConflict, idx.Name())
	}

	if idx.Unique {
		seen := make(map[string]bool)
		for _, row := range m.rows(idx.Collection) {
			key := indexKey(idx, row)
			if seen[key] {
				return fmt.Errorf("%w: duplicate %s value %s", ErrSchemaConflict, idx.Name(), key)
			}
			seen[key] = true
		}
	}

	m.collections[idx.Collection] = true
	m.indexes[idx.Collection] = append(m.indexes[idx.Collection], idx)
	return nil
}

// checkUnique reports whether adding rows to collection would violate a
// unique index. Callers hold mu.
func (m *MemoryDriver) checkUnique(collection string, rows []map[string]interface{}) error {
	for _, idx := range m.indexes[collection] {
		if !idx.Unique {
			continue
		}
		seen := make(map[string]bool)
		for _, row := range m.rows(collection) {
			seen[indexKey(idx, row)] = true
		}
		for _, row := range rows {
			key := indexKey(idx, row)
			if seen[key] {
				return fmt.Errorf("%w: %s %s", ErrDuplicateKey, idx.Name(), key)
			}
			seen[key] = true
		}
	}
	return nil
}

func (m *MemoryDriver) InsertCustomer(ctx context.Context, c *model.Customer) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkUnique(schema.CollCustomers, []map[string]interface{}{customerRow(*c)}); err != nil {
		return err
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.collections[schema.CollCustomers] = true
	m.customers = append(m.customers, cloneCustomer(*c))
	return nil
}

func (m *MemoryDriver) InsertProducts(ctx context.Context, products []model.Product) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]map[string]interface{}, len(products))
	for i, p := range products {
		rows[i] = productRow(p)
	}
	if err := m.checkUnique(schema.CollProducts, rows); err != nil {
		return err
	}
	for i := range products {
		if products[i].ID.IsZero() {
			products[i].ID = primitive.NewObjectID()
		}
	}
	m.collections[schema.CollProducts] = true
	m.products = append(m.products, products...)
	return nil
}

func (m *MemoryDriver) InsertPayments(ctx context.Context, payments []model.Payment) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]map[string]interface{}, len(payments))
	for i, p := range payments {
		rows[i] = paymentRow(p)
	}
	if err := m.checkUnique(schema.CollPayments, rows); err != nil {
		return err
	}
	for i := range payments {
		if payments[i].ID.IsZero() {
			payments[i].ID = primitive.NewObjectID()
		}
	}
	m.collections[schema.CollPayments] = true
	m.payments = append(m.payments, payments...)
	return nil
}

func (m *MemoryDriver) CustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.customers {
		if c.Email == email {
			out := cloneCustomer(c)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryDriver) Count(ctx context.Context, collection string) (int64, error) {
	if !schema.IsCollection(collection) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows(collection))), nil
}

func (m *MemoryDriver) Indexes(ctx context.Context, collection string) ([]schema.Index, error) {
	if !schema.IsCollection(collection) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Index(nil), m.indexes[collection]...), nil
}

// DropIndex removes the index named name from collection.
func (m *MemoryDriver) DropIndex(collection, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.indexes[collection][:0]
	for _, idx := range m.indexes[collection] {
		if idx.Name() != name {
			kept = append(kept, idx)
		}
	}
	m.indexes[collection] = kept
}

// ExplainIndex picks the first index whose leading key is the filtered
// field, which is what a server planner does for these equality queries.
func (m *MemoryDriver) ExplainIndex(ctx context.Context, q schema.Query) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, idx := range m.indexes[q.Collection] {
		if len(idx.Keys) > 0 && idx.Keys[0].Field == q.Field {
			return idx.Name(), nil
		}
	}
	return "", nil
}

func (m *MemoryDriver) Find(ctx context.Context, q schema.Query) (int, error) {
	if !schema.IsCollection(q.Collection) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, q.Collection)
	}
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, row := range m.rows(q.Collection) {
		if row[q.Field] == q.Value {
			n++
			if q.Limit > 0 && int64(n) == q.Limit {
				break
			}
		}
	}
	return n, nil
}

// rows renders collection as field maps keyed by stored field name. Callers
// hold mu.
func (m *MemoryDriver) rows(collection string) []map[string]interface{} {
	var out []map[string]interface{}
	switch collection {
	case schema.CollProducts:
		for _, p := range m.products {
			out = append(out, productRow(p))
		}
	case schema.CollPayments:
		for _, p := range m.payments {
			out = append(out, paymentRow(p))
		}
	case schema.CollCustomers:
		for _, c := range m.customers {
			out = append(out, customerRow(c))
		}
	}
	return out
}

func indexKey(idx schema.Index, row map[string]interface{}) string {
	parts := make([]string, len(idx.Keys))
	for i, k := range idx.Keys {
		parts[i] = fmt.Sprint(row[k.Field])
	}
	return strings.Join(parts, "|")
}

func productRow(p model.Product) map[string]interface{} {
	return map[string]interface{}{
		"_id":       p.ID,
		"nome":      p.Name,
		"categoria": p.Category,
		"preco":     p.Price.String(),
		"estoque":   p.Stock,
	}
}

func paymentRow(p model.Payment) map[string]interface{} {
	return map[string]interface{}{
		"_id":            p.ID,
		"pedido_id":      p.OrderID,
		"tipo":           string(p.Type),
		"status":         string(p.Status),
		"data_pagamento": p.PaidAt,
	}
}

func customerRow(c model.Customer) map[string]interface{} {
	return map[string]interface{}{
		"_id":           c.ID,
		"nome":          c.Name,
		"email":         c.Email,
		"telefone":      c.Phone,
		"data_cadastro": c.RegisteredAt,
		"cpf":           c.CPF,
	}
}

func cloneCustomer(c model.Customer) model.Customer {
	orders := make([]model.Order, len(c.Orders))
	for i, o := range c.Orders {
		o.Items = append([]model.OrderItem(nil), o.Items...)
		orders[i] = o
	}
	c.Orders = orders
	return c
}
