package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

// The SQL drivers share row mapping through these interfaces. Identifiers
// are stored as ObjectID hex strings and money as decimal text so that both
// engines take the plain text path.

type execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type rowIterator interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

type querier interface {
	QueryRow(ctx context.Context, query string, args ...interface{}) rowScanner
	Query(ctx context.Context, query string, args ...interface{}) (rowIterator, error)
}

func insertCustomerRows(ctx context.Context, ex execer, d schema.Dialect, c *model.Customer) error {
	err := ex.Exec(ctx,
		"INSERT INTO clientes (id, nome, email, telefone, data_cadastro, cpf) VALUES ("+d.Placeholders(6)+")",
		c.ID.Hex(), c.Name, c.Email, c.Phone, c.RegisteredAt, c.CPF)
	if err != nil {
		return err
	}

	for i := range c.Orders {
		o := &c.Orders[i]
		if o.ID.IsZero() {
			o.ID = primitive.NewObjectID()
		}
		err := ex.Exec(ctx,
			"INSERT INTO pedidos (id, cliente_id, data_pedido, status, valor_total, pagamento_id, pagamento_tipo, pagamento_status) VALUES ("+d.Placeholders(8)+")",
			o.ID.Hex(), c.ID.Hex(), o.OrderedAt, string(o.Status), o.Total.StringFixed(2),
			o.Payment.PaymentID.Hex(), string(o.Payment.Type), string(o.Payment.Status))
		if err != nil {
			return err
		}

		for pos, item := range o.Items {
			err := ex.Exec(ctx,
				"INSERT INTO itens_pedido (id, pedido_id, posicao, produto_id, nome_produto, quantidade, preco_unitario) VALUES ("+d.Placeholders(7)+")",
				uuid.NewString(), o.ID.Hex(), pos, item.ProductID.Hex(), item.ProductName, item.Quantity, item.UnitPrice.StringFixed(2))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func insertProductRows(ctx context.Context, ex execer, d schema.Dialect, products []model.Product) error {
	query := "INSERT INTO produtos (id, nome, categoria, preco, estoque) VALUES (" + d.Placeholders(5) + ")"
	for i := range products {
		p := &products[i]
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		if err := ex.Exec(ctx, query, p.ID.Hex(), p.Name, p.Category, p.Price.StringFixed(2), p.Stock); err != nil {
			return err
		}
	}
	return nil
}

func insertPaymentRows(ctx context.Context, ex execer, d schema.Dialect, payments []model.Payment) error {
	query := "INSERT INTO pagamentos (id, pedido_id, tipo, status, data_pagamento) VALUES (" + d.Placeholders(5) + ")"
	for i := range payments {
		p := &payments[i]
		if p.ID.IsZero() {
			p.ID = primitive.NewObjectID()
		}
		var orderID interface{}
		if !p.OrderID.IsZero() {
			orderID = p.OrderID.Hex()
		}
		if err := ex.Exec(ctx, query, p.ID.Hex(), orderID, string(p.Type), string(p.Status), p.PaidAt); err != nil {
			return err
		}
	}
	return nil
}

// loadCustomer rebuilds a customer with its embedded orders. A missing
// customer surfaces as the engine's own no-rows error.
func loadCustomer(ctx context.Context, q querier, d schema.Dialect, email string) (*model.Customer, error) {
	var (
		c  model.Customer
		id string
	)
	err := q.QueryRow(ctx,
		"SELECT id, nome, email, telefone, data_cadastro, cpf FROM clientes WHERE email = "+d.Placeholder(1), email).
		Scan(&id, &c.Name, &c.Email, &c.Phone, &c.RegisteredAt, &c.CPF)
	if err != nil {
		return nil, err
	}
	if c.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("customer id %q: %w", id, err)
	}

	c.Orders, err = loadOrders(ctx, q, d, id)
	if err != nil {
		return nil, err
	}
	for i := range c.Orders {
		c.Orders[i].Items, err = loadItems(ctx, q, d, c.Orders[i].ID.Hex())
		if err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func loadOrders(ctx context.Context, q querier, d schema.Dialect, customerID string) ([]model.Order, error) {
	rows, err := q.Query(ctx,
		"SELECT id, data_pedido, status, valor_total, pagamento_id, pagamento_tipo, pagamento_status FROM pedidos WHERE cliente_id = "+d.Placeholder(1)+" ORDER BY data_pedido, id",
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var (
			id, status, total, paymentID, paymentType, paymentStatus string
			orderedAt                                                time.Time
		)
		if err := rows.Scan(&id, &orderedAt, &status, &total, &paymentID, &paymentType, &paymentStatus); err != nil {
			return nil, err
		}
		o := model.Order{
			OrderedAt: orderedAt.UTC(),
			Status:    model.OrderStatus(status),
			Payment: model.PaymentSnapshot{
				Type:   model.PaymentType(paymentType),
				Status: model.PaymentStatus(paymentStatus),
			},
		}
		if o.ID, err = primitive.ObjectIDFromHex(id); err != nil {
			return nil, fmt.Errorf("order id %q: %w", id, err)
		}
		if o.Payment.PaymentID, err = primitive.ObjectIDFromHex(paymentID); err != nil {
			return nil, fmt.Errorf("payment id %q: %w", paymentID, err)
		}
		if o.Total, err = parseMoney(total); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func loadItems(ctx context.Context, q querier, d schema.Dialect, orderID string) ([]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		"SELECT produto_id, nome_produto, quantidade, preco_unitario FROM itens_pedido WHERE pedido_id = "+d.Placeholder(1)+" ORDER BY posicao",
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var (
			item             model.OrderItem
			productID, price string
		)
		if err := rows.Scan(&productID, &item.ProductName, &item.Quantity, &price); err != nil {
			return nil, err
		}
		if item.ProductID, err = primitive.ObjectIDFromHex(productID); err != nil {
			return nil, fmt.Errorf("product id %q: %w", productID, err)
		}
		if item.UnitPrice, err = parseMoney(price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func parseMoney(s string) (model.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return model.Money{}, fmt.Errorf("money %q: %w", s, err)
	}
	return model.NewMoney(d), nil
}

type indexColumn struct {
	name       string
	unique     bool
	field      string
	descending bool
}

// groupIndexColumns folds per-column catalog rows, ordered by index name and
// key position, into indexes.
func groupIndexColumns(collection string, cols []indexColumn) []schema.Index {
	var (
		out  []schema.Index
		last string
	)
	for _, c := range cols {
		if len(out) == 0 || c.name != last {
			out = append(out, schema.Index{Collection: collection, Unique: c.unique})
			last = c.name
		}
		dir := schema.Ascending
		if c.descending {
			dir = schema.Descending
		}
		cur := &out[len(out)-1]
		cur.Keys = append(cur.Keys, schema.IndexKey{Field: c.field, Direction: dir})
	}
	return out
}

// findJSONKey returns the first string value stored under key anywhere in a
// decoded JSON document, depth first. Object members are visited in key order
// so plans with several matches always report the same one.
func findJSONKey(doc interface{}, key string) string {
	switch v := doc.(type) {
	case map[string]interface{}:
		if s, ok := v[key].(string); ok {
			return s
		}
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if s := findJSONKey(v[name], key); s != "" {
				return s
			}
		}
	case []interface{}:
		for _, child := range v {
			if s := findJSONKey(child, key); s != "" {
				return s
			}
		}
	}
	return ""
}
