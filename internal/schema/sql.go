package schema

import (
	"fmt"
	"strings"
)

type Dialect int

const (
	Postgres Dialect = iota
	MySQL
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	if d == MySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Placeholders returns count comma separated markers starting at 1.
func (d Dialect) Placeholders(count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

func (d Dialect) timestamp() string {
	if d == MySQL {
		return "DATETIME(6)"
	}
	return "TIMESTAMPTZ"
}

func (d Dialect) money() string {
	if d == MySQL {
		return "DECIMAL(12, 2)"
	}
	return "NUMERIC(12, 2)"
}

// Tables backing the embedded order history of clientes.
const (
	TableOrders     = "pedidos"
	TableOrderItems = "itens_pedido"
)

func productsTable(d Dialect) string {
	return `
		CREATE TABLE IF NOT EXISTS produtos (
			id VARCHAR(24) PRIMARY KEY,
			nome VARCHAR(255) NOT NULL,
			categoria VARCHAR(255) NOT NULL,
			preco ` + d.money() + ` NOT NULL,
			estoque INT NOT NULL DEFAULT 0
		)
	`
}

func paymentsTable(d Dialect) string {
	return `
		CREATE TABLE IF NOT EXISTS pagamentos (
			id VARCHAR(24) PRIMARY KEY,
			pedido_id VARCHAR(24),
			tipo VARCHAR(64) NOT NULL,
			status VARCHAR(64) NOT NULL,
			data_pagamento ` + d.timestamp() + ` NOT NULL
		)
	`
}

func customersTable(d Dialect) string {
	return `
		CREATE TABLE IF NOT EXISTS clientes (
			id VARCHAR(24) PRIMARY KEY,
			nome VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			telefone VARCHAR(32) NOT NULL,
			data_cadastro ` + d.timestamp() + ` NOT NULL,
			cpf VARCHAR(14) NOT NULL
		)
	`
}

func ordersTable(d Dialect) string {
	return `
		CREATE TABLE IF NOT EXISTS pedidos (
			id VARCHAR(24) PRIMARY KEY,
			cliente_id VARCHAR(24) NOT NULL,
			data_pedido ` + d.timestamp() + ` NOT NULL,
			status VARCHAR(64) NOT NULL,
			valor_total ` + d.money() + ` NOT NULL,
			pagamento_id VARCHAR(24) NOT NULL,
			pagamento_tipo VARCHAR(64) NOT NULL,
			pagamento_status VARCHAR(64) NOT NULL,
			FOREIGN KEY (cliente_id) REFERENCES clientes (id) ON DELETE CASCADE
		)
	`
}

func orderItemsTable(d Dialect) string {
	return `
		CREATE TABLE IF NOT EXISTS itens_pedido (
			id VARCHAR(36) PRIMARY KEY,
			pedido_id VARCHAR(24) NOT NULL,
			posicao INT NOT NULL,
			produto_id VARCHAR(24) NOT NULL,
			nome_produto VARCHAR(255) NOT NULL,
			quantidade INT NOT NULL,
			preco_unitario ` + d.money() + ` NOT NULL,
			FOREIGN KEY (pedido_id) REFERENCES pedidos (id) ON DELETE CASCADE
		)
	`
}

// CreateTableStatements returns the DDL that materializes collection as
// tables, in execution order. clientes also brings up the child tables
// holding its embedded orders.
func CreateTableStatements(collection string, d Dialect) ([]string, error) {
	switch collection {
	case CollProducts:
		return []string{productsTable(d)}, nil
	case CollPayments:
		return []string{paymentsTable(d)}, nil
	case CollCustomers:
		return []string{customersTable(d), ordersTable(d), orderItemsTable(d)}, nil
	}
	return nil, fmt.Errorf("no table definition for collection %q", collection)
}

// Tables returns every table owned by the schema, children before parents,
// which is the order they must be dropped in.
func Tables() []string {
	return []string{TableOrderItems, TableOrders, CollCustomers, CollPayments, CollProducts}
}

// CreateIndexStatement renders idx for d. PostgreSQL gets IF NOT EXISTS;
// MySQL has no such clause and reports a duplicate key name instead.
func CreateIndexStatement(idx Index, d Dialect) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if d == Postgres {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(idx.SQLName())
	b.WriteString(" ON ")
	b.WriteString(idx.Collection)
	b.WriteString(" (")
	b.WriteString(orderList(idx.Keys))
	b.WriteString(")")
	return b.String()
}

func orderList(keys []IndexKey) string {
	cols := make([]string, len(keys))
	for i, k := range keys {
		dir := "ASC"
		if k.Direction == Descending {
			dir = "DESC"
		}
		cols[i] = k.Field + " " + dir
	}
	return strings.Join(cols, ", ")
}

// SelectStatement renders q as a parameterized SELECT of the primary key.
// The filter value is the single bind parameter.
func SelectStatement(q Query, d Dialect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id FROM %s WHERE %s = %s", q.Collection, q.Field, d.Placeholder(1))
	if len(q.Sort) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderList(q.Sort))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String()
}
