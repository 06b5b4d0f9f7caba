package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

var _ SchemaDriver = (*MySQLDriver)(nil)

type MySQLDriver struct {
	dsn string
	db  *sql.DB
}

func NewMySQLDriver(dsn string) *MySQLDriver {
	return &MySQLDriver{dsn: dsn}
}

// normalizeDSN forces the settings the row mapping depends on: DATETIME
// columns scanned as time.Time in UTC, and client-side interpolation so that
// EXPLAIN can carry the filter value.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true
	return cfg.FormatDSN(), nil
}

func (md *MySQLDriver) Connect(ctx context.Context) error {
	dsn, err := normalizeDSN(md.dsn)
	if err != nil {
		return err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		if isMySQLAuthError(err) {
			return classify(ErrAuthentication, err)
		}
		return err
	}
	md.db = db
	return nil
}

func (md *MySQLDriver) Close() error {
	if md.db == nil {
		return nil
	}
	return md.db.Close()
}

func (md *MySQLDriver) Reset(ctx context.Context) error {
	for _, table := range schema.Tables() {
		if _, err := md.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return err
		}
	}
	return nil
}

func (md *MySQLDriver) executeTx(ctx context.Context, txFunc func(*sql.Tx) error) (err error) {
	tx, err := md.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	return txFunc(tx)
}

func (md *MySQLDriver) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := md.db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// EnsureCollection runs outside a transaction: MySQL commits DDL implicitly.
func (md *MySQLDriver) EnsureCollection(ctx context.Context, name string) error {
	stmts, err := schema.CreateTableStatements(name, schema.MySQL)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	for _, stmt := range stmts {
		if _, err := md.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// EnsureIndex treats a duplicate key name as already applied. As with
// PostgreSQL only the name is compared.
func (md *MySQLDriver) EnsureIndex(ctx context.Context, idx schema.Index) error {
	if !schema.IsCollection(idx.Collection) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, idx.Collection)
	}
	_, err := md.db.ExecContext(ctx, schema.CreateIndexStatement(idx, schema.MySQL))
	return myIndexError(err)
}

func (md *MySQLDriver) InsertCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	return md.insert(ctx, func(ex execer) error {
		return insertCustomerRows(ctx, ex, schema.MySQL, c)
	})
}

func (md *MySQLDriver) InsertProducts(ctx context.Context, products []model.Product) error {
	return md.insert(ctx, func(ex execer) error {
		return insertProductRows(ctx, ex, schema.MySQL, products)
	})
}

func (md *MySQLDriver) InsertPayments(ctx context.Context, payments []model.Payment) error {
	return md.insert(ctx, func(ex execer) error {
		return insertPaymentRows(ctx, ex, schema.MySQL, payments)
	})
}

func (md *MySQLDriver) insert(ctx context.Context, fn func(execer) error) error {
	err := md.executeTx(ctx, func(tx *sql.Tx) error {
		return fn(sqlExecer{tx})
	})
	return myInsertError(err)
}

func (md *MySQLDriver) CustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	c, err := loadCustomer(ctx, sqlQuerier{md.db}, schema.MySQL, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (md *MySQLDriver) Count(ctx context.Context, collection string) (int64, error) {
	if !schema.IsCollection(collection) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	var n int64
	err := md.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+collection).Scan(&n)
	return n, err
}

const myIndexColumnsQuery = `
	SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME, COLLATION
	FROM information_schema.STATISTICS
	WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY'
	ORDER BY INDEX_NAME, SEQ_IN_INDEX
`

func (md *MySQLDriver) Indexes(ctx context.Context, collection string) ([]schema.Index, error) {
	if !schema.IsCollection(collection) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	rows, err := md.db.QueryContext(ctx, myIndexColumnsQuery, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []indexColumn
	for rows.Next() {
		var (
			c         indexColumn
			nonUnique int
			collation sql.NullString
		)
		if err := rows.Scan(&c.name, &nonUnique, &c.field, &collation); err != nil {
			return nil, err
		}
		c.unique = nonUnique == 0
		c.descending = collation.Valid && collation.String == "D"
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupIndexColumns(collection, cols), nil
}

func (md *MySQLDriver) ExplainIndex(ctx context.Context, q schema.Query) (string, error) {
	var plan string
	err := md.db.QueryRowContext(ctx, "EXPLAIN FORMAT=JSON "+schema.SelectStatement(q, schema.MySQL), q.Value).Scan(&plan)
	if err != nil {
		return "", err
	}
	var doc interface{}
	if err := json.Unmarshal([]byte(plan), &doc); err != nil {
		return "", err
	}
	return findJSONKey(doc, "key"), nil
}

func (md *MySQLDriver) Find(ctx context.Context, q schema.Query) (int, error) {
	rows, err := md.db.QueryContext(ctx, schema.SelectStatement(q, schema.MySQL), q.Value)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

type sqlExecer struct {
	tx *sql.Tx
}

func (e sqlExecer) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := e.tx.ExecContext(ctx, query, args...)
	return err
}

type sqlQuerier struct {
	db *sql.DB
}

func (q sqlQuerier) QueryRow(ctx context.Context, query string, args ...interface{}) rowScanner {
	return q.db.QueryRowContext(ctx, query, args...)
}

func (q sqlQuerier) Query(ctx context.Context, query string, args ...interface{}) (rowIterator, error) {
	return q.db.QueryContext(ctx, query, args...)
}
