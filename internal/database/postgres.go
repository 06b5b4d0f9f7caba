package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
)

var _ SchemaDriver = (*PostgresDriver)(nil)

type PostgresDriver struct {
	dsn  string
	pool *pgxpool.Pool
}

func NewPostgresDriver(dsn string) *PostgresDriver {
	return &PostgresDriver{dsn: dsn}
}

func (pd *PostgresDriver) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, pd.dsn)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if isPgAuthError(err) {
			return classify(ErrAuthentication, err)
		}
		return err
	}
	pd.pool = pool
	return nil
}

func (pd *PostgresDriver) Close() error {
	if pd.pool != nil {
		pd.pool.Close()
	}
	return nil
}

func (pd *PostgresDriver) Reset(ctx context.Context) error {
	for _, table := range schema.Tables() {
		if _, err := pd.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return err
		}
	}
	return nil
}

func (pd *PostgresDriver) executeTx(ctx context.Context, txFunc func(pgx.Tx) error) (err error) {
	tx, err := pd.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return txFunc(tx)
}

func (pd *PostgresDriver) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := pd.pool.Query(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name")
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

func (pd *PostgresDriver) EnsureCollection(ctx context.Context, name string) error {
	stmts, err := schema.CreateTableStatements(name, schema.Postgres)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return pd.executeTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureIndex relies on IF NOT EXISTS, which only compares names; a
// definition drift under the same name is caught by verification.
func (pd *PostgresDriver) EnsureIndex(ctx context.Context, idx schema.Index) error {
	if !schema.IsCollection(idx.Collection) {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, idx.Collection)
	}
	_, err := pd.pool.Exec(ctx, schema.CreateIndexStatement(idx, schema.Postgres))
	return pgIndexError(err)
}

func (pd *PostgresDriver) InsertCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	err := pd.executeTx(ctx, func(tx pgx.Tx) error {
		return insertCustomerRows(ctx, pgxExecer{tx}, schema.Postgres, c)
	})
	return pgInsertError(err)
}

func (pd *PostgresDriver) InsertProducts(ctx context.Context, products []model.Product) error {
	err := pd.executeTx(ctx, func(tx pgx.Tx) error {
		return insertProductRows(ctx, pgxExecer{tx}, schema.Postgres, products)
	})
	return pgInsertError(err)
}

func (pd *PostgresDriver) InsertPayments(ctx context.Context, payments []model.Payment) error {
	err := pd.executeTx(ctx, func(tx pgx.Tx) error {
		return insertPaymentRows(ctx, pgxExecer{tx}, schema.Postgres, payments)
	})
	return pgInsertError(err)
}

func (pd *PostgresDriver) CustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	c, err := loadCustomer(ctx, pgxQuerier{pd.pool}, schema.Postgres, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (pd *PostgresDriver) Count(ctx context.Context, collection string) (int64, error) {
	if !schema.IsCollection(collection) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	var n int64
	err := pd.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+collection).Scan(&n)
	return n, err
}

const pgIndexColumnsQuery = `
	SELECT i.relname, ix.indisunique, a.attname, (ix.indoption[(k.n - 1)::int] & 1) = 1
	FROM pg_class t
	JOIN pg_index ix ON ix.indrelid = t.oid
	JOIN pg_class i ON i.oid = ix.indexrelid
	CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, n)
	JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
	WHERE t.relname = $1 AND t.relkind = 'r' AND NOT ix.indisprimary
	  AND pg_catalog.pg_table_is_visible(t.oid)
	ORDER BY i.relname, k.n
`

func (pd *PostgresDriver) Indexes(ctx context.Context, collection string) ([]schema.Index, error) {
	if !schema.IsCollection(collection) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	rows, err := pd.pool.Query(ctx, pgIndexColumnsQuery, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []indexColumn
	for rows.Next() {
		var c indexColumn
		if err := rows.Scan(&c.name, &c.unique, &c.field, &c.descending); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupIndexColumns(collection, cols), nil
}

// ExplainIndex disables sequential scans for the explain so that the plan
// reflects whether the index can serve the query, independent of how few
// rows the table holds right after bootstrap. The statement is sent with
// client-side interpolation since EXPLAIN cannot be prepared with parameters.
func (pd *PostgresDriver) ExplainIndex(ctx context.Context, q schema.Query) (string, error) {
	var name string
	err := pd.executeTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL enable_seqscan = off"); err != nil {
			return err
		}
		var plan []byte
		if err := tx.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+schema.SelectStatement(q, schema.Postgres),
				pgx.QueryExecModeSimpleProtocol, q.Value).Scan(&plan); err != nil {
			return err
		}
		var doc interface{}
		if err := json.Unmarshal(plan, &doc); err != nil {
			return err
		}
		name = findJSONKey(doc, "Index Name")
		return nil
	})
	return name, err
}

func (pd *PostgresDriver) Find(ctx context.Context, q schema.Query) (int, error) {
	rows, err := pd.pool.Query(ctx, schema.SelectStatement(q, schema.Postgres), q.Value)
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

// pgxExecer and pgxQuerier adapt pgx to the small interfaces shared with the
// MySQL driver in sqlrows.go.
type pgxExecer struct {
	tx pgx.Tx
}

func (e pgxExecer) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := e.tx.Exec(ctx, query, args...)
	return err
}

type pgxQuerier struct {
	pool *pgxpool.Pool
}

func (q pgxQuerier) QueryRow(ctx context.Context, query string, args ...interface{}) rowScanner {
	return q.pool.QueryRow(ctx, query, args...)
}

func (q pgxQuerier) Query(ctx context.Context, query string, args ...interface{}) (rowIterator, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows}, nil
}

type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}
