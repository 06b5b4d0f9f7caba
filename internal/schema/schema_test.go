package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections(t *testing.T) {
	assert.Equal(t, []string{"produtos", "pagamentos", "clientes"}, Collections())
	assert.True(t, IsCollection("clientes"))
	assert.False(t, IsCollection("Clientes"))
	assert.False(t, IsCollection("pedidos"))
}

func TestIndexes_MatchShellBootstrapNames(t *testing.T) {
	var names []string
	for _, idx := range Indexes() {
		names = append(names, idx.Name())
	}
	assert.Equal(t, []string{"categoria_1_preco_1", "tipo_1_data_pagamento_-1", "email_1"}, names)
}

func TestIndexes_OnlyEmailIsUnique(t *testing.T) {
	for _, idx := range Indexes() {
		assert.Equal(t, idx.Collection == CollCustomers, idx.Unique, idx.String())
	}
}

func TestIndexes_FreshSlice(t *testing.T) {
	first := Indexes()
	first[0].Keys[0].Field = "mutated"
	first[2].Unique = false

	second := Indexes()
	assert.Equal(t, "categoria", second[0].Keys[0].Field)
	assert.True(t, second[2].Unique)
}

func TestIndex_Equal(t *testing.T) {
	idx := Indexes()[1]

	same := Index{Collection: CollPayments, Keys: []IndexKey{{"tipo", Ascending}, {"data_pagamento", Descending}}}
	assert.True(t, idx.Equal(same))

	flipped := Index{Collection: CollPayments, Keys: []IndexKey{{"tipo", Ascending}, {"data_pagamento", Ascending}}}
	assert.False(t, idx.Equal(flipped))

	unique := same
	unique.Unique = true
	assert.False(t, idx.Equal(unique))

	assert.False(t, idx.Equal(Index{Collection: CollPayments, Keys: []IndexKey{{"tipo", Ascending}}}))
}

func TestIndexesFor(t *testing.T) {
	idx := IndexesFor(CollCustomers)
	require.Len(t, idx, 1)
	assert.Equal(t, "email_1", idx[0].Name())

	assert.Empty(t, IndexesFor("pedidos"))
}

func TestCreateIndexStatement(t *testing.T) {
	idx := Indexes()

	assert.Equal(t,
		"CREATE INDEX IF NOT EXISTS idx_pagamentos_tipo_data_pagamento ON pagamentos (tipo ASC, data_pagamento DESC)",
		CreateIndexStatement(idx[1], Postgres))
	assert.Equal(t,
		"CREATE UNIQUE INDEX idx_clientes_email ON clientes (email ASC)",
		CreateIndexStatement(idx[2], MySQL))
}

func TestCreateTableStatements(t *testing.T) {
	stmts, err := CreateTableStatements(CollCustomers, Postgres)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS clientes")
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS pedidos")
	assert.Contains(t, stmts[2], "CREATE TABLE IF NOT EXISTS itens_pedido")
	assert.Contains(t, stmts[0], "TIMESTAMPTZ")

	stmts, err = CreateTableStatements(CollProducts, MySQL)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "DECIMAL(12, 2)")
	assert.NotContains(t, stmts[0], "NUMERIC")

	_, err = CreateTableStatements("pedidos", Postgres)
	assert.Error(t, err)
}

func TestCreateTableStatements_EmailHasNoInlineUnique(t *testing.T) {
	// uniqueness comes from the email index so that its creation can fail
	// on duplicate data
	stmts, err := CreateTableStatements(CollCustomers, Postgres)
	require.NoError(t, err)
	assert.False(t, strings.Contains(strings.ToUpper(stmts[0]), "UNIQUE"))
}

func TestSelectStatement(t *testing.T) {
	q := IndexedQueries()

	assert.Equal(t,
		"SELECT id FROM produtos WHERE categoria = $1 ORDER BY preco ASC LIMIT 50",
		SelectStatement(q[0], Postgres))
	assert.Equal(t,
		"SELECT id FROM pagamentos WHERE tipo = ? ORDER BY data_pagamento DESC LIMIT 50",
		SelectStatement(q[1], MySQL))
	assert.Equal(t,
		"SELECT id FROM clientes WHERE email = $1 LIMIT 1",
		SelectStatement(q[2], Postgres))
}

func TestDialect_Placeholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", Postgres.Placeholders(3))
	assert.Equal(t, "?, ?", MySQL.Placeholders(2))
}

func TestIndexedQueries_ServedByTheirIndex(t *testing.T) {
	for _, q := range IndexedQueries() {
		t.Run(q.Name, func(t *testing.T) {
			assert.Equal(t, q.Collection, q.Index.Collection)
			require.NotEmpty(t, q.Index.Keys)
			// equality field leads the index, sort keys follow in order
			assert.Equal(t, q.Field, q.Index.Keys[0].Field)
			for i, k := range q.Sort {
				assert.Equal(t, q.Index.Keys[i+1], k)
			}
		})
	}
}

func TestQuery_MongoDocuments(t *testing.T) {
	q := IndexedQueries()[1].WithValue("cartao")

	assert.Equal(t, bson.D{{Key: "tipo", Value: "cartao"}}, q.Filter())
	assert.Equal(t, bson.D{{Key: "data_pagamento", Value: int32(-1)}}, q.SortDoc())
	assert.Equal(t, "pix", IndexedQueries()[1].Value)
}
