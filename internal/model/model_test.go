package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMoney_StoredAsDouble(t *testing.T) {
	raw, err := bson.Marshal(OrderItem{ProductName: "Notebook Pro", Quantity: 1, UnitPrice: MustMoney("4500.00")})
	require.NoError(t, err)

	price := bson.Raw(raw).Lookup("preco_unitario")
	assert.Equal(t, bsontype.Double, price.Type)
	assert.Equal(t, 4500.0, price.Double())
}

func TestMoney_DecodesNumericBSONTypes(t *testing.T) {
	dec, err := primitive.ParseDecimal128("19.90")
	require.NoError(t, err)

	cases := map[string]interface{}{
		"double":     19.9,
		"decimal128": dec,
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(bson.D{{Key: "preco", Value: value}})
			require.NoError(t, err)

			var p Product
			require.NoError(t, bson.Unmarshal(raw, &p))
			assert.True(t, p.Price.Equal(MustMoney("19.90").Decimal), "got %s", p.Price)
		})
	}

	raw, err := bson.Marshal(bson.D{{Key: "preco", Value: int32(7)}})
	require.NoError(t, err)
	var p Product
	require.NoError(t, bson.Unmarshal(raw, &p))
	assert.Equal(t, "7", p.Price.String())
}

func TestMoney_RejectsStrings(t *testing.T) {
	raw, err := bson.Marshal(bson.D{{Key: "preco", Value: "cheap"}})
	require.NoError(t, err)

	var p Product
	assert.Error(t, bson.Unmarshal(raw, &p))
}

func TestOrder_ItemsTotal(t *testing.T) {
	order := Order{
		Total: MustMoney("109.80"),
		Items: []OrderItem{
			{Quantity: 2, UnitPrice: MustMoney("19.90")},
			{Quantity: 1, UnitPrice: MustMoney("70.00")},
		},
	}

	assert.Equal(t, "109.8", order.ItemsTotal().String())
	assert.True(t, order.TotalMatchesItems())

	order.Total = MustMoney("100.00")
	assert.False(t, order.TotalMatchesItems())
}

func TestOrder_ItemsTotalEmpty(t *testing.T) {
	var order Order
	assert.True(t, order.ItemsTotal().IsZero())
	assert.True(t, order.TotalMatchesItems())
}
