package model

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// Money is a decimal amount. It is stored as a BSON double in MongoDB and as
// a fixed-point NUMERIC/DECIMAL column in SQL databases.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics if it is not a valid decimal.
func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.Double, bsoncore.AppendDouble(nil, m.InexactFloat64()), nil
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(raw.Int64())
	case bsontype.Decimal128:
		d, err := decimal.NewFromString(raw.Decimal128().String())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Null:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
	return nil
}
