package schema

import "go.mongodb.org/mongo-driver/bson"

// Query is an equality filter on one field followed by a sort. Every Query
// returned by IndexedQueries is expected to be answered by Index without a
// collection scan.
type Query struct {
	Name       string
	Collection string
	Field      string
	Value      interface{}
	Sort       []IndexKey
	Limit      int64
	Index      Index
}

// Filter is the MongoDB filter document for q.
func (q Query) Filter() bson.D {
	return bson.D{{Key: q.Field, Value: q.Value}}
}

// SortDoc is the MongoDB sort document for q.
func (q Query) SortDoc() bson.D {
	doc := make(bson.D, 0, len(q.Sort))
	for _, k := range q.Sort {
		doc = append(doc, bson.E{Key: k.Field, Value: int32(k.Direction)})
	}
	return doc
}

// WithValue returns a copy of q filtering on value.
func (q Query) WithValue(value interface{}) Query {
	q.Value = value
	return q
}

// IndexedQueries returns the lookups the bootstrap indexes are built for:
// products of a category by price, payments of a type newest first, and a
// customer by email.
func IndexedQueries() []Query {
	idx := Indexes()
	return []Query{
		{
			Name:       "products_by_category",
			Collection: CollProducts,
			Field:      "categoria",
			Value:      "Notebooks",
			Sort:       []IndexKey{{"preco", Ascending}},
			Limit:      50,
			Index:      idx[0],
		},
		{
			Name:       "payments_by_type",
			Collection: CollPayments,
			Field:      "tipo",
			Value:      "pix",
			Sort:       []IndexKey{{"data_pagamento", Descending}},
			Limit:      50,
			Index:      idx[1],
		},
		{
			Name:       "customer_by_email",
			Collection: CollCustomers,
			Field:      "email",
			Value:      "maria.o@example.com",
			Limit:      1,
			Index:      idx[2],
		},
	}
}
