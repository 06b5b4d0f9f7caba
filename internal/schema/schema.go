// Package schema declares the collections and indexes of techmarket_db and
// the query shapes those indexes exist to serve.
package schema

import (
	"fmt"
	"strings"
)

const (
	CollProducts  = "produtos"
	CollPayments  = "pagamentos"
	CollCustomers = "clientes"
)

type Direction int32

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

type IndexKey struct {
	Field     string
	Direction Direction
}

// Index is an ordered list of keys over one collection.
type Index struct {
	Collection string
	Keys       []IndexKey
	Unique     bool
}

// Name follows MongoDB's default index naming, e.g. tipo_1_data_pagamento_-1,
// so indexes created by an earlier shell bootstrap are recognized as the same.
func (i Index) Name() string {
	parts := make([]string, 0, len(i.Keys)*2)
	for _, k := range i.Keys {
		parts = append(parts, k.Field, fmt.Sprint(int32(k.Direction)))
	}
	return strings.Join(parts, "_")
}

// SQLName is the identifier used for the index in SQL databases.
func (i Index) SQLName() string {
	fields := make([]string, 0, len(i.Keys))
	for _, k := range i.Keys {
		fields = append(fields, k.Field)
	}
	return "idx_" + i.Collection + "_" + strings.Join(fields, "_")
}

// Equal reports whether both indexes cover the same collection with the same
// keys, directions and uniqueness.
func (i Index) Equal(other Index) bool {
	if i.Collection != other.Collection || i.Unique != other.Unique || len(i.Keys) != len(other.Keys) {
		return false
	}
	for n := range i.Keys {
		if i.Keys[n] != other.Keys[n] {
			return false
		}
	}
	return true
}

func (i Index) String() string {
	s := i.Collection + "(" + i.Name() + ")"
	if i.Unique {
		s += " unique"
	}
	return s
}

// Collections returns the collection names in creation order.
func Collections() []string {
	return []string{CollProducts, CollPayments, CollCustomers}
}

// IsCollection reports whether name is one of Collections.
func IsCollection(name string) bool {
	for _, c := range Collections() {
		if c == name {
			return true
		}
	}
	return false
}

// Indexes returns the indexes that must exist after bootstrap. A new slice is
// built on every call so callers may modify it freely.
func Indexes() []Index {
	return []Index{
		{
			Collection: CollProducts,
			Keys:       []IndexKey{{"categoria", Ascending}, {"preco", Ascending}},
		},
		{
			Collection: CollPayments,
			Keys:       []IndexKey{{"tipo", Ascending}, {"data_pagamento", Descending}},
		},
		{
			Collection: CollCustomers,
			Keys:       []IndexKey{{"email", Ascending}},
			Unique:     true,
		},
	}
}

// IndexesFor returns the subset of Indexes declared on collection.
func IndexesFor(collection string) []Index {
	var out []Index
	for _, idx := range Indexes() {
		if idx.Collection == collection {
			out = append(out, idx)
		}
	}
	return out
}
