package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"techmarket-bootstrap/internal/database"
	"techmarket-bootstrap/internal/model"
	"techmarket-bootstrap/internal/schema"
	"techmarket-bootstrap/internal/seed"
)

type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Report is the outcome of Verify. Warnings never fail a report.
type Report struct {
	Checks   []Check
	Warnings []string
}

func (r *Report) add(name string, passed bool, format string, args ...interface{}) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Detail: fmt.Sprintf(format, args...)})
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Verify inspects the live database: collections and indexes exist with the
// declared keys, every indexed query is planned on its index, and the seed
// customer has the expected shape.
func (b *Bootstrapper) Verify(ctx context.Context) *Report {
	r := &Report{}
	b.verifyCollections(ctx, r)
	b.verifyIndexes(ctx, r)
	b.verifyPlans(ctx, r)
	b.verifyCustomers(ctx, r)

	for _, c := range r.Checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		b.logger.Printf("%s %s: %s", status, c.Name, c.Detail)
	}
	for _, w := range r.Warnings {
		b.logger.Printf("WARN %s", w)
	}
	return r
}

func (b *Bootstrapper) verifyCollections(ctx context.Context, r *Report) {
	var names []string
	err := b.call(ctx, "list collections", func(ctx context.Context) (err error) {
		names, err = b.db.ListCollections(ctx)
		return err
	})
	if err != nil {
		r.add("collections", false, "%v", err)
		return
	}

	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	for _, c := range schema.Collections() {
		if present[c] {
			r.add("collection "+c, true, "exists")
		} else {
			r.add("collection "+c, false, "missing")
		}
	}
}

func (b *Bootstrapper) verifyIndexes(ctx context.Context, r *Report) {
	for _, coll := range schema.Collections() {
		var found []schema.Index
		err := b.call(ctx, "list indexes "+coll, func(ctx context.Context) (err error) {
			found, err = b.db.Indexes(ctx, coll)
			return err
		})

		for _, want := range schema.IndexesFor(coll) {
			name := "index " + want.String()
			if err != nil {
				r.add(name, false, "%v", err)
				continue
			}
			if matchIndex(want, found) {
				r.add(name, true, "present")
			} else {
				r.add(name, false, "missing or defined differently, found %v", found)
			}
		}
	}
}

func matchIndex(want schema.Index, found []schema.Index) bool {
	for _, f := range found {
		if want.Equal(f) {
			return true
		}
	}
	return false
}

func (b *Bootstrapper) verifyPlans(ctx context.Context, r *Report) {
	for _, q := range schema.IndexedQueries() {
		var got string
		err := b.call(ctx, "explain "+q.Name, func(ctx context.Context) (err error) {
			got, err = b.db.ExplainIndex(ctx, q)
			return err
		})
		name := "plan " + q.Name
		switch {
		case err != nil:
			r.add(name, false, "%v", err)
		case got == q.Index.Name() || got == q.Index.SQLName():
			r.add(name, true, "uses %s", got)
		case got == "":
			r.add(name, false, "no index scan in winning plan")
		default:
			r.add(name, false, "uses %s, expected %s", got, q.Index.Name())
		}
	}
}

func (b *Bootstrapper) verifyCustomers(ctx context.Context, r *Report) {
	var n int64
	err := b.call(ctx, "count customers", func(ctx context.Context) (err error) {
		n, err = b.db.Count(ctx, schema.CollCustomers)
		return err
	})
	switch {
	case err != nil:
		r.add("customer count", false, "%v", err)
	case n == 0 && b.opts.Seed:
		r.add("customer count", false, "no customers")
	default:
		r.add("customer count", true, "%d", n)
	}

	if !b.opts.Seed {
		return
	}

	var c *model.Customer
	err = b.call(ctx, "find seed customer", func(ctx context.Context) (err error) {
		c, err = b.db.CustomerByEmail(ctx, seed.CustomerEmail)
		return err
	})
	switch {
	case errors.Is(err, database.ErrNotFound):
		r.add("seed customer", false, "%s not found", seed.CustomerEmail)
		return
	case err != nil:
		r.add("seed customer", false, "%v", err)
		return
	}

	if problems := seedShapeProblems(c); len(problems) > 0 {
		r.add("seed customer", false, "%v", problems)
	} else {
		r.add("seed customer", true, "%s with 1 order of 1 item", c.Name)
	}

	for _, o := range c.Orders {
		if !o.TotalMatchesItems() {
			r.warn("order %s total %s differs from items total %s", o.ID.Hex(), o.Total.StringFixed(2), o.ItemsTotal().StringFixed(2))
		}
	}
}

// seedShapeProblems compares c with the document Run inserts. Identifiers and
// the registration date vary between runs and are not compared.
func seedShapeProblems(c *model.Customer) []string {
	want := seed.Customer(c.RegisteredAt)
	var problems []string
	mismatch := func(field string, got, expected interface{}) {
		problems = append(problems, fmt.Sprintf("%s is %v, expected %v", field, got, expected))
	}

	if c.Name != want.Name {
		mismatch("name", c.Name, want.Name)
	}
	if c.Phone != want.Phone {
		mismatch("phone", c.Phone, want.Phone)
	}
	if c.CPF != want.CPF {
		mismatch("cpf", c.CPF, want.CPF)
	}
	if len(c.Orders) != 1 {
		mismatch("order count", len(c.Orders), 1)
		return problems
	}

	got, exp := c.Orders[0], want.Orders[0]
	if !got.OrderedAt.Equal(exp.OrderedAt) {
		mismatch("order date", got.OrderedAt, exp.OrderedAt)
	}
	if got.Status != exp.Status {
		mismatch("order status", got.Status, exp.Status)
	}
	if !got.Total.Equal(exp.Total.Decimal) {
		mismatch("order total", got.Total.StringFixed(2), exp.Total.StringFixed(2))
	}
	if got.Payment.Type != exp.Payment.Type || got.Payment.Status != exp.Payment.Status {
		mismatch("payment",
			fmt.Sprintf("%s/%s", got.Payment.Type, got.Payment.Status),
			fmt.Sprintf("%s/%s", exp.Payment.Type, exp.Payment.Status))
	}
	if len(got.Items) != 1 {
		mismatch("item count", len(got.Items), 1)
		return problems
	}

	gi, ei := got.Items[0], exp.Items[0]
	if gi.ProductName != ei.ProductName {
		mismatch("item name", gi.ProductName, ei.ProductName)
	}
	if gi.Quantity != ei.Quantity {
		mismatch("item quantity", gi.Quantity, ei.Quantity)
	}
	if !gi.UnitPrice.Equal(ei.UnitPrice.Decimal) {
		mismatch("item unit price", gi.UnitPrice.StringFixed(2), ei.UnitPrice.StringFixed(2))
	}
	return problems
}
