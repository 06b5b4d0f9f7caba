package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"techmarket-bootstrap/internal/model"
)

type priceRange struct {
	min, max float64
}

var (
	categories = []string{
		"Smartphones",
		"Notebooks",
		"Tablets",
		"Smart TVs",
		"Fones de Ouvido",
		"Smartwatches",
		"Câmeras",
		"Acessórios",
		"Periféricos",
		"Componentes PC",
	}

	categoryPrices = map[string]priceRange{
		"Smartphones":     {800.00, 8000.00},
		"Notebooks":       {2000.00, 15000.00},
		"Tablets":         {500.00, 5000.00},
		"Smart TVs":       {1200.00, 12000.00},
		"Fones de Ouvido": {50.00, 2000.00},
		"Smartwatches":    {200.00, 3000.00},
		"Câmeras":         {500.00, 8000.00},
		"Acessórios":      {20.00, 500.00},
		"Periféricos":     {50.00, 1000.00},
		"Componentes PC":  {100.00, 5000.00},
	}

	productBrands   = []string{"TechPro", "SmartTech", "InnovatePro", "FutureTech", "NextGen", "EliteTech", "PrimeTech", "UltraTech", "MaxTech", "ProTech"}
	productSuffixes = []string{"Pro", "Ultra", "Max", "Plus", "Lite", "Premium", "Elite", "Smart", "Tech", "Advanced"}

	orderStatuses = []model.OrderStatus{
		model.OrderStatusProcessing,
		model.OrderStatusAwaitingPayment,
		model.OrderStatusPaid,
		model.OrderStatusPicking,
		model.OrderStatusInTransit,
		model.OrderStatusDelivered,
		model.OrderStatusCancelled,
	}

	paymentTypes = []model.PaymentType{
		model.PaymentTypePix,
		model.PaymentTypeCard,
		model.PaymentTypeBoleto,
		model.PaymentTypeTransfer,
	}

	// cumulative weights out of 100
	paymentStatusWeights = []struct {
		status model.PaymentStatus
		upTo   int
	}{
		{model.PaymentStatusApproved, 70},
		{model.PaymentStatusPending, 80},
		{model.PaymentStatusDeclined, 85},
		{model.PaymentStatusProcessing, 95},
		{model.PaymentStatusRefunded, 100},
	}
)

// Categories returns the product categories fake products are drawn from.
func Categories() []string {
	return append([]string(nil), categories...)
}

// Generator produces fake but well-formed documents. The same seed yields the
// same names, prices and dates; emails additionally carry a random suffix so
// repeated runs never collide on the unique email index.
type Generator struct {
	faker *gofakeit.Faker
	now   time.Time
}

// NewGenerator returns a Generator. A zero seed picks a random one.
func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{faker: gofakeit.New(seed), now: now.UTC()}
}

func (g *Generator) daysAgo(maxDays int) time.Time {
	return g.now.Add(-time.Duration(g.faker.Number(0, maxDays-1)) * 24 * time.Hour).Truncate(time.Millisecond)
}

func (g *Generator) price(category string) model.Money {
	r := categoryPrices[category]
	return model.NewMoney(decimal.NewFromFloat(g.faker.Float64Range(r.min, r.max)).Truncate(2))
}

// Products returns n products spread across Categories.
func (g *Generator) Products(n int) []model.Product {
	products := make([]model.Product, n)
	for i := range products {
		category := categories[g.faker.Number(0, len(categories)-1)]
		products[i] = model.Product{
			ID: primitive.NewObjectID(),
			Name: fmt.Sprintf("%s %s %s %d",
				g.faker.RandomString(productBrands),
				category,
				g.faker.RandomString(productSuffixes),
				g.faker.Number(1000, 9999)),
			Category: category,
			Price:    g.price(category),
			Stock:    g.faker.Number(100, 1000),
		}
	}
	return products
}

// Customers returns n customers, each with up to three orders whose items
// are drawn from catalog. Order totals always equal the item subtotals.
func (g *Generator) Customers(n int, catalog []model.Product) []model.Customer {
	customers := make([]model.Customer, n)
	for i := range customers {
		first, last := g.faker.FirstName(), g.faker.LastName()
		c := model.Customer{
			ID:           primitive.NewObjectID(),
			Name:         first + " " + last,
			Email:        g.email(first, last),
			Phone:        g.phone(),
			RegisteredAt: g.daysAgo(365),
			CPF:          g.CPF(),
			Orders:       []model.Order{},
		}
		if len(catalog) > 0 {
			for o := g.faker.Number(0, 3); o > 0; o-- {
				c.Orders = append(c.Orders, g.order(catalog))
			}
		}
		customers[i] = c
	}
	return customers
}

func (g *Generator) order(catalog []model.Product) model.Order {
	count := g.faker.Number(1, min(5, len(catalog)))
	used := make(map[int]bool, count)
	items := make([]model.OrderItem, 0, count)
	for len(items) < count {
		n := g.faker.Number(0, len(catalog)-1)
		if used[n] {
			continue
		}
		used[n] = true
		p := catalog[n]
		items = append(items, model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    g.faker.Number(1, 5),
			UnitPrice:   p.Price,
		})
	}

	order := model.Order{
		ID:        primitive.NewObjectID(),
		OrderedAt: g.daysAgo(90),
		Status:    orderStatuses[g.faker.Number(0, len(orderStatuses)-1)],
		Items:     items,
		Payment: model.PaymentSnapshot{
			PaymentID: primitive.NewObjectID(),
			Type:      paymentTypes[g.faker.Number(0, len(paymentTypes)-1)],
			Status:    g.paymentStatus(),
		},
	}
	order.Total = order.ItemsTotal()
	return order
}

// Payments returns n payments. The first ones mirror the payment snapshots
// embedded in customers' orders; the rest are standalone.
func (g *Generator) Payments(n int, customers []model.Customer) []model.Payment {
	payments := make([]model.Payment, 0, n)
	for _, c := range customers {
		for _, o := range c.Orders {
			if len(payments) == n {
				return payments
			}
			payments = append(payments, model.Payment{
				ID:      o.Payment.PaymentID,
				OrderID: o.ID,
				Type:    o.Payment.Type,
				Status:  o.Payment.Status,
				PaidAt:  o.OrderedAt,
			})
		}
	}
	for len(payments) < n {
		payments = append(payments, model.Payment{
			ID:      primitive.NewObjectID(),
			OrderID: primitive.NewObjectID(),
			Type:    paymentTypes[g.faker.Number(0, len(paymentTypes)-1)],
			Status:  g.paymentStatus(),
			PaidAt:  g.daysAgo(30),
		})
	}
	return payments
}

func (g *Generator) paymentStatus() model.PaymentStatus {
	roll := g.faker.Number(0, 99)
	for _, w := range paymentStatusWeights {
		if roll < w.upTo {
			return w.status
		}
	}
	return model.PaymentStatusApproved
}

func (g *Generator) email(first, last string) string {
	local := strings.ToLower(first + "." + last)
	local = strings.ReplaceAll(local, " ", "")
	return fmt.Sprintf("%s.%s@%s", local, uuid.NewString()[:8], strings.ToLower(g.faker.DomainName()))
}

func (g *Generator) phone() string {
	return fmt.Sprintf("%02d%09d", g.faker.Number(11, 99), g.faker.Number(900000000, 999999999))
}

// CPF returns an 11 digit CPF with valid check digits.
func (g *Generator) CPF() string {
	digits := make([]int, 11)
	for i := 0; i < 9; i++ {
		digits[i] = g.faker.Number(0, 9)
	}
	digits[9] = cpfCheckDigit(digits[:9])
	digits[10] = cpfCheckDigit(digits[:10])

	var b strings.Builder
	for _, d := range digits {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	check := 11 - sum%11
	if check >= 10 {
		return 0
	}
	return check
}

// ValidCPF reports whether cpf is 11 digits with correct check digits.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	digits := make([]int, 11)
	for i, r := range cpf {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
	}
	return cpfCheckDigit(digits[:9]) == digits[9] && cpfCheckDigit(digits[:10]) == digits[10]
}
