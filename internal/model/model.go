package model

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusProcessing      OrderStatus = "em_processamento"
	OrderStatusAwaitingPayment OrderStatus = "aguardando_pagamento"
	OrderStatusPaid            OrderStatus = "pago"
	OrderStatusPicking         OrderStatus = "em_separacao"
	OrderStatusInTransit       OrderStatus = "em_transporte"
	OrderStatusDelivered       OrderStatus = "entregue"
	OrderStatusCancelled       OrderStatus = "cancelado"
)

type PaymentType string

const (
	PaymentTypePix      PaymentType = "pix"
	PaymentTypeCard     PaymentType = "cartao"
	PaymentTypeBoleto   PaymentType = "boleto"
	PaymentTypeTransfer PaymentType = "transferencia"
)

type PaymentStatus string

const (
	PaymentStatusApproved   PaymentStatus = "aprovado"
	PaymentStatusPending    PaymentStatus = "pendente"
	PaymentStatusDeclined   PaymentStatus = "recusado"
	PaymentStatusProcessing PaymentStatus = "em_processamento"
	PaymentStatusRefunded   PaymentStatus = "estornado"
)

// Product is a document of the produtos collection.
type Product struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"nome"`
	Category string             `bson:"categoria"`
	Price    Money              `bson:"preco"`
	Stock    int                `bson:"estoque"`
}

// Payment is a document of the pagamentos collection.
type Payment struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	OrderID primitive.ObjectID `bson:"pedido_id,omitempty"`
	Type    PaymentType        `bson:"tipo"`
	Status  PaymentStatus      `bson:"status"`
	PaidAt  time.Time          `bson:"data_pagamento"`
}

// Customer is a document of the clientes collection. Orders are embedded.
type Customer struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"nome"`
	Email        string             `bson:"email"`
	Phone        string             `bson:"telefone"`
	RegisteredAt time.Time          `bson:"data_cadastro"`
	CPF          string             `bson:"cpf"`
	Orders       []Order            `bson:"pedidos"`
}

type Order struct {
	ID        primitive.ObjectID `bson:"pedido_id"`
	OrderedAt time.Time          `bson:"data_pedido"`
	Status    OrderStatus        `bson:"status"`
	Total     Money              `bson:"valor_total"`
	Items     []OrderItem        `bson:"itens"`
	Payment   PaymentSnapshot    `bson:"pagamento"`
}

type OrderItem struct {
	ProductID   primitive.ObjectID `bson:"produto_id"`
	ProductName string             `bson:"nome_produto"`
	Quantity    int                `bson:"quantidade"`
	UnitPrice   Money              `bson:"preco_unitario"`
}

type PaymentSnapshot struct {
	PaymentID primitive.ObjectID `bson:"pagamento_id"`
	Type      PaymentType        `bson:"tipo"`
	Status    PaymentStatus      `bson:"status"`
}

// Subtotal is quantity × unit price.
func (i OrderItem) Subtotal() Money {
	return NewMoney(i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))))
}

// ItemsTotal sums the item subtotals. The stored Total is not required to
// match it; callers decide what a mismatch means.
func (o Order) ItemsTotal() Money {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal().Decimal)
	}
	return NewMoney(sum)
}

// TotalMatchesItems reports whether Total equals ItemsTotal.
func (o Order) TotalMatchesItems() bool {
	return o.Total.Equal(o.ItemsTotal().Decimal)
}
