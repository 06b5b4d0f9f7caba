// Package seed builds the documents inserted at bootstrap: the single
// representative customer, and optional fake bulk data.
package seed

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"techmarket-bootstrap/internal/model"
)

const CustomerEmail = "maria.o@example.com"

// Customer returns the representative customer used to validate the schema
// shape. registeredAt becomes data_cadastro.
func Customer(registeredAt time.Time) *model.Customer {
	return &model.Customer{
		Name:         "Maria Oliveira",
		Email:        CustomerEmail,
		Phone:        "21988776655",
		RegisteredAt: registeredAt.UTC(),
		CPF:          "98765432109",
		Orders: []model.Order{
			{
				ID:        primitive.NewObjectID(),
				OrderedAt: time.Date(2024, time.October, 25, 14, 30, 0, 0, time.UTC),
				Status:    model.OrderStatusDelivered,
				Total:     model.MustMoney("4500.00"),
				Items: []model.OrderItem{
					{
						ProductID:   primitive.NewObjectID(),
						ProductName: "Notebook Pro",
						Quantity:    1,
						UnitPrice:   model.MustMoney("4500.00"),
					},
				},
				Payment: model.PaymentSnapshot{
					PaymentID: primitive.NewObjectID(),
					Type:      model.PaymentTypeCard,
					Status:    model.PaymentStatusApproved,
				},
			},
		},
	}
}
