// Package broker provides the paper brokerage service: accounts, an order
// book and fills driven by the trading engine.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"paperbroker/internal/models"
)

// Broker defines the interface for brokerage operations.
type Broker interface {
	// Accounts
	CreateAccount(ctx context.Context, id string, cash decimal.Decimal) (*models.Account, error)
	Account(ctx context.Context, id string) (*models.Account, error)
	RefreshMargin(ctx context.Context, id string) (decimal.Decimal, error)

	// Orders
	PlaceOrder(ctx context.Context, accountID string, order *models.Order) (*OrderResult, error)
	PlaceOCO(ctx context.Context, accountID string, orders ...*models.Order) (*OCOResult, error)
	CancelOrder(ctx context.Context, accountID, orderID string) error
	OpenOrders(accountID string) []*models.Order
	Evaluate(ctx context.Context, accountID string) ([]OrderResult, error)
}

// OrderResult represents the outcome of placing or evaluating an order.
type OrderResult struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Message string             `json:"message,omitempty"`
	Fills   int                `json:"fills"`
}

// OCOResult represents the outcome of placing or evaluating an OCO group.
type OCOResult struct {
	GroupID  string        `json:"group_id"`
	Resolved bool          `json:"resolved"`
	Orders   []OrderResult `json:"orders"`
}
