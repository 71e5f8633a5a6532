package adapter

import "context"

// OrderRequest is what the billing core hands the gateway at checkout.
type OrderRequest struct {
	OrderID       string
	Amount        int64 // minor units
	Currency      string
	CustomerEmail string
	Description   string
}

// OrderStatus is the gateway's view of an order, returned by polling.
type OrderStatus struct {
	Status string // provider vocabulary; normalized by the caller
	Amount int64
	TxnID  string
}

// PaymentGateway is the hex port for the external payment processor. The core
// depends on no provider field names beyond what the webhook normalizer and
// this contract expose.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers a checkout order with the processor and returns
	// the redirect/session handle the client completes payment with.
	CreateOrder(ctx context.Context, req OrderRequest) (sessionHandle string, err error)

	// GetOrderStatus queries the processor for the current order state.
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
}
