package gateway

import (
	"context"
	"fmt"

	"saas-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is a dev-mode stand-in that accepts every order and reports it
// settled on the first status poll.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateOrder(_ context.Context, req adapter.OrderRequest) (string, error) {
	return fmt.Sprintf("noop-session-%s", req.OrderID), nil
}

func (g *NoopGateway) GetOrderStatus(_ context.Context, orderID string) (adapter.OrderStatus, error) {
	return adapter.OrderStatus{Status: "SUCCESS", TxnID: "noop-txn-" + orderID}, nil
}
