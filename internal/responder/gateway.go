package responder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/shopspring/decimal"
)

// Verification is the gateway's answer for one payment.
type Verification struct {
	Approved      bool
	TransactionID string
	Reason        string
}

// Gateway verifies a payment. data carries at least the order id under "orderId".
type Gateway interface {
	Verify(ctx context.Context, amount decimal.Decimal, method order.PaymentMethod, data map[string]string) (Verification, error)
}

// MockGateway is a deterministic gateway: it answers the same way for the same order every time.
type MockGateway struct {
	maxAmount decimal.Decimal

	mu      sync.Mutex
	answers map[string]Verification
}

func NewMockGateway(maxAmount decimal.Decimal) *MockGateway {
	return &MockGateway{
		maxAmount: maxAmount,
		answers:   map[string]Verification{},
	}
}

func (g *MockGateway) Verify(
	ctx context.Context,
	amount decimal.Decimal,
	method order.PaymentMethod,
	data map[string]string,
) (Verification, error) {
	const op = "responder.MockGateway.Verify"

	if err := ctx.Err(); err != nil {
		return Verification{}, errs.Wrap(errs.KindGateway, op, err)
	}
	orderID := data["orderId"]
	if orderID == "" {
		return Verification{}, errs.E(errs.KindGateway, op, "orderId is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if v, ok := g.answers[orderID]; ok {
		return v, nil
	}

	v := Verification{Approved: true}
	switch {
	case method == order.PaymentMethodCashOnDelivery:
		v.Reason = "collected_on_delivery"
	case !amount.IsPositive():
		v = Verification{Reason: "invalid_amount"}
	case g.maxAmount.IsPositive() && amount.GreaterThan(g.maxAmount):
		v = Verification{Reason: fmt.Sprintf("amount exceeds limit of %s", g.maxAmount.StringFixed(2))}
	}
	if v.Approved {
		id := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(orderID)).String(), "-", "")
		v.TransactionID = "TXN-" + strings.ToUpper(id[:16])
	}
	g.answers[orderID] = v

	return v, nil
}
