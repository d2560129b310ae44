package ordersvc

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CheckoutRequest is what the customer submits to turn their cart into an order.
type CheckoutRequest struct {
	UserID        string
	Delivery      order.DeliveryInfo
	PaymentMethod order.PaymentMethod
}

// Checkout converts the user's active cart into a PENDING order.
//
// Stock reservation, the order insert and the cart conversion share one unit of work,
// so any failure among them leaves stock, cart and orders untouched.
// Events are published after commit; a publish failure parks them in the outbox and does not fail checkout.
func (s *OrderService) Checkout(ctx context.Context, req CheckoutRequest) (o *order.Order, err error) {
	const op = "ordersvc.Checkout"

	ctx, span := tracer.Start(ctx, "OrderService.Checkout", trace.WithAttributes(attribute.String("user.id", req.UserID)))
	defer span.End()

	started := s.now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.Checkout(outcome, s.now().Sub(started))
	}()

	method, err := order.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err)
	}

	err = s.inTx(ctx, func(tx iuow.Tx) error {
		c, err := tx.CartRepository().GetActive(ctx, req.UserID)
		if errors.Is(err, errs.ErrNotFound) || (err == nil && c.IsEmpty()) {
			return errs.E(errs.KindEmptyCart, op, "cart is empty")
		}
		if err != nil {
			return err
		}

		if err := reserve(ctx, tx, c.Items); err != nil {
			return err
		}

		now := s.now()
		o = s.buildOrder(c, req, method)
		o.CreatedAt = now
		o.UpdatedAt = now

		if err := tx.OrderRepository().Insert(ctx, o); err != nil {
			return err
		}

		return tx.CartRepository().MarkConverted(ctx, c.ID, now)
	})
	if err != nil {
		slog.Warn("Checkout failed", "user_id", req.UserID, "error", err)

		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", o.ID.String()))
	slog.Info("Order created",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"user_id", o.UserID,
		"total", o.Total.StringFixed(2),
	)

	now := s.now()
	meta := map[string]string{event.MetaPaymentMethod: string(o.PaymentMethod)}
	s.publish(ctx,
		event.NewOrderEvent(event.OrderCreated, o, now, meta),
		event.NewOrderEvent(event.PaymentVerificationRequested, o, now, meta),
	)

	return o, nil
}

// reserve takes stock for every line in product order so concurrent checkouts lock rows consistently.
func reserve(ctx context.Context, tx iuow.Tx, items []cart.Item) error {
	lines := make([]cart.Item, len(items))
	copy(lines, items)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	for _, it := range lines {
		if err := tx.Ledger().Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}

	return nil
}

func (s *OrderService) buildOrder(c *cart.Cart, req CheckoutRequest, method order.PaymentMethod) *order.Order {
	now := s.now()
	o := &order.Order{
		ID:            uuid.New(),
		OrderNumber:   order.NewOrderNumber(now),
		UserID:        req.UserID,
		Currency:      s.pricing.Currency,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: method,
		Delivery:      req.Delivery,
	}

	subtotal := decimal.Zero
	o.Items = make([]orderitem.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		o.Items = append(o.Items, orderitem.OrderItem{
			ID:           uuid.New(),
			OrderID:      o.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductImage: it.ProductImage,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			Subtotal:     line,
			CreatedAt:    now,
		})
		subtotal = subtotal.Add(line)
	}

	q := s.pricing.Quote(subtotal)
	o.Subtotal = q.Subtotal
	o.TaxAmount = q.Tax
	o.ShippingAmount = q.Shipping
	o.Total = q.Total

	return o
}
