package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/shopspring/decimal"
)

// Topics produced and consumed by the order service.
const (
	TopicOrderEvents                 = "order-events"
	TopicOrderStatusUpdates          = "order-status-updates"
	TopicPaymentVerification         = "payment-verification"
	TopicPaymentVerificationResponse = "payment-verification-response"
	TopicPaymentStatusUpdates        = "payment-status-updates"
	TopicUserStatusUpdates           = "user-status-updates"
)

// Message headers set on every published event.
const (
	HeaderEventType   = "event_type"
	HeaderEventID     = "event_id"
	HeaderContentType = "content_type"

	ContentTypeJSON = "application/json"
)

// Metadata keys.
const (
	MetaOrderNumber    = "orderNumber"
	MetaPaymentMethod  = "paymentMethod"
	MetaPaymentStatus  = "paymentStatus"
	MetaPreviousStatus = "previousStatus"
	MetaTrackingNumber = "trackingNumber"
	MetaTransactionID  = "transactionId"
	MetaReason         = "reason"
	MetaError          = "error"
	MetaAttempt        = "attempt"
)

// OrderEventType tags an order event.
type OrderEventType string

const (
	OrderCreated                 OrderEventType = "ORDER_CREATED"
	OrderConfirmed               OrderEventType = "ORDER_CONFIRMED"
	OrderPaid                    OrderEventType = "ORDER_PAID"
	OrderShipped                 OrderEventType = "ORDER_SHIPPED"
	OrderDelivered               OrderEventType = "ORDER_DELIVERED"
	OrderCancelled               OrderEventType = "ORDER_CANCELLED"
	OrderStatusUpdated           OrderEventType = "ORDER_STATUS_UPDATED"
	PaymentVerificationRequested OrderEventType = "PAYMENT_VERIFICATION_REQUESTED"
	OrderTrackingUpdated         OrderEventType = "ORDER_TRACKING_UPDATED"
)

var orderEventTypes = map[OrderEventType]struct{}{
	OrderCreated: {}, OrderConfirmed: {}, OrderPaid: {}, OrderShipped: {}, OrderDelivered: {},
	OrderCancelled: {}, OrderStatusUpdated: {}, PaymentVerificationRequested: {}, OrderTrackingUpdated: {},
}

func (t *OrderEventType) UnmarshalText(b []byte) error {
	v := OrderEventType(b)
	if _, ok := orderEventTypes[v]; !ok {
		return fmt.Errorf("unknown order event type %q", string(b))
	}
	*t = v

	return nil
}

// Topic returns the topic an order event type is routed to.
func (t OrderEventType) Topic() string {
	switch t {
	case OrderStatusUpdated, OrderTrackingUpdated:
		return TopicOrderStatusUpdates
	case PaymentVerificationRequested:
		return TopicPaymentVerification
	default:
		return TopicOrderEvents
	}
}

// PaymentEventType tags a payment event.
type PaymentEventType string

const (
	PaymentInitiated                    PaymentEventType = "PAYMENT_INITIATED"
	PaymentProcessing                   PaymentEventType = "PAYMENT_PROCESSING"
	PaymentSuccessful                   PaymentEventType = "PAYMENT_SUCCESSFUL"
	PaymentFailed                       PaymentEventType = "PAYMENT_FAILED"
	PaymentRefunded                     PaymentEventType = "PAYMENT_REFUNDED"
	PaymentVerificationRequestedPayment PaymentEventType = "PAYMENT_VERIFICATION_REQUESTED"
	PaymentVerificationCompleted        PaymentEventType = "PAYMENT_VERIFICATION_COMPLETED"
)

var paymentEventTypes = map[PaymentEventType]struct{}{
	PaymentInitiated: {}, PaymentProcessing: {}, PaymentSuccessful: {}, PaymentFailed: {},
	PaymentRefunded: {}, PaymentVerificationRequestedPayment: {}, PaymentVerificationCompleted: {},
}

func (t *PaymentEventType) UnmarshalText(b []byte) error {
	v := PaymentEventType(b)
	if _, ok := paymentEventTypes[v]; !ok {
		return fmt.Errorf("unknown payment event type %q", string(b))
	}
	*t = v

	return nil
}

// PaymentEventStatus is the status carried by a payment event.
type PaymentEventStatus string

const (
	PaymentStatusInitiated         PaymentEventStatus = "INITIATED"
	PaymentStatusProcessing        PaymentEventStatus = "PROCESSING"
	PaymentStatusSuccessful        PaymentEventStatus = "SUCCESSFUL"
	PaymentStatusFailed            PaymentEventStatus = "FAILED"
	PaymentStatusRefunded          PaymentEventStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentEventStatus = "PARTIALLY_REFUNDED"
)

var paymentEventStatuses = map[PaymentEventStatus]struct{}{
	PaymentStatusInitiated: {}, PaymentStatusProcessing: {}, PaymentStatusSuccessful: {},
	PaymentStatusFailed: {}, PaymentStatusRefunded: {}, PaymentStatusPartiallyRefunded: {},
}

func (s *PaymentEventStatus) UnmarshalText(b []byte) error {
	v := PaymentEventStatus(b)
	if _, ok := paymentEventStatuses[v]; !ok {
		return fmt.Errorf("unknown payment status %q", string(b))
	}
	*s = v

	return nil
}

// Amount is a two-place currency amount encoded as a JSON number.
type Amount decimal.Decimal

func NewAmount(d decimal.Decimal) Amount {
	return Amount(d.Round(2))
}

func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

func (a Amount) String() string {
	return decimal.Decimal(a).StringFixed(2)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = Amount(d)

	return nil
}

// OrderEvent is a fact emitted by the order service.
type OrderEvent struct {
	EventID   string            `json:"eventId"`
	EventType OrderEventType    `json:"eventType"`
	OrderID   string            `json:"orderId"`
	UserID    string            `json:"userId"`
	Amount    Amount            `json:"amount"`
	Status    order.Status      `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewOrderEvent builds an event of type t describing o.
func NewOrderEvent(t OrderEventType, o *order.Order, now time.Time, metadata map[string]string) OrderEvent {
	meta := map[string]string{
		MetaOrderNumber:   o.OrderNumber,
		MetaPaymentStatus: string(o.PaymentStatus),
	}
	for k, v := range metadata {
		meta[k] = v
	}

	return OrderEvent{
		EventID:   uuid.NewString(),
		EventType: t,
		OrderID:   o.ID.String(),
		UserID:    o.UserID,
		Amount:    NewAmount(o.Total),
		Status:    o.Status,
		Metadata:  meta,
		Timestamp: now.UTC(),
	}
}

// Topic returns the topic this event is published to.
func (e OrderEvent) Topic() string {
	return e.EventType.Topic()
}

// PartitionKey returns the order id, falling back to the user id.
func (e OrderEvent) PartitionKey() string {
	return partitionKey(e.OrderID, e.UserID)
}

// Validate checks the fields a consumer relies on.
func (e OrderEvent) Validate() error {
	if e.EventID == "" {
		return errs.E(errs.KindValidation, "event.OrderEvent", "eventId is required")
	}
	if _, ok := orderEventTypes[e.EventType]; !ok {
		return errs.Errorf(errs.KindValidation, "event.OrderEvent", "unknown event type %q", e.EventType)
	}
	if e.OrderID == "" && e.UserID == "" {
		return errs.E(errs.KindValidation, "event.OrderEvent", "orderId or userId is required")
	}
	if e.Status != "" && !e.Status.Valid() {
		return errs.Errorf(errs.KindValidation, "event.OrderEvent", "unknown order status %q", e.Status)
	}

	return nil
}

// PaymentEvent is a fact emitted by the payment side.
type PaymentEvent struct {
	EventID   string             `json:"eventId"`
	EventType PaymentEventType   `json:"eventType"`
	OrderID   string             `json:"orderId"`
	UserID    string             `json:"userId"`
	Amount    Amount             `json:"amount"`
	Status    PaymentEventStatus `json:"status"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Topic returns the topic this event is published to.
func (e PaymentEvent) Topic() string {
	if e.EventType == PaymentVerificationCompleted {
		return TopicPaymentVerificationResponse
	}

	return TopicPaymentStatusUpdates
}

// PartitionKey returns the order id, falling back to the user id.
func (e PaymentEvent) PartitionKey() string {
	return partitionKey(e.OrderID, e.UserID)
}

// Validate checks the fields the order service relies on.
func (e PaymentEvent) Validate() error {
	if e.EventID == "" {
		return errs.E(errs.KindValidation, "event.PaymentEvent", "eventId is required")
	}
	if _, ok := paymentEventTypes[e.EventType]; !ok {
		return errs.Errorf(errs.KindValidation, "event.PaymentEvent", "unknown event type %q", e.EventType)
	}
	if _, ok := paymentEventStatuses[e.Status]; !ok {
		return errs.Errorf(errs.KindValidation, "event.PaymentEvent", "unknown status %q", e.Status)
	}
	if _, err := uuid.Parse(e.OrderID); err != nil {
		return errs.Errorf(errs.KindValidation, "event.PaymentEvent", "invalid orderId %q", e.OrderID)
	}

	return nil
}

// Encode serializes an event.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "event.Encode", err)
	}

	return b, nil
}

// DecodeOrderEvent parses and validates an order event.
func DecodeOrderEvent(b []byte) (OrderEvent, error) {
	var e OrderEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return OrderEvent{}, errs.Wrap(errs.KindSerialization, "event.DecodeOrderEvent", err)
	}

	return e, e.Validate()
}

// DecodePaymentEvent parses and validates a payment event.
func DecodePaymentEvent(b []byte) (PaymentEvent, error) {
	var e PaymentEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return PaymentEvent{}, errs.Wrap(errs.KindSerialization, "event.DecodePaymentEvent", err)
	}

	return e, e.Validate()
}

func partitionKey(orderID, userID string) string {
	if orderID != "" {
		return orderID
	}

	return userID
}
