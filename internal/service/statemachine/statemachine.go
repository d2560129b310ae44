// Package statemachine holds the order and payment transition tables.
package statemachine

import (
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
)

// Trigger is something that may move an order.
type Trigger string

const (
	PaymentSucceeded Trigger = "payment_succeeded"
	PaymentFailed    Trigger = "payment_failed"
	StartProcessing  Trigger = "start_processing"
	Ship             Trigger = "ship"
	UpdateTracking   Trigger = "update_tracking"
	Deliver          Trigger = "deliver"
	Cancel           Trigger = "cancel"
	Refund           Trigger = "refund"
	PartialRefund    Trigger = "partial_refund"
)

// Triggers lists every trigger.
var Triggers = []Trigger{
	PaymentSucceeded, PaymentFailed, StartProcessing, Ship, UpdateTracking,
	Deliver, Cancel, Refund, PartialRefund,
}

type orderKey struct {
	from    order.Status
	trigger Trigger
}

type orderRule struct {
	to           order.Status
	events       []event.OrderEventType
	releaseStock bool
	alwaysEmit   bool
}

type paymentKey struct {
	from    order.PaymentStatus
	trigger Trigger
}

var orderTable = map[orderKey]orderRule{
	{order.StatusPending, PaymentSucceeded}: {
		to: order.StatusConfirmed, events: []event.OrderEventType{event.OrderConfirmed, event.OrderPaid},
	},
	{order.StatusConfirmed, PaymentSucceeded}:  {to: order.StatusConfirmed},
	{order.StatusProcessing, PaymentSucceeded}: {to: order.StatusProcessing},
	{order.StatusShipped, PaymentSucceeded}:    {to: order.StatusShipped},
	{order.StatusDelivered, PaymentSucceeded}:  {to: order.StatusDelivered},
	// Money arrived after cancellation; record it so it can be refunded.
	{order.StatusCancelled, PaymentSucceeded}: {
		to: order.StatusCancelled, events: []event.OrderEventType{event.OrderPaid},
	},

	{order.StatusPending, PaymentFailed}:   {to: order.StatusPending},
	{order.StatusCancelled, PaymentFailed}: {to: order.StatusCancelled},

	{order.StatusConfirmed, StartProcessing}: {to: order.StatusProcessing},
	{order.StatusProcessing, Ship}: {
		to: order.StatusShipped, events: []event.OrderEventType{event.OrderShipped},
	},
	{order.StatusShipped, UpdateTracking}: {
		to: order.StatusShipped, events: []event.OrderEventType{event.OrderTrackingUpdated}, alwaysEmit: true,
	},
	{order.StatusShipped, Deliver}: {
		to: order.StatusDelivered, events: []event.OrderEventType{event.OrderDelivered},
	},

	{order.StatusPending, Cancel}: {
		to: order.StatusCancelled, events: []event.OrderEventType{event.OrderCancelled}, releaseStock: true,
	},
	{order.StatusConfirmed, Cancel}: {
		to: order.StatusCancelled, events: []event.OrderEventType{event.OrderCancelled}, releaseStock: true,
	},
	{order.StatusProcessing, Cancel}: {
		to: order.StatusCancelled, events: []event.OrderEventType{event.OrderCancelled}, releaseStock: true,
	},
	{order.StatusCancelled, Cancel}: {to: order.StatusCancelled},

	{order.StatusDelivered, Refund}: {to: order.StatusRefunded},
	{order.StatusCancelled, Refund}: {to: order.StatusRefunded},
	{order.StatusRefunded, Refund}:  {to: order.StatusRefunded},

	{order.StatusConfirmed, PartialRefund}:  {to: order.StatusConfirmed},
	{order.StatusProcessing, PartialRefund}: {to: order.StatusProcessing},
	{order.StatusShipped, PartialRefund}:    {to: order.StatusShipped},
	{order.StatusDelivered, PartialRefund}:  {to: order.StatusDelivered},
	{order.StatusCancelled, PartialRefund}:  {to: order.StatusCancelled},
}

var paymentTable = map[paymentKey]order.PaymentStatus{
	{order.PaymentPending, PaymentSucceeded}: order.PaymentPaid,
	{order.PaymentPaid, PaymentSucceeded}:    order.PaymentPaid,
	{order.PaymentFailed, PaymentSucceeded}:  order.PaymentPaid,

	{order.PaymentPending, PaymentFailed}: order.PaymentFailed,
	{order.PaymentFailed, PaymentFailed}:  order.PaymentFailed,

	{order.PaymentPaid, Refund}:              order.PaymentRefunded,
	{order.PaymentPartiallyRefunded, Refund}: order.PaymentRefunded,
	{order.PaymentRefunded, Refund}:          order.PaymentRefunded,

	{order.PaymentPaid, PartialRefund}:              order.PaymentPartiallyRefunded,
	{order.PaymentPartiallyRefunded, PartialRefund}: order.PaymentPartiallyRefunded,
}

// paymentAware triggers must also have a payment table entry.
var paymentAware = map[Trigger]bool{
	PaymentSucceeded: true,
	PaymentFailed:    true,
	Refund:           true,
	PartialRefund:    true,
}

// Outcome is the result of applying a trigger.
type Outcome struct {
	From         order.Status
	To           order.Status
	PaymentFrom  order.PaymentStatus
	PaymentTo    order.PaymentStatus
	Events       []event.OrderEventType
	Changed      bool
	ReleaseStock bool
}

// Apply looks up the transition for the current order and payment status.
// A missing entry is an invalid transition; the order must not be touched.
func Apply(status order.Status, payment order.PaymentStatus, trigger Trigger) (Outcome, error) {
	const op = "statemachine.Apply"

	rule, ok := orderTable[orderKey{status, trigger}]
	if !ok {
		return Outcome{}, errs.Errorf(errs.KindInvalidTransition, op, "cannot %s order in status %s", trigger, status)
	}

	paymentTo := payment
	if paymentAware[trigger] {
		paymentTo, ok = paymentTable[paymentKey{payment, trigger}]
		if !ok {
			return Outcome{}, errs.Errorf(errs.KindInvalidTransition, op,
				"cannot %s order with payment status %s", trigger, payment)
		}
	}

	out := Outcome{
		From:        status,
		To:          rule.to,
		PaymentFrom: payment,
		PaymentTo:   paymentTo,
		Changed:     rule.to != status || paymentTo != payment,
	}
	if !out.Changed && !rule.alwaysEmit {
		return out, nil
	}

	out.ReleaseStock = rule.releaseStock
	out.Events = append(out.Events, rule.events...)
	if out.Changed {
		out.Events = append(out.Events, event.OrderStatusUpdated)
	}

	return out, nil
}

// Allowed reports whether trigger has an order table entry for status.
func Allowed(status order.Status, trigger Trigger) bool {
	_, ok := orderTable[orderKey{status, trigger}]

	return ok
}
