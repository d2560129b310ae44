// Package operateorder serves the operator transitions of fulfillment.
package operateorder

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/respond"
)

type service interface {
	StartProcessing(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	ShipOrder(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error)
	DeliverOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

type trackingRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required,max=100"`
}

func StartProcessing(w http.ResponseWriter, r *http.Request, service service) {
	run(w, r, false, func(ctx context.Context, id uuid.UUID, _ string) (*order.Order, error) {
		return service.StartProcessing(ctx, id)
	})
}

func Ship(w http.ResponseWriter, r *http.Request, service service) {
	run(w, r, true, service.ShipOrder)
}

func UpdateTracking(w http.ResponseWriter, r *http.Request, service service) {
	run(w, r, true, service.UpdateTracking)
}

func Deliver(w http.ResponseWriter, r *http.Request, service service) {
	run(w, r, false, func(ctx context.Context, id uuid.UUID, _ string) (*order.Order, error) {
		return service.DeliverOrder(ctx, id)
	})
}

func Refund(w http.ResponseWriter, r *http.Request, service service) {
	run(w, r, false, func(ctx context.Context, id uuid.UUID, _ string) (*order.Order, error) {
		return service.RefundOrder(ctx, id)
	})
}

func run(
	w http.ResponseWriter,
	r *http.Request,
	withTracking bool,
	fn func(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error),
) {
	orderID, err := respond.PathUUID(r, "orderID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := trackingRequest{}
	if withTracking {
		if err := respond.Decode(r, &req, false); err != nil {
			respond.Error(w, r, err)

			return
		}
	}

	o, err := fn(r.Context(), orderID, req.TrackingNumber)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
