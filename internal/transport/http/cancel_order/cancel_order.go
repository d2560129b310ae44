package cancelorder

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/respond"
)

type service interface {
	CancelOrder(ctx context.Context, userID string, orderID uuid.UUID, reason string) (*order.Order, error)
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// CancelOrder handles a customer cancellation. The body is optional.
func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}
	orderID, err := respond.PathUUID(r, "orderID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := cancelOrderRequest{}
	if err := respond.Decode(r, &req, true); err != nil {
		respond.Error(w, r, err)

		return
	}

	o, err := service.CancelOrder(r.Context(), userID, orderID, req.Reason)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
