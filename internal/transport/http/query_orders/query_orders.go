package queryorders

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/respond"
)

type service interface {
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error)
	ListOrders(ctx context.Context, userID string, page, pageSize int) ([]order.Order, error)
}

type listOrdersRequest struct {
	Page     int `schema:"page,omitempty"`
	PageSize int `schema:"pageSize,omitempty"`
}

type listOrdersResponse struct {
	Orders   []order.Order `json:"orders"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}()

func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	query := &listOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		respond.Error(w, r, errs.Wrap(errs.KindValidation, "queryorders.ListOrders", err))

		return
	}

	orders, err := service.ListOrders(r.Context(), userID, query.Page, query.PageSize)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, listOrdersResponse{Orders: orders, Page: query.Page, PageSize: query.PageSize})
}

func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
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

	o, err := service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, o)
}
