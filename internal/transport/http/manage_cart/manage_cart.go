package managecart

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/respond"
)

type service interface {
	GetActiveCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, qty int) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, itemID uuid.UUID, qty int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) (*cart.Cart, error)
}

type addItemRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity"  validate:"gt=0"`
}

// updateQuantityRequest sets a line's quantity; zero or less removes the line.
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func GetCart(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	c, err := service.GetActiveCart(r.Context(), userID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}

func AddItem(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := addItemRequest{}
	if err := respond.Decode(r, &req, false); err != nil {
		respond.Error(w, r, err)

		return
	}

	c, err := service.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}

func UpdateQuantity(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}
	itemID, err := respond.PathUUID(r, "itemID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := updateQuantityRequest{}
	if err := respond.Decode(r, &req, false); err != nil {
		respond.Error(w, r, err)

		return
	}

	c, err := service.UpdateQuantity(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}

func RemoveItem(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}
	itemID, err := respond.PathUUID(r, "itemID")
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	c, err := service.RemoveItem(r.Context(), userID, itemID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}

func Clear(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	c, err := service.Clear(r.Context(), userID)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}
