package checkout

import (
	"context"
	"net/http"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/services/ordersvc"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/respond"
)

// service is an interface for the service layer.
type service interface {
	Checkout(ctx context.Context, req ordersvc.CheckoutRequest) (*order.Order, error)
}

// deliveryRequest represents the shipping destination of a checkout request.
type deliveryRequest struct {
	RecipientName string `json:"recipientName" validate:"required,max=200"`
	Phone         string `json:"phone"         validate:"required,max=32"`
	AddressLine1  string `json:"addressLine1"  validate:"required,max=255"`
	AddressLine2  string `json:"addressLine2"  validate:"max=255"`
	City          string `json:"city"          validate:"required,max=100"`
	State         string `json:"state"         validate:"max=100"`
	PostalCode    string `json:"postalCode"    validate:"required,max=20"`
	Country       string `json:"country"       validate:"required,iso3166_1_alpha2"`
}

// checkoutRequest represents a checkout request.
type checkoutRequest struct {
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=CREDIT_CARD DEBIT_CARD PAYPAL BANK_TRANSFER CASH_ON_DELIVERY"`
	Delivery      deliveryRequest `json:"delivery"`
}

// toModel converts checkoutRequest to ordersvc.CheckoutRequest.
func (r *checkoutRequest) toModel(userID string) ordersvc.CheckoutRequest {
	return ordersvc.CheckoutRequest{
		UserID:        userID,
		PaymentMethod: order.PaymentMethod(r.PaymentMethod),
		Delivery: order.DeliveryInfo{
			RecipientName: r.Delivery.RecipientName,
			Phone:         r.Delivery.Phone,
			AddressLine1:  r.Delivery.AddressLine1,
			AddressLine2:  r.Delivery.AddressLine2,
			City:          r.Delivery.City,
			State:         r.Delivery.State,
			PostalCode:    r.Delivery.PostalCode,
			Country:       r.Delivery.Country,
		},
	}
}

// checkoutResponse is the order summary returned after checkout.
type checkoutResponse struct {
	OrderID       string              `json:"orderId"`
	OrderNumber   string              `json:"orderNumber"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"paymentStatus"`
	Subtotal      string              `json:"subtotal"`
	TaxAmount     string              `json:"taxAmount"`
	Shipping      string              `json:"shippingAmount"`
	Total         string              `json:"total"`
	Currency      string              `json:"currency"`
}

// Checkout handles the checkout request.
func Checkout(w http.ResponseWriter, r *http.Request, service service) {
	userID, err := respond.UserID(r)
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	req := checkoutRequest{}
	if err := respond.Decode(r, &req, false); err != nil {
		respond.Error(w, r, err)

		return
	}

	o, err := service.Checkout(r.Context(), req.toModel(userID))
	if err != nil {
		respond.Error(w, r, err)

		return
	}

	respond.JSON(w, http.StatusCreated, checkoutResponse{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Subtotal:      o.Subtotal.StringFixed(2),
		TaxAmount:     o.TaxAmount.StringFixed(2),
		Shipping:      o.ShippingAmount.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Currency:      o.Currency.String(),
	})
}
