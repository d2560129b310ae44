package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/currency"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// Statuses lists every order status.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}

	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentPaid              PaymentStatus = "PAID"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{
	PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartiallyRefunded,
}

func (s PaymentStatus) Valid() bool {
	for _, v := range PaymentStatuses {
		if v == s {
			return true
		}
	}

	return false
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard      PaymentMethod = "DEBIT_CARD"
	PaymentMethodPayPal         PaymentMethod = "PAYPAL"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// ErrInvalidPaymentMethod is returned by ParsePaymentMethod.
var ErrInvalidPaymentMethod = errors.New("invalid payment method")

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal,
		PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return m, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// DeliveryInfo is the shipping destination captured at checkout.
type DeliveryInfo struct {
	RecipientName string `json:"recipientName"`
	Phone         string `json:"phone"`
	AddressLine1  string `json:"addressLine1"`
	AddressLine2  string `json:"addressLine2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
}

// Order is the durable record created from a cart at checkout.
type Order struct {
	ID                   uuid.UUID             `json:"id"`
	OrderNumber          string                `json:"orderNumber"`
	UserID               string                `json:"userId"`
	Items                []orderitem.OrderItem `json:"items"`
	Subtotal             decimal.Decimal       `json:"subtotal"`
	TaxAmount            decimal.Decimal       `json:"taxAmount"`
	ShippingAmount       decimal.Decimal       `json:"shippingAmount"`
	Total                decimal.Decimal       `json:"total"`
	Currency             currency.Currency     `json:"currency"`
	Status               Status                `json:"status"`
	PaymentStatus        PaymentStatus         `json:"paymentStatus"`
	PaymentMethod        PaymentMethod         `json:"paymentMethod"`
	Delivery             DeliveryInfo          `json:"delivery"`
	TrackingNumber       string                `json:"trackingNumber,omitempty"`
	PaymentTransactionID string                `json:"paymentTransactionId,omitempty"`
	VerificationAttempts int                   `json:"verificationAttempts"`
	CreatedAt            time.Time             `json:"createdAt"`
	UpdatedAt            time.Time             `json:"updatedAt"`
}

// NewOrderNumber returns a human readable unique order number.
func NewOrderNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(id[:10]))
}

// ItemsSubtotal sums the line subtotals.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}

	return sum
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]orderitem.OrderItem(nil), o.Items...)

	return &cp
}
