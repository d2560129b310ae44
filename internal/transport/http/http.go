package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/services/ordersvc"
	cancelorder "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/cancel_order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/checkout"
	managecart "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/manage_cart"
	operateorder "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/operate_order"
	queryorders "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/query_orders"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http/respond"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/pkg/http/middleware/trace"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/pkg/logger"
	"github.com/spf13/viper"
)

type cartService interface {
	GetActiveCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, qty int) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, userID string, itemID uuid.UUID, qty int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) (*cart.Cart, error)
}

type orderService interface {
	Checkout(ctx context.Context, req ordersvc.CheckoutRequest) (*order.Order, error)
	GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error)
	ListOrders(ctx context.Context, userID string, page, pageSize int) ([]order.Order, error)
	CancelOrder(ctx context.Context, userID string, orderID uuid.UUID, reason string) (*order.Order, error)
	StartProcessing(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	ShipOrder(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error)
	UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error)
	DeliverOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
}

type HTTPTransport struct {
	server         *http.Server
	router         *chi.Mux
	cartService    cartService
	orderService   orderService
	metricsHandler http.Handler
}

func NewHTTPTransport(cartService cartService, orderService orderService, metricsHandler http.Handler) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:         server,
		router:         router,
		cartService:    cartService,
		orderService:   orderService,
		metricsHandler: metricsHandler,
	}
}

// Handler exposes the router for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

func (h *HTTPTransport) Run() error {
	slog.Info("HTTP server started", "addr", h.server.Addr)
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metricsHandler != nil {
		h.router.Method(http.MethodGet, "/metrics", h.metricsHandler)
	}

	h.router.Route("/api", func(r chi.Router) {
		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/items", h.addCartItem)
		r.Patch("/cart/items/{itemID}", h.updateCartItem)
		r.Delete("/cart/items/{itemID}", h.removeCartItem)

		r.Post("/orders", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)

		r.Route("/admin/orders/{orderID}", func(r chi.Router) {
			r.Post("/process", h.startProcessing)
			r.Post("/ship", h.shipOrder)
			r.Post("/tracking", h.updateTracking)
			r.Post("/deliver", h.deliverOrder)
			r.Post("/refund", h.refundOrder)
		})
	})
}

func (h *HTTPTransport) getCart(w http.ResponseWriter, r *http.Request) {
	managecart.GetCart(w, r, h.cartService)
}

func (h *HTTPTransport) clearCart(w http.ResponseWriter, r *http.Request) {
	managecart.Clear(w, r, h.cartService)
}

func (h *HTTPTransport) addCartItem(w http.ResponseWriter, r *http.Request) {
	managecart.AddItem(w, r, h.cartService)
}

func (h *HTTPTransport) updateCartItem(w http.ResponseWriter, r *http.Request) {
	managecart.UpdateQuantity(w, r, h.cartService)
}

func (h *HTTPTransport) removeCartItem(w http.ResponseWriter, r *http.Request) {
	managecart.RemoveItem(w, r, h.cartService)
}

func (h *HTTPTransport) checkout(w http.ResponseWriter, r *http.Request) {
	checkout.Checkout(w, r, h.orderService)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	queryorders.ListOrders(w, r, h.orderService)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	queryorders.GetOrder(w, r, h.orderService)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.orderService)
}

func (h *HTTPTransport) startProcessing(w http.ResponseWriter, r *http.Request) {
	operateorder.StartProcessing(w, r, h.orderService)
}

func (h *HTTPTransport) shipOrder(w http.ResponseWriter, r *http.Request) {
	operateorder.Ship(w, r, h.orderService)
}

func (h *HTTPTransport) updateTracking(w http.ResponseWriter, r *http.Request) {
	operateorder.UpdateTracking(w, r, h.orderService)
}

func (h *HTTPTransport) deliverOrder(w http.ResponseWriter, r *http.Request) {
	operateorder.Deliver(w, r, h.orderService)
}

func (h *HTTPTransport) refundOrder(w http.ResponseWriter, r *http.Request) {
	operateorder.Refund(w, r, h.orderService)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
