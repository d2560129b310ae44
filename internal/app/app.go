package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus/kafka"
	membus "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus/memory"
	rabbitbus "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus/rabbitmq"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icatalog"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/memory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	redisrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/catalog/redis"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/rabbitmq"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/uow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/otel"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/responder"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/currency"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/services/cartsvc"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/services/ordersvc"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/consumer"
	httptransport "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/transport/http"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/inbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/outbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/reconcile"
	"github.com/shopspring/decimal"
)

// storage is what both the postgres and the in-memory backends provide.
type storage interface {
	iuow.Repositories
	Begin(ctx context.Context) (iuow.Tx, error)
	InboxRepository() iinboxrepo.IInboxRepository
	Catalog() icatalog.ICatalog
}

// App represents the application.
type App struct {
	store           storage
	publisher       bus.Publisher
	cartSvc         *cartsvc.CartService
	orderSvc        *ordersvc.OrderService
	transport       *httptransport.HTTPTransport
	consumer        *consumer.Consumer
	responder       *responder.Responder
	outboxWorker    *outbox.Worker
	inboxWorker     *inbox.Worker
	reconcileWorker *reconcile.Worker
	otel            *otel.OtelController
	closers         []func() error
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	a := &App{
		otel: otel.MustInitOtel(config.Tracing()),
	}
	m := metrics.New()

	a.mustInitStorage(config.Storage(), config.Seed())
	consumerSub, responderSub := a.mustInitBus(config.Bus())

	pricing := config.Pricing()
	cur, err := currency.ParseCurrency(pricing.Currency)
	if err != nil {
		panic(fmt.Sprintf("pricing.currency %q: %v", pricing.Currency, err))
	}
	reconcileCfg := config.Reconcile()
	outboxCfg := config.Outbox()
	inboxCfg := config.Inbox()

	a.cartSvc = cartsvc.MustNewCartService(
		cartsvc.WithUnitOfWork(a.store),
		cartsvc.WithCatalog(a.catalog(config.Cache())),
	)
	a.orderSvc = ordersvc.MustNewOrderService(
		ordersvc.WithUnitOfWork(a.store),
		ordersvc.WithPublisher(a.publisher),
		ordersvc.WithMetrics(m),
		ordersvc.WithPricing(ordersvc.Pricing{
			TaxRate:               pricing.TaxRate,
			FlatShipping:          pricing.FlatShipping,
			FreeShippingThreshold: pricing.FreeShippingThreshold,
			Currency:              cur,
		}),
		ordersvc.WithReconcilePolicy(ordersvc.ReconcilePolicy{
			PendingTimeout: reconcileCfg.PendingTimeout,
			MaxAttempts:    reconcileCfg.MaxAttempts,
			BatchSize:      reconcileCfg.BatchSize,
		}),
		ordersvc.WithOutboxMaxRetries(outboxCfg.MaxRetries),
	)

	a.consumer = consumer.NewConsumer(
		consumerSub, a.orderSvc, a.store.InboxRepository(), m, inboxCfg.MaxRetries, inboxCfg.RetryBase,
	)
	if responderCfg := config.Responder(); responderCfg.Enabled {
		a.responder = responder.New(responderSub, a.publisher, responder.NewMockGateway(responderCfg.MaxAmount))
	}

	a.outboxWorker = outbox.NewWorker(a.store.OutboxRepository(), a.publisher, m, outboxCfg)
	a.inboxWorker = inbox.NewWorker(a.store.InboxRepository(), a.consumer, m, inboxCfg)
	a.reconcileWorker = reconcile.NewWorker(a.orderSvc, reconcileCfg.Interval)

	a.transport = httptransport.NewHTTPTransport(a.cartSvc, a.orderSvc, m.Handler())
	a.transport.RegisterRoutes()

	return a
}

func (a *App) mustInitStorage(cfg config.StorageConfig, seed []config.SeedProduct) {
	switch cfg.Driver {
	case "postgres":
		client := postgres.MustNewClient(cfg.PostgresDSN,
			postgres.WithMaxConns(cfg.MaxConns),
			postgres.WithConnMaxIdle(cfg.ConnMaxIdle),
		)
		a.store = uow.NewStore(client)
		a.closers = append(a.closers, func() error {
			client.Close()

			return nil
		})
		if len(seed) > 0 {
			slog.Warn("Ignoring seed.products, postgres catalog and stock are loaded by migrations or operators")
		}
	case "memory":
		a.store = memory.NewStore()
		mustSeed(a.store, seed)
	default:
		panic(fmt.Sprintf("unknown storage driver %q", cfg.Driver))
	}

	slog.Info("Storage initialized", "driver", cfg.Driver)
}

// mustSeed loads the configured products and their stock into a fresh memory store.
func mustSeed(store storage, seed []config.SeedProduct) {
	ctx := context.Background()
	for _, sp := range seed {
		price, err := decimal.NewFromString(sp.UnitPrice)
		if err != nil {
			panic(fmt.Sprintf("seed product %d: invalid unit_price %q: %v", sp.ID, sp.UnitPrice, err))
		}
		p := product.Product{ID: sp.ID, Name: sp.Name, ImageURL: sp.ImageURL, UnitPrice: price}
		if err := store.Catalog().UpsertProduct(ctx, p); err != nil {
			panic(fmt.Sprintf("seed product %d: %v", sp.ID, err))
		}
		if err := store.Ledger().SetStock(ctx, sp.ID, sp.Stock, sp.MinThreshold); err != nil {
			panic(fmt.Sprintf("seed stock %d: %v", sp.ID, err))
		}
	}
	if len(seed) > 0 {
		slog.Info("Memory store seeded", "products", len(seed))
	}
}

// catalog wraps the storage catalog with the redis cache when it is enabled.
func (a *App) catalog(cfg config.CacheConfig) icatalog.ICatalog {
	if !cfg.Enabled {
		return a.store.Catalog()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, client.Close)
	slog.Info("Product cache enabled", "addr", cfg.Addr, "ttl", cfg.ProductTTL)

	return redisrepo.NewCachedCatalog(a.store.Catalog(), client, cfg.ProductTTL)
}

// mustInitBus sets the publisher and returns one subscriber for the consumer and one for the responder.
func (a *App) mustInitBus(cfg config.BusConfig) (bus.Subscriber, bus.Subscriber) {
	var consumerSub, responderSub bus.Subscriber

	switch cfg.Driver {
	case "kafka":
		a.publisher = kafka.NewPublisher(cfg.KafkaBrokers)
		consumerSub = kafka.NewSubscriber(cfg.KafkaBrokers, cfg.GroupID)
		responderSub = kafka.NewSubscriber(cfg.KafkaBrokers, cfg.GroupID+"-responder")
	case "rabbitmq":
		url := rabbitmq.URL(cfg.RabbitMQUser, cfg.RabbitMQPassword, cfg.RabbitMQHost, cfg.RabbitMQPort)
		pubClient := rabbitmq.MustNewClient(url)
		consumerClient := rabbitmq.MustNewClient(url)
		responderClient := rabbitmq.MustNewClient(url)
		a.publisher = rabbitbus.NewPublisher(pubClient, cfg.Partitions)
		consumerSub = rabbitbus.NewSubscriber(consumerClient, cfg.GroupID, cfg.Partitions)
		responderSub = rabbitbus.NewSubscriber(responderClient, cfg.GroupID+"-responder", cfg.Partitions)
		a.closers = append(a.closers, pubClient.Close, consumerClient.Close, responderClient.Close)
	case "memory":
		b := membus.New(cfg.Partitions)
		a.publisher = b
		consumerSub = b.Group()
		responderSub = b.Group()
	default:
		panic(fmt.Sprintf("unknown bus driver %q", cfg.Driver))
	}

	slog.Info("Event bus initialized", "driver", cfg.Driver, "partitions", cfg.Partitions)

	return consumerSub, responderSub
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	// Create a channel to receive OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	a.start(ctx, &wg)

	<-stop
	slog.Info("Shutdown signal received")

	a.shutdown(cancel, &wg)
}

func (a *App) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Consumer error", "error", err)
		}
	}()

	if a.responder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.responder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Payment responder error", "error", err)
			}
		}()
	}

	for _, start := range []func(context.Context){
		a.outboxWorker.Start,
		a.inboxWorker.Start,
		a.reconcileWorker.Start,
	} {
		start := start
		wg.Add(1)
		go func() {
			defer wg.Done()
			start(ctx)
		}()
	}
}

// shutdown stops everything in reverse start order.
func (a *App) shutdown(cancel context.CancelFunc, wg *sync.WaitGroup) {
	ctx, timeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeout()

	a.reconcileWorker.Stop()
	a.inboxWorker.Stop()
	a.outboxWorker.Stop()

	if a.responder != nil {
		if err := a.responder.Shutdown(); err != nil {
			slog.Error("Payment responder shutdown error", "error", err)
		}
	}
	if err := a.consumer.Shutdown(); err != nil {
		slog.Error("Consumer shutdown error", "error", err)
	}

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timed out waiting for background loops")
	}

	if err := a.publisher.Close(); err != nil {
		slog.Error("Publisher close error", "error", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("Connection close error", "error", err)
		}
	}

	if err := a.otel.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
