package cartsvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icatalog"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("cartsvc")

// CartService owns the user's active cart. Mutations check stock but never reserve it.
type CartService struct {
	uow     unitOfWork
	catalog icatalog.ICatalog
	now     func() time.Time
}

type unitOfWork interface {
	Begin(ctx context.Context) (iuow.Tx, error)
}

// option is a function that configures the CartService.
type option func(*CartService)

// MustNewCartService creates a new CartService.
func MustNewCartService(opts ...option) *CartService {
	s := &CartService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.uow == nil || s.catalog == nil {
		panic("cartsvc: unit of work and catalog are required")
	}

	return s
}

// WithUnitOfWork sets the transaction factory for the CartService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(u unitOfWork) option {
	return func(s *CartService) {
		s.uow = u
	}
}

// WithCatalog sets the product catalog used for line snapshots.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCatalog(c icatalog.ICatalog) option {
	return func(s *CartService) {
		s.catalog = c
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *CartService) {
		s.now = now
	}
}

// GetActiveCart returns the user's ACTIVE cart, creating an empty one if needed.
func (s *CartService) GetActiveCart(ctx context.Context, userID string) (*cart.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.GetActiveCart", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	var out *cart.Cart
	err := s.inTx(ctx, func(tx iuow.Tx) error {
		c, err := s.getOrCreate(ctx, tx, userID)
		out = c

		return err
	})

	return out, err
}

// AddItem adds qty of a product, merging with an existing line for the same product.
func (s *CartService) AddItem(ctx context.Context, userID string, productID int64, qty int) (*cart.Cart, error) {
	const op = "cartsvc.AddItem"

	ctx, span := tracer.Start(ctx, "CartService.AddItem", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	if qty <= 0 {
		return nil, errs.E(errs.KindValidation, op, "quantity must be positive")
	}

	// The catalog is read outside the unit of work.
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var out *cart.Cart
	err = s.inTx(ctx, func(tx iuow.Tx) error {
		c, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}

		now := s.now()
		idx := c.ProductIndex(productID)
		want := qty
		if idx >= 0 {
			want += c.Items[idx].Quantity
		}
		if err := checkStock(ctx, tx, productID, want); err != nil {
			return err
		}

		if idx >= 0 {
			c.Items[idx].Quantity = want
			c.Items[idx].UpdatedAt = now
		} else {
			c.Items = append(c.Items, newItem(c.ID, p, qty, now))
		}

		c.Recalculate(now)
		if err := tx.CartRepository().Save(ctx, c); err != nil {
			return err
		}
		out = c

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Item added to cart",
		"user_id", userID,
		"product_id", productID,
		"quantity", qty,
		"cart_total", out.TotalAmount.StringFixed(2),
	)

	return out, nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, itemID uuid.UUID, qty int) (*cart.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.UpdateQuantity", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("item.id", itemID.String()),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	return s.mutateItem(ctx, userID, itemID, func(tx iuow.Tx, c *cart.Cart, idx int, now time.Time) error {
		if qty <= 0 {
			c.RemoveAt(idx)

			return nil
		}
		if err := checkStock(ctx, tx, c.Items[idx].ProductID, qty); err != nil {
			return err
		}
		c.Items[idx].Quantity = qty
		c.Items[idx].UpdatedAt = now

		return nil
	})
}

// RemoveItem drops a line from the cart.
func (s *CartService) RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) (*cart.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.RemoveItem", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("item.id", itemID.String()),
	))
	defer span.End()

	return s.mutateItem(ctx, userID, itemID, func(_ iuow.Tx, c *cart.Cart, idx int, _ time.Time) error {
		c.RemoveAt(idx)

		return nil
	})
}

// Clear empties the user's active cart.
func (s *CartService) Clear(ctx context.Context, userID string) (*cart.Cart, error) {
	ctx, span := tracer.Start(ctx, "CartService.Clear", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	var out *cart.Cart
	err := s.inTx(ctx, func(tx iuow.Tx) error {
		c, err := s.getOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		c.Items = []cart.Item{}
		c.Recalculate(s.now())
		if err := tx.CartRepository().Save(ctx, c); err != nil {
			return err
		}
		out = c

		return nil
	})

	return out, err
}

func (s *CartService) mutateItem(
	ctx context.Context,
	userID string,
	itemID uuid.UUID,
	fn func(tx iuow.Tx, c *cart.Cart, idx int, now time.Time) error,
) (*cart.Cart, error) {
	const op = "cartsvc.mutateItem"

	var out *cart.Cart
	err := s.inTx(ctx, func(tx iuow.Tx) error {
		c, err := tx.CartRepository().GetActive(ctx, userID)
		if err != nil {
			return err
		}
		idx := c.ItemIndex(itemID)
		if idx < 0 {
			return errs.Errorf(errs.KindNotFound, op, "cart item %s not found", itemID)
		}

		now := s.now()
		if err := fn(tx, c, idx, now); err != nil {
			return err
		}
		c.Recalculate(now)
		if err := tx.CartRepository().Save(ctx, c); err != nil {
			return err
		}
		out = c

		return nil
	})

	return out, err
}

func (s *CartService) getOrCreate(ctx context.Context, tx iuow.Tx, userID string) (*cart.Cart, error) {
	c, err := tx.CartRepository().GetActive(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	c = cart.New(userID, s.now())
	created, err := tx.CartRepository().Create(ctx, c)
	if err != nil {
		return nil, err
	}
	if !created {
		// a concurrent request created the cart first
		return tx.CartRepository().GetActive(ctx, userID)
	}
	slog.Debug("Cart created", "user_id", userID, "cart_id", c.ID)

	return c, nil
}

func (s *CartService) inTx(ctx context.Context, fn func(tx iuow.Tx) error) error {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func checkStock(ctx context.Context, tx iuow.Tx, productID int64, want int) error {
	available, err := tx.Ledger().Available(ctx, productID)
	if err != nil {
		return err
	}
	if available < want {
		return errs.Errorf(errs.KindInsufficientStock, "cartsvc.checkStock",
			"only %d of product %d available, %d requested", available, productID, want)
	}

	return nil
}

func newItem(cartID uuid.UUID, p *product.Product, qty int, now time.Time) cart.Item {
	return cart.Item{
		ID:           uuid.New(),
		CartID:       cartID,
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductImage: p.ImageURL,
		UnitPrice:    p.UnitPrice,
		Quantity:     qty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
