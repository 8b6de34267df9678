package httpx

import (
	"context"

	"github.com/ariefcatur/beras-storefront/internal/address"
	"github.com/ariefcatur/beras-storefront/internal/auth"
	"github.com/ariefcatur/beras-storefront/internal/checkout"
	"github.com/ariefcatur/beras-storefront/internal/orders"
	"github.com/ariefcatur/beras-storefront/internal/payment"
	"github.com/ariefcatur/beras-storefront/internal/reconcile"
)

type UserStore interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.User, error)
	Authenticate(ctx context.Context, email, password string) (auth.User, error)
}

type Checkouter interface {
	Checkout(ctx context.Context, in checkout.Input) (checkout.Result, error)
}

type OrderStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]orders.Order, error)
	GetWithItems(ctx context.Context, orderID string) (orders.OrderWithItems, error)
	Lookup(ctx context.Context, orderID string) (orders.Order, error)
}

type ProductStore interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	SetStock(ctx context.Context, productID string, stock int) (orders.Product, error)
}

type AddressStore interface {
	List(ctx context.Context, userID string) ([]address.Address, error)
	Create(ctx context.Context, userID string, in address.Input) (address.Address, error)
	Update(ctx context.Context, userID, id string, in address.Input) (address.Address, error)
	SetDefault(ctx context.Context, userID, id string) (address.Address, error)
	Delete(ctx context.Context, userID, id string) error
}

type PaymentCreator interface {
	Create(ctx context.Context, in payment.CreateInput) (payment.CreateResult, error)
}

type Reconciler interface {
	Apply(ctx context.Context, provider string, n payment.Notification) (reconcile.Outcome, error)
	SetStatusByAdmin(ctx context.Context, orderID string, target orders.Status, traceID string) (reconcile.Outcome, error)
}
