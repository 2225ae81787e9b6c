package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/address"
	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/internal/shipping"
	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

type stubGateway struct {
	mu       sync.Mutex
	status   string
	err      error
	calls    []square.PaymentCreateParams
	payments map[string]*sq.Payment
}

func (g *stubGateway) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, params)
	if g.err != nil {
		return nil, g.err
	}
	id := "pay_" + params.IdempotencyKey
	status := g.status
	ref := params.ReferenceID
	return &sq.Payment{ID: &id, Status: &status, ReferenceID: &ref}, nil
}

func (g *stubGateway) EnsureCustomer(_ context.Context, params square.CustomerCreateParams) (*sq.Customer, error) {
	id := "cust_" + params.ReferenceID
	return &sq.Customer{ID: &id}, nil
}

func (g *stubGateway) GetPayment(_ context.Context, paymentID string) (*sq.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if payment, ok := g.payments[paymentID]; ok {
		return payment, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

type stubRates struct {
	rate shipping.Rate
}

func (s stubRates) ResolveRate(_ context.Context, rateID string, _ types.Address, _ int) (*shipping.Rate, error) {
	if rateID != s.rate.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate expired or unknown")
	}
	rate := s.rate
	return &rate, nil
}

type checkoutFixture struct {
	db         *gorm.DB
	svc        Service
	gateway    *stubGateway
	orders     *orders.Repository
	carts      *cart.Repository
	users      *users.Repository
	settler    *Settler
	reconciler *Reconciler
	mango      models.Product
	mint       models.Product
	retired    models.Product
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	f := &checkoutFixture{
		db:      conn,
		gateway: &stubGateway{status: "COMPLETED", payments: map[string]*sq.Payment{}},
		orders:  orders.NewRepository(conn),
		carts:   cart.NewRepository(conn),
		users:   users.NewRepository(conn),
	}
	f.mango = models.Product{Name: "Mango Ice", Slug: "mango-ice", PriceCents: 1999}
	f.mint = models.Product{Name: "Cool Mint", Slug: "cool-mint", PriceCents: 1500}
	f.retired = models.Product{Name: "Retired", Slug: "retired", PriceCents: 900, IsArchived: true}
	for _, p := range []*models.Product{&f.mango, &f.mint, &f.retired} {
		require.NoError(t, conn.Create(p).Error)
	}

	publisher := outbox.NewService(outbox.NewRepository(conn), nil)
	settler, err := NewSettler(client, f.orders, f.carts, publisher)
	require.NoError(t, err)
	f.settler = settler

	days := 3
	svc, err := NewService(ServiceParams{
		Tx:        client,
		Orders:    f.orders,
		Products:  products.NewRepository(conn),
		Carts:     f.carts,
		Users:     f.users,
		Addresses: address.NewRepository(conn),
		Rates:     stubRates{rate: shipping.Rate{ID: "rate_ground", AmountCents: 599, Currency: "USD", Provider: "USPS", ServiceLevel: "Ground Advantage", EstimatedDays: &days}},
		Payments:  f.gateway,
		Settler:   settler,
		Outbox:    publisher,
		Currency:  "usd",
	})
	require.NoError(t, err)
	f.svc = svc

	reconciler, err := NewReconciler(f.orders, f.gateway, settler, config.CheckoutConfig{
		PendingTimeout:  15 * time.Minute,
		MaxReconcileAge: 72 * time.Hour,
	}, nil)
	require.NoError(t, err)
	f.reconciler = reconciler
	return f
}

func (f *checkoutFixture) request(items ...cart.ItemInput) Request {
	return Request{
		Email: "Buyer@Example.com",
		Name:  "Jane Buyer",
		Phone: "555-0100",
		Items: items,
		ShippingAddress: types.Address{
			Line1:      "1 Main St",
			City:       "Austin",
			State:      "tx",
			PostalCode: "78701",
			Country:    "us",
		},
		ShippingRateID: "rate_ground",
		PaymentToken:   "cnon:card-ok",
	}
}

func (f *checkoutFixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func (f *checkoutFixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	return count
}

func errCode(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func TestCheckoutGuestCartIsChargedAndCleared(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	_, err := f.carts.Create(ctx, "buyer@example.com", models.CartItems{
		{ProductID: f.mango.ID, Quantity: 2},
		{ProductID: f.mint.ID, Quantity: 1},
	})
	require.NoError(t, err)

	result, err := f.svc.Checkout(ctx, Caller{}, "key-1", f.request())
	require.NoError(t, err)
	require.True(t, result.Captured)

	order := result.Order
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.True(t, order.IsPaid)
	assert.Equal(t, "buyer@example.com", order.Email)
	assert.Equal(t, int64(2*1999+1500), order.SubtotalCents)
	assert.Equal(t, int64(599), order.ShippingCents)
	assert.Equal(t, order.SubtotalCents+599, order.TotalCents)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, 1, order.PaymentAttempts)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Mango Ice", order.Items[0].Product.Name)
	require.NotNil(t, order.Shipment)
	assert.Equal(t, enums.ShipmentStatusAwaitingLabel, order.Shipment.Status)

	guest, err := f.users.FindByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, guest.IsGuest)
	require.NotNil(t, guest.SquareCustomerID)

	stored, err := f.carts.FindByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.Empty(t, stored.Items)

	require.Len(t, f.gateway.calls, 1)
	call := f.gateway.calls[0]
	assert.Equal(t, order.TotalCents, call.AmountCents)
	assert.Equal(t, order.ID.String(), call.ReferenceID)
	assert.Equal(t, square.PaymentIdempotencyKey(order.ID.String(), "cnon:card-ok"), call.IdempotencyKey)

	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderCreated))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaid))
}

func TestCheckoutUnknownProductCreatesNoOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Checkout(context.Background(), Caller{}, "key-404", f.request(cart.ItemInput{ProductID: uuid.New(), Quantity: 1}))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, errCode(err))
	assert.Zero(t, f.countOrders(t))
	assert.Empty(t, f.gateway.calls)
}

func TestCheckoutRejectsArchivedProduct(t *testing.T) {
	f := newCheckoutFixture(t)
	_, err := f.svc.Checkout(context.Background(), Caller{}, "key-archived", f.request(cart.ItemInput{ProductID: f.retired.ID, Quantity: 1}))
	assert.Equal(t, pkgerrors.CodeConflict, errCode(err))
	assert.Zero(t, f.countOrders(t))
}

func TestCheckoutValidation(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, Caller{}, " ", f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 1}))
	assert.Equal(t, pkgerrors.CodeValidation, errCode(err))

	req := f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 1})
	req.ShippingAddress.PostalCode = ""
	req.PaymentToken = ""
	_, err = f.svc.Checkout(ctx, Caller{}, "key-invalid", req)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"shipping_address.postal_code", "payment_token"}, details["missing"])

	_, err = f.svc.Checkout(ctx, Caller{}, "key-empty-cart", f.request())
	assert.Equal(t, pkgerrors.CodeValidation, errCode(err))

	req = f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 1})
	req.ShippingRateID = "rate_gone"
	_, err = f.svc.Checkout(ctx, Caller{}, "key-rate", req)
	assert.Equal(t, pkgerrors.CodeValidation, errCode(err))
	assert.Zero(t, f.countOrders(t))
}

func TestCheckoutAnonymousCannotUseMemberCart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	hash := "hash"
	_, err := f.users.Create(ctx, users.CreateUserDTO{Email: "buyer@example.com", PasswordHash: &hash, Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	_, err = f.carts.Create(ctx, "buyer@example.com", models.CartItems{{ProductID: f.mint.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, Caller{}, "key-member", f.request())
	assert.Equal(t, pkgerrors.CodeUnauthorized, errCode(err))
}

func TestCheckoutAuthenticatedUsesTokenEmail(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	hash := "hash"
	member, err := f.users.Create(ctx, users.CreateUserDTO{Email: "member@example.com", PasswordHash: &hash, Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	req := f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 2})
	req.SaveAddress = true
	result, err := f.svc.Checkout(ctx, Caller{Authenticated: true, UserID: member.ID, Email: member.Email}, "key-member-ok", req)
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", result.Order.Email)

	stored, err := f.orders.FindByID(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, stored.UserID)

	saved, err := address.NewRepository(f.db).ListByEmail(ctx, "member@example.com")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "78701", saved[0].PostalCode)
}

func TestCheckoutReplayOfPaidOrderDoesNotCharge(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	req := f.request(cart.ItemInput{ProductID: f.mango.ID, Quantity: 1})

	first, err := f.svc.Checkout(ctx, Caller{}, "key-replay", req)
	require.NoError(t, err)
	require.True(t, first.Captured)

	second, err := f.svc.Checkout(ctx, Caller{}, "key-replay", req)
	require.NoError(t, err)
	assert.False(t, second.Captured)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, f.gateway.calls, 1)
	assert.Equal(t, int64(1), f.countOrders(t))

	other := req
	other.Email = "someone-else@example.com"
	_, err = f.svc.Checkout(ctx, Caller{}, "key-replay", other)
	assert.Equal(t, pkgerrors.CodeIdempotency, errCode(err))
}

func TestCheckoutDeclineThenRetrySucceeds(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	req := f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 1})

	f.gateway.err = pkgerrors.New(pkgerrors.CodePaymentFailed, "CARD_DECLINED")
	_, err := f.svc.Checkout(ctx, Caller{}, "key-decline", req)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePaymentFailed, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "order_id")

	failed, err := f.orders.FindByIdempotencyKey(ctx, "key-decline")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFailed, failed.Status)
	require.NotNil(t, failed.LastPaymentError)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventOrderPaymentFailed))

	f.gateway.err = nil
	req.PaymentToken = "cnon:other-card"
	result, err := f.svc.Checkout(ctx, Caller{}, "key-decline", req)
	require.NoError(t, err)
	assert.True(t, result.Captured)
	assert.Equal(t, failed.ID, result.Order.ID)
	assert.Equal(t, enums.OrderStatusPaid, result.Order.Status)
	assert.Equal(t, 2, result.Order.PaymentAttempts)
	assert.Nil(t, result.Order.LastPaymentError)

	require.Len(t, f.gateway.calls, 2)
	assert.NotEqual(t, f.gateway.calls[0].IdempotencyKey, f.gateway.calls[1].IdempotencyKey)
}

func TestCheckoutAmbiguousGatewayErrorLeavesOrderPending(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	req := f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 1})

	f.gateway.err = pkgerrors.New(pkgerrors.CodeDependency, "square unavailable")
	_, err := f.svc.Checkout(ctx, Caller{}, "key-timeout", req)
	assert.Equal(t, pkgerrors.CodeDependency, errCode(err))

	pending, err := f.orders.FindByIdempotencyKey(ctx, "key-timeout")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, pending.Status)
	assert.Zero(t, f.countEvents(t, enums.EventOrderPaymentFailed))

	f.gateway.err = nil
	result, err := f.svc.Checkout(ctx, Caller{}, "key-timeout", req)
	require.NoError(t, err)
	assert.True(t, result.Captured)
	require.Len(t, f.gateway.calls, 2)
	assert.Equal(t, f.gateway.calls[0].IdempotencyKey, f.gateway.calls[1].IdempotencyKey, "same card retries reuse the processor key")
}

func TestCheckoutPendingGatewayStatus(t *testing.T) {
	f := newCheckoutFixture(t)
	f.gateway.status = "PENDING"
	_, err := f.svc.Checkout(context.Background(), Caller{}, "key-pending", f.request(cart.ItemInput{ProductID: f.mint.ID, Quantity: 1}))
	assert.Equal(t, pkgerrors.CodeDependency, errCode(err))

	order, err := f.orders.FindByIdempotencyKey(context.Background(), "key-pending")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	require.NotNil(t, order.PaymentID)
}
