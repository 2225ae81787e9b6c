package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/angelmondragon/smokeshop-backend/internal/address"
	"github.com/angelmondragon/smokeshop-backend/internal/cart"
	"github.com/angelmondragon/smokeshop-backend/internal/orders"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/internal/shipping"
	"github.com/angelmondragon/smokeshop-backend/internal/users"
	"github.com/angelmondragon/smokeshop-backend/pkg/db"
	"github.com/angelmondragon/smokeshop-backend/pkg/db/models"
	"github.com/angelmondragon/smokeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/metrics"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox"
	"github.com/angelmondragon/smokeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/smokeshop-backend/pkg/square"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

const maxIdempotencyKeyLength = 255

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type rateResolver interface {
	ResolveRate(ctx context.Context, rateID string, to types.Address, itemCount int) (*shipping.Rate, error)
}

type paymentGateway interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	EnsureCustomer(ctx context.Context, params square.CustomerCreateParams) (*sq.Customer, error)
}

// Service places and pays storefront orders.
type Service interface {
	Checkout(ctx context.Context, caller Caller, idempotencyKey string, req Request) (*Result, error)
}

// ServiceParams wires the checkout dependencies.
type ServiceParams struct {
	Tx        txRunner
	Orders    *orders.Repository
	Products  productLoader
	Carts     *cart.Repository
	Users     *users.Repository
	Addresses *address.Repository
	Rates     rateResolver
	Payments  paymentGateway
	Settler   *Settler
	Outbox    outboxPublisher
	Currency  string
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	orders    *orders.Repository
	products  productLoader
	carts     *cart.Repository
	users     *users.Repository
	addresses *address.Repository
	rates     rateResolver
	payments  paymentGateway
	settler   *Settler
	outbox    outboxPublisher
	currency  string
	logg      *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case params.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case params.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case params.Addresses == nil:
		return nil, fmt.Errorf("address repository required")
	case params.Rates == nil:
		return nil, fmt.Errorf("rate resolver required")
	case params.Settler == nil:
		return nil, fmt.Errorf("settler required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &service{
		tx:        params.Tx,
		orders:    params.Orders,
		products:  params.Products,
		carts:     params.Carts,
		users:     params.Users,
		addresses: params.Addresses,
		rates:     params.Rates,
		payments:  params.Payments,
		settler:   params.Settler,
		outbox:    params.Outbox,
		currency:  currency,
		logg:      params.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, caller Caller, idempotencyKey string, req Request) (*Result, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required")
	}
	if len(key) > maxIdempotencyKeyLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key is too long")
	}
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments unavailable")
	}

	email := users.NormalizeEmail(req.Email)
	if caller.Authenticated {
		email = users.NormalizeEmail(caller.Email)
	}
	req.ShippingAddress = req.ShippingAddress.Normalize()
	if err := validateRequest(email, &req); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithEmail(ctx, email)
	}

	existing, err := s.orders.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		return s.resume(ctx, existing, email, req)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by idempotency key")
	}

	inputs := req.Items
	if len(inputs) == 0 {
		if inputs, err = s.cartItems(ctx, caller, email); err != nil {
			return nil, err
		}
	}
	items, err := cart.MergeItems(inputs)
	if err != nil {
		return nil, err
	}
	lines, subtotal, err := s.priceItems(ctx, items)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.ResolveRate(ctx, req.ShippingRateID, req.ShippingAddress, itemCount(items))
	if err != nil {
		return nil, err
	}
	if rate.Currency != "" && !strings.EqualFold(rate.Currency, s.currency) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate currency does not match store currency")
	}

	order, err := s.createOrder(ctx, caller, email, key, req, lines, subtotal, rate)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Info(ctx, "checkout.order_created")
	}
	return s.charge(ctx, order, req)
}

// resume continues a checkout whose order already exists for the key.
func (s *service) resume(ctx context.Context, order *models.Order, email string, req Request) (*Result, error) {
	if order.Email != email {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for another checkout")
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
	}
	switch order.Status {
	case enums.OrderStatusPaid:
		metrics.ObserveCheckout(metrics.OutcomeDuplicate)
		return &Result{Order: orders.NewOrderDTO(order)}, nil
	case enums.OrderStatusReconciled:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was closed; start a new checkout").
			WithDetails(map[string]any{"order_id": order.ID})
	case enums.OrderStatusPaymentFailed:
		if err := s.orders.Transition(ctx, order, enums.OrderStatusPendingPayment, map[string]any{"last_payment_error": nil}); err != nil {
			return nil, err
		}
	}
	return s.charge(ctx, order, req)
}

func (s *service) cartItems(ctx context.Context, caller Caller, email string) ([]cart.ItemInput, error) {
	if !caller.Authenticated {
		registered, err := s.users.IsRegistered(ctx, email)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check registration")
		}
		if registered {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to check out this cart")
		}
	}
	record, err := s.carts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if record == nil || len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	inputs := make([]cart.ItemInput, 0, len(record.Items))
	for _, item := range record.Items {
		inputs = append(inputs, cart.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return inputs, nil
}

func itemCount(items models.CartItems) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// priceItems loads every product in one query and freezes the snapshots.
func (s *service) priceItems(ctx context.Context, items models.CartItems) ([]models.OrderItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	rows, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	lines := make([]models.OrderItem, 0, len(items))
	var subtotal int64
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if product.IsArchived {
			return nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		lineTotal := product.PriceCents * int64(item.Quantity)
		subtotal += lineTotal
		lines = append(lines, models.OrderItem{
			ProductID:      product.ID,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: lineTotal,
			Snapshot:       products.Snapshot(product),
		})
	}
	return lines, subtotal, nil
}

func (s *service) createOrder(ctx context.Context, caller Caller, email, key string, req Request, lines []models.OrderItem, subtotal int64, rate *shipping.Rate) (*models.Order, error) {
	shipTo := req.ShippingAddress
	if shipTo.Name == "" {
		shipTo.Name = strings.TrimSpace(req.Name)
	}
	if shipTo.Phone == "" {
		shipTo.Phone = strings.TrimSpace(req.Phone)
	}

	order := &models.Order{
		Email:                email,
		Name:                 strings.TrimSpace(req.Name),
		Phone:                strings.TrimSpace(req.Phone),
		Status:               enums.OrderStatusPendingPayment,
		ShippingAddress:      shipTo,
		SubtotalCents:        subtotal,
		ShippingCents:        rate.AmountCents,
		TotalCents:           subtotal + rate.AmountCents,
		Currency:             s.currency,
		IdempotencyKey:       key,
		ShippingRateID:       rate.ID,
		ShippingCarrier:      rate.Provider,
		ShippingServiceLevel: rate.ServiceLevel,
		ShippingEstDays:      rate.EstimatedDays,
		Items:                lines,
		Shipment: &models.Shipment{
			Carrier:      rate.Provider,
			ServiceLevel: rate.ServiceLevel,
			RateObjectID: rate.ID,
			RateCents:    rate.AmountCents,
			Status:       enums.ShipmentStatusAwaitingLabel,
		},
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.resolveUser(ctx, tx, caller, email, order.Name)
		if err != nil {
			return err
		}
		order.UserID = user.ID

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeIdempotency, "checkout already in progress for this idempotency key")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if req.SaveAddress {
			if err := s.saveAddress(ctx, tx, email, shipTo); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &user.ID, Email: email},
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				UserID:     user.ID,
				Email:      email,
				Guest:      user.IsGuest,
				Status:     order.Status,
				TotalCents: order.TotalCents,
				Currency:   order.Currency,
				Lines:      orders.Lines(order),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) resolveUser(ctx context.Context, tx *gorm.DB, caller Caller, email, name string) (*models.User, error) {
	repo := s.users.WithTx(tx)
	if caller.Authenticated {
		user, err := repo.FindByID(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		return user, nil
	}
	user, err := repo.FindOrCreateGuest(ctx, email, &name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find or create guest")
	}
	return user, nil
}

func (s *service) saveAddress(ctx context.Context, tx *gorm.DB, email string, shipTo types.Address) error {
	repo := s.addresses.WithTx(tx)
	exists, err := repo.Exists(ctx, email, shipTo.Line1, shipTo.PostalCode)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check saved address")
	}
	if exists {
		return nil
	}
	if err := repo.Create(ctx, address.FromSnapshot(email, shipTo)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save address")
	}
	return nil
}

// charge calls the processor with a key derived from the order and card
// token, so a retried request for the same token never charges twice.
func (s *service) charge(ctx context.Context, order *models.Order, req Request) (*Result, error) {
	params := square.PaymentCreateParams{
		AmountCents:       order.TotalCents,
		Currency:          order.Currency,
		CustomerID:        s.customerID(ctx, order),
		SourceID:          strings.TrimSpace(req.PaymentToken),
		VerificationToken: strings.TrimSpace(req.VerificationToken),
		BuyerEmail:        order.Email,
		IdempotencyKey:    square.PaymentIdempotencyKey(order.ID.String(), req.PaymentToken),
		Note:              "Order " + order.ID.String(),
		ReferenceID:       order.ID.String(),
	}
	payment, err := s.payments.CreatePayment(ctx, params)
	if err != nil {
		return s.handleChargeError(ctx, order, err)
	}

	outcome := PaymentOutcome{Status: enums.ParseGatewayPaymentStatus(derefString(payment.GetStatus())), Source: SourceCheckout}
	if id := payment.GetID(); id != nil {
		outcome.PaymentID = *id
	}
	attempt := orders.PaymentAttempt{PaymentID: &outcome.PaymentID, PaymentStatus: stringPtr(outcome.Status.String())}
	if err := s.orders.RecordPaymentAttempt(ctx, order.ID, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment attempt")
	}

	switch {
	case outcome.Status.IsCaptured():
		settled, _, err := s.settler.MarkPaid(ctx, order.ID, outcome)
		if err != nil {
			return nil, err
		}
		metrics.ObserveCheckout(metrics.OutcomeSuccess)
		if s.logg != nil {
			s.logg.Info(ctx, "checkout.paid")
		}
		return &Result{Order: orders.NewOrderDTO(settled), Captured: true}, nil
	case outcome.Status.IsTerminalFailure():
		return nil, s.decline(ctx, order, outcome, "payment "+lowerStatus(outcome.Status))
	default:
		metrics.ObserveCheckout(metrics.OutcomePending)
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment is awaiting confirmation").
			WithDetails(map[string]any{"order_id": order.ID})
	}
}

func (s *service) handleChargeError(ctx context.Context, order *models.Order, chargeErr error) (*Result, error) {
	message := chargeErr.Error()
	if recordErr := s.orders.RecordPaymentAttempt(ctx, order.ID, orders.PaymentAttempt{Error: &message}); recordErr != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.record_attempt_failed", recordErr)
	}
	if isDecline(chargeErr) {
		return nil, s.decline(ctx, order, PaymentOutcome{Status: enums.GatewayPaymentFailed, Source: SourceCheckout}, publicDeclineReason(chargeErr))
	}
	metrics.ObserveCheckout(metrics.OutcomeError)
	if s.logg != nil {
		s.logg.Error(ctx, "checkout.gateway_unavailable", chargeErr)
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, chargeErr, "payment processor unavailable; retry with the same Idempotency-Key").
		WithDetails(map[string]any{"order_id": order.ID})
}

func (s *service) decline(ctx context.Context, order *models.Order, outcome PaymentOutcome, reason string) error {
	if _, _, err := s.settler.MarkFailed(ctx, order.ID, outcome, reason); err != nil {
		return err
	}
	metrics.ObserveCheckout(metrics.OutcomeDeclined)
	if s.logg != nil {
		s.logg.Warn(ctx, "checkout.payment_declined")
	}
	return pkgerrors.New(pkgerrors.CodePaymentFailed, "payment was declined").
		WithDetails(map[string]any{"order_id": order.ID, "reason": reason})
}

// customerID links the payment to a processor customer when possible.
// Lookup failures never block a charge.
func (s *service) customerID(ctx context.Context, order *models.Order) string {
	user, err := s.users.FindByID(ctx, order.UserID)
	if err != nil {
		return ""
	}
	if user.SquareCustomerID != nil && *user.SquareCustomerID != "" {
		return *user.SquareCustomerID
	}
	customer, err := s.payments.EnsureCustomer(ctx, square.CustomerCreateParams{
		Email:          order.Email,
		PhoneNumber:    order.Phone,
		GivenName:      order.Name,
		ReferenceID:    user.ID.String(),
		IdempotencyKey: "cust_" + user.ID.String(),
	})
	if err != nil || customer == nil || customer.GetID() == nil {
		if err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.customer_lookup_failed")
		}
		return ""
	}
	id := *customer.GetID()
	if err := s.users.Update(ctx, user.ID, map[string]any{"square_customer_id": id}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.customer_link_failed", err)
	}
	return id
}

// isDecline separates card-side rejections from processor outages. Only the
// former may move an order to payment_failed.
func isDecline(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodePaymentFailed, pkgerrors.CodeValidation, pkgerrors.CodeStateConflict, pkgerrors.CodeNotFound:
		return true
	default:
		return false
	}
}

func publicDeclineReason(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodePaymentFailed {
		return "card declined"
	}
	return "payment rejected"
}

func validateRequest(email string, req *Request) error {
	missing := []string{}
	if email == "" || !strings.Contains(email, "@") {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Phone) == "" {
		missing = append(missing, "phone")
	}
	for _, field := range address.MissingPostalFields(req.ShippingAddress) {
		missing = append(missing, "shipping_address."+field)
	}
	if strings.TrimSpace(req.ShippingRateID) == "" {
		missing = append(missing, "shipping_rate_id")
	}
	if strings.TrimSpace(req.PaymentToken) == "" {
		missing = append(missing, "payment_token")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout request is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
