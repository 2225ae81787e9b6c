package shipping

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/redis"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

// Rate is a carrier quote as cached and returned to the storefront.
type Rate struct {
	ID            string `json:"id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Provider      string `json:"provider"`
	ServiceLevel  string `json:"service_level"`
	ServiceToken  string `json:"service_token,omitempty"`
	EstimatedDays *int   `json:"estimated_days,omitempty"`
	DurationTerms string `json:"duration_terms,omitempty"`
}

// quotedRate is the cached form of a Rate, bound to the destination and
// item count the parcel was sized for.
type quotedRate struct {
	Rate
	Destination string `json:"destination"`
	ItemCount   int    `json:"item_count"`
}

// QuoteRequest asks for rates to ship a number of items to an address.
type QuoteRequest struct {
	Address types.Address `json:"address" validate:"required"`
	Items   []QuoteItem   `json:"items" validate:"required,min=1,max=50,dive"`
}

// QuoteItem carries the quantity used to size the parcel.
type QuoteItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

// Service quotes shipping rates and resolves previously quoted ones.
type Service interface {
	Quote(ctx context.Context, req QuoteRequest) ([]Rate, error)
	ResolveRate(ctx context.Context, rateID string, to types.Address, itemCount int) (*Rate, error)
}

type rateQuoter interface {
	CreateShipment(ctx context.Context, req shippo.ShipmentRequest) (*shippo.Shipment, error)
}

type rateCache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	ShippingRateKey(rateID string) string
}

type service struct {
	quoter rateQuoter
	cache  rateCache
	cfg    config.ShippoConfig
}

// NewService builds the shipping quote service. A nil quoter leaves quoting
// unavailable while cached rates still resolve.
func NewService(quoter rateQuoter, cache rateCache, cfg config.ShippoConfig) (Service, error) {
	if cache == nil {
		return nil, fmt.Errorf("rate cache required")
	}
	if cfg.RateCacheTTL <= 0 {
		cfg.RateCacheTTL = time.Hour
	}
	return &service{quoter: quoter, cache: cache, cfg: cfg}, nil
}

func (s *service) Quote(ctx context.Context, req QuoteRequest) ([]Rate, error) {
	if s.quoter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping quotes unavailable")
	}
	addr := req.Address.Normalize()
	if addr.Line1 == "" || addr.City == "" || addr.State == "" || addr.PostalCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address line1, city, state and postal_code are required")
	}
	count := 0
	for _, item := range req.Items {
		count += item.Quantity
	}
	if count <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	parcel, err := s.parcel(count)
	if err != nil {
		return nil, err
	}
	shipment, err := s.quoter.CreateShipment(ctx, shippo.ShipmentRequest{
		AddressFrom: s.origin(),
		AddressTo:   destination(addr),
		Parcels:     []shippo.Parcel{parcel},
	})
	if err != nil {
		return nil, err
	}

	rates := make([]Rate, 0, len(shipment.Rates))
	for _, quoted := range shipment.Rates {
		cents, err := quoted.AmountCents()
		if err != nil || strings.TrimSpace(quoted.ObjectID) == "" {
			continue
		}
		rate := Rate{
			ID:            quoted.ObjectID,
			AmountCents:   cents,
			Currency:      strings.ToUpper(quoted.Currency),
			Provider:      quoted.Provider,
			ServiceLevel:  quoted.ServiceLevel.Name,
			ServiceToken:  quoted.ServiceLevel.Token,
			EstimatedDays: quoted.EstimatedDays,
			DurationTerms: quoted.DurationTerms,
		}
		cached := quotedRate{Rate: rate, Destination: destinationDigest(addr), ItemCount: count}
		if err := s.cache.SetJSON(ctx, s.cache.ShippingRateKey(rate.ID), cached, s.cfg.RateCacheTTL); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cache shipping rate")
		}
		rates = append(rates, rate)
	}
	if len(rates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping rates available for this address")
	}

	sort.SliceStable(rates, func(i, j int) bool {
		if rates[i].AmountCents == rates[j].AmountCents {
			return rates[i].Provider < rates[j].Provider
		}
		return rates[i].AmountCents < rates[j].AmountCents
	})
	return rates, nil
}

// ResolveRate loads a quoted rate and checks it was quoted for the same
// destination and item count the order ships.
func (s *service) ResolveRate(ctx context.Context, rateID string, to types.Address, itemCount int) (*Rate, error) {
	rateID = strings.TrimSpace(rateID)
	if rateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping_rate_id is required")
	}
	var cached quotedRate
	if err := s.cache.GetJSON(ctx, s.cache.ShippingRateKey(rateID), &cached); err != nil {
		if redis.IsNil(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate expired or unknown; request new rates").
				WithDetails(map[string]any{"shipping_rate_id": rateID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping rate")
	}
	if cached.Destination != destinationDigest(to.Normalize()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate was quoted for a different address; request new rates").
			WithDetails(map[string]any{"shipping_rate_id": rateID})
	}
	if cached.ItemCount != itemCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping rate was quoted for a different item count; request new rates").
			WithDetails(map[string]any{"shipping_rate_id": rateID, "quoted_items": cached.ItemCount})
	}
	rate := cached.Rate
	return &rate, nil
}

// destinationDigest hashes the fields a carrier prices on. Name and phone
// do not change the rate and are left out.
func destinationDigest(addr types.Address) string {
	line2 := ""
	if addr.Line2 != nil {
		line2 = *addr.Line2
	}
	parts := []string{addr.Line1, line2, addr.City, addr.State, addr.PostalCode, addr.Country}
	for i, part := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(part), " "))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// parcel scales the configured per-item weight by the item count.
func (s *service) parcel(count int) (shippo.Parcel, error) {
	perItem, err := decimal.NewFromString(strings.TrimSpace(s.cfg.ItemWeightOz))
	if err != nil || !perItem.IsPositive() {
		return shippo.Parcel{}, pkgerrors.New(pkgerrors.CodeInternal, "invalid parcel item weight configuration")
	}
	return shippo.Parcel{
		Length:       s.cfg.ParcelLength,
		Width:        s.cfg.ParcelWidth,
		Height:       s.cfg.ParcelHeight,
		DistanceUnit: s.cfg.ParcelDistanceUnit,
		Weight:       perItem.Mul(decimal.NewFromInt(int64(count))).StringFixed(2),
		MassUnit:     "oz",
	}, nil
}

func (s *service) origin() shippo.Address {
	return shippo.Address{
		Name:    s.cfg.FromName,
		Street1: s.cfg.FromStreet1,
		City:    s.cfg.FromCity,
		State:   s.cfg.FromState,
		Zip:     s.cfg.FromZip,
		Country: s.cfg.FromCountry,
		Phone:   s.cfg.FromPhone,
		Email:   s.cfg.FromEmail,
	}
}

func destination(addr types.Address) shippo.Address {
	out := shippo.Address{
		Name:    addr.Name,
		Street1: addr.Line1,
		City:    addr.City,
		State:   addr.State,
		Zip:     addr.PostalCode,
		Country: addr.Country,
		Phone:   addr.Phone,
	}
	if addr.Line2 != nil {
		out.Street2 = *addr.Line2
	}
	return out
}
