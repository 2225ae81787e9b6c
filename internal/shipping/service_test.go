package shipping

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/shippo"
	"github.com/angelmondragon/smokeshop-backend/pkg/types"
)

type memoryCache struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = string(raw)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	raw, ok := m.values[key]
	if !ok {
		return goredis.Nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (m *memoryCache) ShippingRateKey(rateID string) string {
	return "ss:shipping_rate:" + rateID
}

type stubQuoter struct {
	req      shippo.ShipmentRequest
	shipment *shippo.Shipment
	err      error
}

func (s *stubQuoter) CreateShipment(_ context.Context, req shippo.ShipmentRequest) (*shippo.Shipment, error) {
	s.req = req
	return s.shipment, s.err
}

func testShippoConfig() config.ShippoConfig {
	return config.ShippoConfig{
		RateCacheTTL:       30 * time.Minute,
		ParcelLength:       "6",
		ParcelWidth:        "4",
		ParcelHeight:       "3",
		ParcelDistanceUnit: "in",
		ItemWeightOz:       "2.5",
		FromName:           "Smoke Shop",
		FromStreet1:        "10 Warehouse Rd",
		FromCity:           "Austin",
		FromState:          "TX",
		FromZip:            "78701",
		FromCountry:        "US",
	}
}

func testAddress() types.Address {
	return types.Address{Name: "Jane", Line1: " 1 Main St ", City: "Denver", State: "co", PostalCode: "80202"}
}

func TestQuoteCachesAndSortsRates(t *testing.T) {
	days := 2
	quoter := &stubQuoter{shipment: &shippo.Shipment{Rates: []shippo.Rate{
		{ObjectID: "rate_exp", Amount: "24.10", Currency: "usd", Provider: "UPS", ServiceLevel: shippo.ServiceLevel{Name: "Next Day Air"}},
		{ObjectID: "rate_cheap", Amount: "5.6", Currency: "USD", Provider: "USPS", ServiceLevel: shippo.ServiceLevel{Name: "Ground Advantage"}, EstimatedDays: &days},
		{ObjectID: "rate_bad", Amount: "n/a", Currency: "USD", Provider: "X"},
	}}}
	cache := newMemoryCache()
	svc, err := NewService(quoter, cache, testShippoConfig())
	require.NoError(t, err)

	rates, err := svc.Quote(context.Background(), QuoteRequest{
		Address: testAddress(),
		Items:   []QuoteItem{{ProductID: "a", Quantity: 2}, {ProductID: "b", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "rate_cheap", rates[0].ID)
	assert.Equal(t, int64(560), rates[0].AmountCents)
	assert.Equal(t, "USD", rates[1].Currency)

	assert.Equal(t, "7.50", quoter.req.Parcels[0].Weight)
	assert.Equal(t, "CO", quoter.req.AddressTo.State)
	assert.Equal(t, "1 Main St", quoter.req.AddressTo.Street1)
	assert.Equal(t, "US", quoter.req.AddressTo.Country)
	assert.Equal(t, "10 Warehouse Rd", quoter.req.AddressFrom.Street1)
	assert.Equal(t, 30*time.Minute, cache.ttls["ss:shipping_rate:rate_exp"])

	resolved, err := svc.ResolveRate(context.Background(), "rate_exp", testAddress(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2410), resolved.AmountCents)
	assert.Equal(t, "Next Day Air", resolved.ServiceLevel)
}

func TestResolveRateBindsDestinationAndItemCount(t *testing.T) {
	quoter := &stubQuoter{shipment: &shippo.Shipment{Rates: []shippo.Rate{
		{ObjectID: "rate_light", Amount: "4.00", Currency: "USD", Provider: "USPS", ServiceLevel: shippo.ServiceLevel{Name: "Ground Advantage"}},
	}}}
	svc, err := NewService(quoter, newMemoryCache(), testShippoConfig())
	require.NoError(t, err)

	_, err = svc.Quote(context.Background(), QuoteRequest{
		Address: testAddress(),
		Items:   []QuoteItem{{ProductID: "a", Quantity: 1}},
	})
	require.NoError(t, err)

	sameDestination := testAddress()
	sameDestination.Name = "Someone Else"
	sameDestination.City = "  denver "
	sameDestination.Country = "us"
	rate, err := svc.ResolveRate(context.Background(), "rate_light", sameDestination, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(400), rate.AmountCents)

	elsewhere := testAddress()
	elsewhere.City = "Austin"
	elsewhere.State = "TX"
	elsewhere.PostalCode = "78701"
	_, err = svc.ResolveRate(context.Background(), "rate_light", elsewhere, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "different address")

	_, err = svc.ResolveRate(context.Background(), "rate_light", testAddress(), 99)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, err.Error(), "different item count")
}

func TestResolveUnknownRate(t *testing.T) {
	svc, err := NewService(nil, newMemoryCache(), testShippoConfig())
	require.NoError(t, err)

	_, err = svc.ResolveRate(context.Background(), "rate_gone", testAddress(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.ResolveRate(context.Background(), " ", testAddress(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestQuoteValidation(t *testing.T) {
	svc, err := NewService(nil, newMemoryCache(), testShippoConfig())
	require.NoError(t, err)
	_, err = svc.Quote(context.Background(), QuoteRequest{Address: testAddress(), Items: []QuoteItem{{ProductID: "a", Quantity: 1}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	quoter := &stubQuoter{shipment: &shippo.Shipment{}}
	svc, err = NewService(quoter, newMemoryCache(), testShippoConfig())
	require.NoError(t, err)

	missingCity := testAddress()
	missingCity.City = ""
	_, err = svc.Quote(context.Background(), QuoteRequest{Address: missingCity, Items: []QuoteItem{{ProductID: "a", Quantity: 1}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Quote(context.Background(), QuoteRequest{Address: testAddress(), Items: []QuoteItem{{ProductID: "a", Quantity: 1}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "no rates is a client-facing error")
}
