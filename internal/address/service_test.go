package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/smokeshop-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/maps"
)

type stubPlaces struct {
	autocompleteReq maps.AutocompleteRequest
	details         *maps.PlaceDetails
}

func (s *stubPlaces) Autocomplete(_ context.Context, req maps.AutocompleteRequest) ([]maps.AutocompleteSuggestion, error) {
	s.autocompleteReq = req
	return []maps.AutocompleteSuggestion{{PlaceID: "place-1", Description: "1 Main St, Austin, TX"}}, nil
}

func (s *stubPlaces) ResolvePlace(_ context.Context, _ string) (*maps.PlaceDetails, error) {
	return s.details, nil
}

func newTestService(t *testing.T, places placesClient) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)), places)
	require.NoError(t, err)
	return svc
}

func validCreate() CreateRequest {
	return CreateRequest{
		Name:       "Jane Buyer",
		Line1:      "1 Main St",
		City:       "Austin",
		State:      "tx",
		PostalCode: "78701",
		Country:    "us",
		Phone:      "5551234567",
	}
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "Jane@Example.com", validCreate())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "TX", created.State)
	assert.Equal(t, "US", created.Country)

	got, err := svc.Get(ctx, "jane@example.com", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", got.Line1)

	_, err = svc.Get(ctx, "other@example.com", created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateRejectsMissingFields(t *testing.T) {
	svc := newTestService(t, nil)
	req := validCreate()
	req.Line1 = "  "
	req.Phone = ""

	_, err := svc.Create(context.Background(), "jane@example.com", req)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	list, err := svc.List(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDefaultAddressIsExclusive(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	first := validCreate()
	first.IsDefault = true
	a, err := svc.Create(ctx, "jane@example.com", first)
	require.NoError(t, err)

	second := validCreate()
	second.Line1 = "2 Side St"
	b, err := svc.Create(ctx, "jane@example.com", second)
	require.NoError(t, err)

	makeDefault := true
	updated, err := svc.Update(ctx, "jane@example.com", b.ID, UpdateRequest{IsDefault: &makeDefault})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	reloaded, err := svc.Get(ctx, "jane@example.com", a.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)

	list, err := svc.List(ctx, "jane@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, "jane@example.com", validCreate())
	require.NoError(t, err)

	empty := " "
	_, err = svc.Update(ctx, "jane@example.com", created.ID, UpdateRequest{City: &empty})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	city := "Dallas"
	updated, err := svc.Update(ctx, "jane@example.com", created.ID, UpdateRequest{City: &city, Line2: &empty})
	require.NoError(t, err)
	assert.Equal(t, "Dallas", updated.City)
	assert.Nil(t, updated.Line2)

	err = svc.Delete(ctx, "mallory@example.com", created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, "jane@example.com", created.ID))
	_, err = svc.Get(ctx, "jane@example.com", created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSuggestAndResolve(t *testing.T) {
	places := &stubPlaces{details: &maps.PlaceDetails{
		AddressComponents: []maps.AddressComponent{
			{LongName: "123", ShortName: "123", Types: []string{"street_number"}},
			{LongName: "Demo Street", ShortName: "Demo St", Types: []string{"route"}},
			{LongName: "Example City", ShortName: "Example City", Types: []string{"locality"}},
			{LongName: "Oklahoma", ShortName: "OK", Types: []string{"administrative_area_level_1"}},
			{LongName: "73106", ShortName: "73106", Types: []string{"postal_code"}},
			{LongName: "United States", ShortName: "US", Types: []string{"country"}},
		},
	}}
	svc := newTestService(t, places)
	ctx := context.Background()

	suggestions, err := svc.Suggest(ctx, SuggestRequest{Input: "123 Demo"})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Empty(t, places.autocompleteReq.IncludedRegionCodes)

	_, err = svc.Suggest(ctx, SuggestRequest{Input: "123 Demo", Country: "ca"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CA"}, places.autocompleteReq.IncludedRegionCodes)

	addr, err := svc.Resolve(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, "123 Demo St", addr.Line1)
	assert.Equal(t, "OK", addr.State)

	places.details = &maps.PlaceDetails{AddressComponents: []maps.AddressComponent{{LongName: "Oklahoma", ShortName: "OK", Types: []string{"administrative_area_level_1"}}}}
	_, err = svc.Resolve(ctx, "place-2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPlacesUnavailable(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Suggest(context.Background(), SuggestRequest{Input: "1 Main"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	_, err = svc.Resolve(context.Background(), "place-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
