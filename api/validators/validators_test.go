package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
)

type sampleBody struct {
	Name   string `json:"name" validate:"required"`
	Rating int    `json:"rating" validate:"min=1,max=5"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"rating":9}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["name"])
	require.Equal(t, "must be at most 5", details["rating"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","rating":3,"extra":true}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	require.Equal(t, map[string]string{"extra": "is not allowed"}, pkgerrors.As(err).Details())
}

type cartBody struct {
	Items []cartLine `json:"items" validate:"required,max=50,dive"`
}

type cartLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

func TestDecodeJSONBodyNamesNestedFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"items":[{"product_id":"a","quantity":1},{"product_id":"b","quantity":0}]}`))
	var body cartBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be at least 1", details["items[1].quantity"])
}

func TestDecodeJSONBodyShapeErrors(t *testing.T) {
	var body sampleBody

	err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader("")), &body)
	require.ErrorContains(t, err, "request body is required")

	err = DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","rating":"five"}`)), &body)
	require.Error(t, err)
	require.Equal(t, map[string]string{"rating": "must be a whole number"}, pkgerrors.As(err).Details())

	err = DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","rating":3}{"name":"b"}`)), &body)
	require.ErrorContains(t, err, "single JSON object")

	err = DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`)), &body)
	require.Error(t, err)

	big := `{"name":"` + strings.Repeat("a", int(MaxBodyBytes)) + `","rating":3}`
	err = DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(big)), &body)
	require.ErrorContains(t, err, "too large")
}

func TestParseDollarAmount(t *testing.T) {
	req := httptest.NewRequest("GET", "/?min_price=12.5&max_price=$20&bad=abc&neg=-1", nil)

	cents, err := ParseDollarAmount(req, "min_price")
	require.NoError(t, err)
	require.EqualValues(t, 1250, *cents)

	cents, err = ParseDollarAmount(req, "max_price")
	require.NoError(t, err)
	require.EqualValues(t, 2000, *cents)

	cents, err = ParseDollarAmount(req, "missing")
	require.NoError(t, err)
	require.Nil(t, cents)

	_, err = ParseDollarAmount(req, "bad")
	require.Error(t, err)
	_, err = ParseDollarAmount(req, "neg")
	require.Error(t, err)
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest("GET", "/?brand=Geek-Bar,%20LOST-MARY,,&brand=geek-bar&brand=Elf-Bar&featured=true&limit=500&page=x", nil)
	require.Equal(t, []string{"geek-bar", "lost-mary", "elf-bar"}, ParseQueryList(req, "brand"))
	require.Nil(t, ParseQueryList(req, "flavor"))
	require.True(t, ParseQueryBool(req, "featured"))
	require.False(t, ParseQueryBool(req, "archived"))

	_, err := ParseQueryInt(req, "limit", 24, 1, 100)
	require.Error(t, err)
	require.ErrorContains(t, err, "limit must be between 1 and 100")
	_, err = ParseQueryInt(req, "page", 1, 1, 1000)
	require.ErrorContains(t, err, "page must be a whole number")
	v, err := ParseQueryInt(req, "offset", 1, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abcdef", SanitizeString("abcdef", 0))
	require.Equal(t, "blue razz ice", SanitizeString(" blue\t razz\n\x00ice ", 100))
	require.Equal(t, "mango", SanitizeString("mango tango", 6))
	require.Equal(t, "cr", SanitizeString("crème brûlée", 3))
}
