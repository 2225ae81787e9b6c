package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/smokeshop-backend/api/middleware"
	"github.com/angelmondragon/smokeshop-backend/api/responses"
	"github.com/angelmondragon/smokeshop-backend/api/validators"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	pkgerrors "github.com/angelmondragon/smokeshop-backend/pkg/errors"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
	"github.com/angelmondragon/smokeshop-backend/pkg/pagination"
)

// ProductList serves the filtered catalog browse endpoint.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}

		input, err := parseProductListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseProductListInput(r *http.Request) (products.ListInput, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return products.ListInput{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultPageSize, 1, pagination.MaxLimit)
	if err != nil {
		return products.ListInput{}, err
	}
	minPrice, err := validators.ParseDollarAmount(r, "min_price")
	if err != nil {
		return products.ListInput{}, err
	}
	maxPrice, err := validators.ParseDollarAmount(r, "max_price")
	if err != nil {
		return products.ListInput{}, err
	}
	sort, err := products.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		return products.ListInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort").
			WithDetails(map[string]any{"field": "sort"})
	}

	filters := products.ListFilters{
		Brands:        validators.ParseQueryList(r, "brand"),
		Flavors:       validators.ParseQueryList(r, "flavor"),
		Puffs:         validators.ParseQueryList(r, "puffs"),
		Nicotine:      validators.ParseQueryList(r, "nicotine"),
		MinPriceCents: minPrice,
		MaxPriceCents: maxPrice,
		Query:         validators.SanitizeString(r.URL.Query().Get("q"), 100),
		Sort:          sort,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("featured")); raw != "" {
		featured := validators.ParseQueryBool(r, "featured")
		filters.Featured = &featured
	}
	if identity, ok := middleware.IdentityFromContext(r.Context()); ok && identity.IsAdmin() {
		filters.IncludeArchived = validators.ParseQueryBool(r, "include_archived")
	}
	return products.ListInput{Filters: filters, Page: pagination.NormalizePage(page, limit)}, nil
}

// ProductDetail resolves a product by id or slug. Archived products are
// visible to admins only.
func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		identity, _ := middleware.IdentityFromContext(r.Context())

		product, err := svc.Get(r.Context(), chi.URLParam(r, "idOrSlug"), identity.IsAdmin())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}

		var body products.CreateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		id, err := uuidParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body products.UpdateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
