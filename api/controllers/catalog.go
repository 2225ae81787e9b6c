package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/smokeshop-backend/api/responses"
	"github.com/angelmondragon/smokeshop-backend/internal/products"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

// facetHandler serves one of the catalog lookup lists.
func facetHandler[T any](svc products.Service, logg *logger.Logger, load func(products.Service, context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("product service"))
			return
		}
		rows, err := load(svc, r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CatalogBrands(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return facetHandler(svc, logg, products.Service.Brands)
}

func CatalogFlavors(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return facetHandler(svc, logg, products.Service.Flavors)
}

func CatalogNicotineLevels(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return facetHandler(svc, logg, products.Service.NicotineLevels)
}

func CatalogPuffCounts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return facetHandler(svc, logg, products.Service.PuffCounts)
}
