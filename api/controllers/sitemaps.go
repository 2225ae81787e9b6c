package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/smokeshop-backend/api/responses"
	"github.com/angelmondragon/smokeshop-backend/pkg/logger"
)

// SitemapSource renders one XML sitemap document.
type SitemapSource func(ctx context.Context) ([]byte, error)

// Sitemap writes the rendered document as application/xml.
func Sitemap(render SitemapSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if render == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("sitemap"))
			return
		}
		body, err := render(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
